// Package poller drives the sensor endpoint polling loop for sensorsync.
//
// This package is internal to sensorsync and handles the periodic fetch of
// the sensor endpoint. Each tick fetches once and hands the response to the
// reconciler; ticks never overlap.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with timeout, size limit and cache busting
//   - [Scheduler]: Immediate tick plus fixed-interval ticks through a single-slot queue
//   - [Tick]: Result of one poll-and-reconcile cycle
//   - [Config]: Endpoint and timing configuration
//
// Users of the sensorsync library should not need to interact with this
// package directly. Configuration is done through the main sensorsync package.
package poller
