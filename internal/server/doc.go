// Package server provides the HTTP server for the sensorsync dashboard and API.
//
// This package is internal to sensorsync and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML dashboard at "/"
//   - REST API: the current state at "/api/reading" and journal history at "/api/history"
//   - Server-Sent Events: one event per commit at "/api/sse"
//   - Operations: "/healthz" and the Prometheus "/metrics" endpoint
//
// Routing uses gorilla/mux; every route is wrapped in gorilla/handlers panic
// recovery and CORS. The server supports graceful shutdown via context
// cancellation, with a 5-second timeout for in-flight requests.
//
// Users of the sensorsync library should not need to interact with this
// package directly. The server is started automatically by [sensorsync.Engine.Start].
package server
