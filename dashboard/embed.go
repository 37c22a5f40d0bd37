// Package dashboard provides the embedded web UI assets for sensorsync.
//
// The page subscribes to /api/sse and re-renders the current reading on every
// committed state, so the display always shows what the engine last decided.
// Users of the sensorsync library should not need to interact with this
// package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Single page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
