// Package dev provides the development server and live reload.
//
// The server renders every requested page through the engine, so component
// documents are reloaded on each request. Other files are served as they are.
//
//   - Watcher: polls the pages directory for changes
//   - Server: renders pages, serves static files and metrics
//   - ReloadServer: tells browsers to reload via WebSocket
//
// # Usage
//
//	srv := dev.NewServer(dev.ServerOptions{Config: cfg, Logger: logger})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Attribute overrides
//
// Query parameters named tag.attribute set component attributes after the
// components have rendered. Values are stripped of markup:
//
//	/index.html?alp-counter.count=3
//
// # Reload protocol
//
// The browser connects to /_alpml/reload. Messages are JSON-encoded:
//
//	{"type": "reload", "file": "..."}  // Triggers full page reload
//	{"type": "error", "error": "..."}  // Shows error overlay
//	{"type": "clear"}                  // Clears error overlay
package dev
