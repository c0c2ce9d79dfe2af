// Package app provides application initialization and lifecycle management
// for the pre-sale analysis web service. It wires configuration, logging,
// observability, the websocket hub, the analysis services and the HTTP
// server, and handles graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and OpenTelemetry
//	3. Create the websocket hub and pipeline metrics
//	4. Initialize services with their dependencies
//	5. Build the HTTP server and its middleware chain
//
// # Graceful Shutdown
//
// The package handles SIGINT and SIGTERM so that active requests drain,
// websocket connections close cleanly and final metrics flush before the
// process exits.
//
// # Error Handling
//
// All initialization errors are returned to the caller. The app never
// calls os.Exit() directly; the main function controls the exit process.
package app
