// Package http implements the HTTP transport for the pre-sale analysis
// service. It provides a thin layer between chi routing and the service
// layer, keeping handlers focused solely on HTTP concerns.
//
// # Architecture Principles
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to HTTP responses
//	4. No business logic - all logic belongs in the service layer
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/not_found",
//	    "title": "Run Not Found",
//	    "status": 404,
//	    "detail": "no analysis run with id ...",
//	    "instance": "/api/v1/analysis/..."
//	}
//
// # WebSocket Support
//
// The /ws endpoint upgrades connections with Gorilla WebSocket, registers
// the client with the hub, and streams progress envelopes while an
// analysis runs. The stream is one-way; inbound frames are ignored apart
// from heartbeats.
package http
