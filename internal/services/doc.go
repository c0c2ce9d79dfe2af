// Package services implements the business logic layer between the HTTP
// handlers and the analytic engine.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Context propagation for cancellation and tracing
//	2. Dependency injection for loose coupling
//	3. Structured logging with slog
//	4. Sentinel errors that handlers map onto problem responses
//
// # Available Services
//
//	- AnalysisService: loads the datasets, executes analysis runs one at
//	  a time, and keeps completed results in a bounded in-memory registry
//	  keyed by run id
//	- HealthService: liveness, readiness and version reporting
//
// # Error Handling
//
// Services return the sentinel errors declared in errors.go; callers
// match them with errors.Is rather than message text:
//
//	res, err := svc.Get(id)
//	if errors.Is(err, services.ErrRunNotFound) {
//	    // respond 404
//	}
package services
