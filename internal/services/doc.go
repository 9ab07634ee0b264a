// Package services implements the business logic behind the HTTP and
// WebSocket surfaces. Handlers stay thin: they decode a request, call a
// service method and render the result or the error.
//
// # Services
//
//	- SeaLevelService: loads and memoizes datasets, fits the trend line,
//	  renders charts and builds exports
//	- HealthService: health, readiness, liveness and version reports
//
// # Error Handling
//
// Service methods return *errors.AppError values (internal/errors) whose
// type drives the HTTP status chosen by the error handler. Request structs
// are checked with go-playground/validator, and its ValidationErrors are
// returned unchanged so the handler can list the offending fields.
//
// # Observability
//
// Every SeaLevelService operation runs inside an OpenTelemetry span and
// updates the counters in infrastructure.BusinessMetrics.
package services
