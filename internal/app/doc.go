// Package app wires the sea level application together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, an optional YAML file and SEALEVEL_* variables
//	2. Initialize logging and OpenTelemetry
//	3. Build the dataset loader, cache, Google Sheets source, chart renderer and exporter
//	4. Compose them into the SeaLevelService
//	5. Start the WebSocket hub and register it as the upload notifier
//	6. Build the chi router and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication(app.Options{Assets: web.Assets()})
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns when its context is cancelled or SIGINT/SIGTERM arrives. The
// server drains in-flight requests, WebSocket clients are disconnected, the
// dataset cache sweeper stops and telemetry providers are flushed.
//
// The package never calls os.Exit; initialization errors are returned to
// the caller.
package app
