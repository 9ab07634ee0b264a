// Package config provides centralized configuration management for the sea
// level service. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration values
// throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern SEALEVEL_<SECTION>_<FIELD>:
//
//	SEALEVEL_SERVER_PORT=8080
//	SEALEVEL_LOGGING_LEVEL=debug
//	SEALEVEL_DATA_MAX_UPLOAD_BYTES=1048576
//	SEALEVEL_DATA_SHEETS_SPREADSHEET_ID=1AbC...
//
// The config file is taken from SEALEVEL_CONFIG or, failing that, the first of
// sealevel.yaml, configs/sealevel.yaml and ../configs/sealevel.yaml.
//
// # Path Management
//
// Relative paths are anchored at paths.base_dir (the working directory by
// default):
//
//	paths, err := cfg.ResolvePaths()
//	out := paths.ExportPath("sealevel", "xlsx", time.Now())
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For tests, config.Default() returns a valid configuration that needs no
// environment variables or files.
package config
