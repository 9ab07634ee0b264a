// Package exporter writes the numbers behind a sea level chart to CSV or
// Excel.
//
// A Report bundles the dataset, the fitted line and the visible year range.
// WriteCSV emits one merged table keyed by year with observed, fitted and
// residual columns. WriteXLSX produces a workbook with three sheets:
// Observations, Trend and Fit.
//
// Example usage:
//
//	exp := exporter.New(paths, logger)
//
//	// Stream to an HTTP response
//	ct, err := exp.Write(w, exporter.FormatXLSX, report)
//
//	// Or save next to the other exports
//	path, err := exp.SaveFile(exporter.FormatCSV, report)
package exporter
