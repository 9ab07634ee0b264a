package dataset

import "errors"

var (
	// ErrMissingColumn is returned when a required column is absent
	ErrMissingColumn = errors.New("required column missing")
	// ErrNoObservations is returned when no row has a numeric year and level
	ErrNoObservations = errors.New("no usable observations")
	// ErrUnsupportedFormat is returned for file extensions we cannot parse
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	// ErrTooLarge is returned when an input exceeds the configured byte limit
	ErrTooLarge = errors.New("dataset exceeds size limit")
	// ErrEmptyInput is returned for zero-byte inputs
	ErrEmptyInput = errors.New("dataset is empty")
	// ErrSheetsDisabled is returned when no spreadsheet is configured
	ErrSheetsDisabled = errors.New("google sheets source is not configured")
)
