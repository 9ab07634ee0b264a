package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sealevel/internal/config"
	apperrors "sealevel/internal/errors"
)

// Content types of the export formats
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// levelPrecision is the number of decimals written for levels
const levelPrecision = 4

var csvHeaders = []string{"Year", "Observed Level (in)", "Fitted Level (in)", "Residual (in)", "In Range"}

// Exporter writes reports to streams or to the exports directory
type Exporter struct {
	paths  *config.Paths
	logger *slog.Logger
	now    func() time.Time
}

// New creates an exporter. paths may be nil when only streaming is needed.
func New(paths *config.Paths, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		paths:  paths,
		logger: logger.With(slog.String("component", "exporter")),
		now:    time.Now,
	}
}

// ContentType maps an export format to its MIME type
func ContentType(format string) (string, error) {
	switch format {
	case FormatCSV:
		return ContentTypeCSV, nil
	case FormatXLSX:
		return ContentTypeXLSX, nil
	default:
		return "", apperrors.NewUnsupportedFormatError(format)
	}
}

// Write encodes rep as format onto w and returns the content type
func (e *Exporter) Write(w io.Writer, format string, rep Report) (string, error) {
	contentType, err := ContentType(format)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatXLSX:
		err = e.WriteXLSX(w, rep)
	default:
		err = e.WriteCSV(w, rep, false)
	}
	if err != nil {
		return "", err
	}
	return contentType, nil
}

// WriteCSV writes the merged year table. bom prefixes a UTF-8 byte order
// mark so Excel detects the encoding.
func (e *Exporter) WriteCSV(w io.Writer, rep Report, bom bool) error {
	if bom {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return apperrors.NewStorageError("write BOM", err)
		}
	}

	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeaders); err != nil {
		return apperrors.NewStorageError("write headers", err)
	}

	rows := rep.Rows()
	for i, row := range rows {
		record := []string{
			formatYear(row.Year),
			optional(row.Observed),
			optional(row.Fitted),
			optional(row.Residual),
			"",
		}
		if row.Observed != nil {
			record[4] = fmt.Sprintf("%t", row.Visible)
		}
		if err := writer.Write(record); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("write record %d", i), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError("flush csv", err)
	}

	e.logger.Debug("csv export written", slog.Int("rows", len(rows)))
	return nil
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v, levelPrecision)
}

// SaveFile writes rep into the exports directory with a timestamped name
func (e *Exporter) SaveFile(format string, rep Report) (string, error) {
	if e.paths == nil || e.paths.ExportsDir == "" {
		return "", apperrors.NewConfigError("save export", fmt.Errorf("exports directory not configured"))
	}
	if _, err := ContentType(format); err != nil {
		return "", err
	}

	fullPath := e.paths.ExportPath("sealevel", format, e.now())
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", apperrors.NewStorageError("create exports directory", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", apperrors.NewStorageError("create export file", err)
	}
	defer file.Close()

	if format == FormatXLSX {
		err = e.WriteXLSX(file, rep)
	} else {
		err = e.WriteCSV(file, rep, true)
	}
	if err != nil {
		os.Remove(fullPath)
		return "", err
	}

	e.logger.Info("export saved",
		slog.String("path", fullPath),
		slog.String("format", format))
	return fullPath, nil
}
