package exporter

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	apperrors "sealevel/internal/errors"
)

// Sheet names of the workbook export
const (
	SheetObservations = "Observations"
	SheetTrend        = "Trend"
	SheetFit          = "Fit"
)

// WriteXLSX writes rep as a three-sheet workbook
func (e *Exporter) WriteXLSX(w io.Writer, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetObservations); err != nil {
		return apperrors.NewStorageError("rename sheet", err)
	}
	for _, name := range []string{SheetTrend, SheetFit} {
		if _, err := f.NewSheet(name); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("create sheet %s", name), err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return apperrors.NewStorageError("create header style", err)
	}

	obs := [][]interface{}{{"Year", "Level (in)", "Fitted (in)", "Residual (in)", "In Range"}}
	if rep.Dataset != nil {
		for _, o := range rep.Dataset.Observations {
			fitted := rep.Fit.Predict(o.Year)
			obs = append(obs, []interface{}{
				o.Year, o.Level, fitted, o.Level - fitted,
				o.Year >= float64(rep.Range.Start) && o.Year <= float64(rep.Range.End),
			})
		}
	}

	trend := [][]interface{}{{"Year", "Predicted Level (in)"}}
	for _, tp := range rep.Trend {
		trend = append(trend, []interface{}{tp.Year, tp.Level})
	}

	fit := [][]interface{}{
		{"Statistic", "Value"},
		{"Slope (in/yr)", rep.Fit.Slope},
		{"Intercept (in)", rep.Fit.Intercept},
		{"R", rep.Fit.RValue},
		{"R Squared", rep.Fit.RSquared},
		{"P Value", rep.Fit.PValue},
		{"Slope Std Err", rep.Fit.StdErr},
		{"Intercept Std Err", rep.Fit.InterceptStdErr},
		{"Observations", rep.Fit.N},
		{"Start Year", rep.Range.Start},
		{"End Year", rep.Range.End},
	}
	if rep.Dataset != nil {
		fit = append(fit,
			[]interface{}{"Dataset", rep.Dataset.Name},
			[]interface{}{"Dataset ID", rep.Dataset.ID},
			[]interface{}{"Dropped Rows", rep.Dataset.DroppedRows},
		)
	}
	if !rep.GeneratedAt.IsZero() {
		fit = append(fit, []interface{}{"Generated", rep.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST")})
	}

	for sheet, rows := range map[string][][]interface{}{
		SheetObservations: obs,
		SheetTrend:        trend,
		SheetFit:          fit,
	} {
		if err := writeRows(f, sheet, rows, bold); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return apperrors.NewStorageError("write workbook", err)
	}

	e.logger.Debug("xlsx export written",
		slog.Int("observations", len(obs)-1),
		slog.Int("trend_points", len(trend)-1))
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return apperrors.NewStorageError("cell name", err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("write %s row %d", sheet, i+1), err)
		}
	}

	if len(rows) > 0 {
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return apperrors.NewStorageError("cell name", err)
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return apperrors.NewStorageError("style header", err)
		}
	}
	return nil
}
