package exporter

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"sealevel/internal/regression"
	"sealevel/pkg/contracts/domain"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Report is the data set behind one rendered chart
type Report struct {
	Dataset     *domain.Dataset
	Fit         domain.Fit
	Range       domain.YearRange
	Trend       []domain.TrendPoint
	GeneratedAt time.Time
}

// Row is one year of the merged export table. Pointer fields are nil when
// the year has no observation or lies outside the trend range.
type Row struct {
	Year     float64
	Observed *float64
	Fitted   *float64
	Residual *float64
	Visible  bool
}

// Rows merges observations and trend points by year
func (r Report) Rows() []Row {
	byYear := make(map[float64]*Row)
	get := func(y float64) *Row {
		row, ok := byYear[y]
		if !ok {
			row = &Row{Year: y}
			byYear[y] = row
		}
		return row
	}

	if r.Dataset != nil {
		residuals := regression.Residuals(r.Fit, r.Dataset.Observations)
		for i, o := range r.Dataset.Observations {
			row := get(o.Year)
			level := o.Level
			residual := residuals[i]
			row.Observed = &level
			row.Residual = &residual
			row.Visible = o.Year >= float64(r.Range.Start) && o.Year <= float64(r.Range.End)
		}
	}
	for _, tp := range r.Trend {
		level := tp.Level
		get(tp.Year).Fitted = &level
	}

	rows := make([]Row, 0, len(byYear))
	for _, row := range byYear {
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b Row) int { return cmp.Compare(a.Year, b.Year) })
	return rows
}

// FileName returns a download name such as sealevel_1980-2020.xlsx
func (r Report) FileName(format string) string {
	return fmt.Sprintf("sealevel_%d-%d.%s", r.Range.Start, r.Range.End, format)
}

// NewReport builds a report, evaluating the trend over rng when trend is nil
func NewReport(ds *domain.Dataset, fit domain.Fit, rng domain.YearRange, trend []domain.TrendPoint, now time.Time) Report {
	if trend == nil {
		trend = regression.Trend(fit, rng)
	}
	return Report{Dataset: ds, Fit: fit, Range: rng, Trend: trend, GeneratedAt: now}
}
