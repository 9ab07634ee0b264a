package domain

import (
	"time"
)

// Default column names of the EPA sea level dataset
const (
	YearColumn  = "Year"
	LevelColumn = "CSIRO Adjusted Sea Level"
)

// Slider bounds for the year range controls
const (
	StartYearMin     = 1880
	StartYearMax     = 2020
	StartYearDefault = 1980
	EndYearMin       = 1980
	EndYearMax       = 2051
	EndYearDefault   = 2020
)

// DatasetSource describes where a dataset was loaded from
type DatasetSource string

const (
	SourceSample DatasetSource = "sample"
	SourceUpload DatasetSource = "upload"
	SourceSheets DatasetSource = "sheets"
	SourceFile   DatasetSource = "file"
)

// Observation is a single (year, adjusted sea level) measurement in inches
type Observation struct {
	Year  float64 `json:"year"`
	Level float64 `json:"level"`
}

// Dataset is a loaded and cleaned sea level table
type Dataset struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Source       DatasetSource `json:"source"`
	Fingerprint  string        `json:"fingerprint"`
	Columns      []string      `json:"columns"`
	Observations []Observation `json:"observations"`
	DroppedRows  int           `json:"dropped_rows"`
	LoadedAt     time.Time     `json:"loaded_at"`
}

// Len returns the number of usable observations
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Observations)
}

// XY splits the observations into year and level slices
func (d *Dataset) XY() (xs, ys []float64) {
	xs = make([]float64, len(d.Observations))
	ys = make([]float64, len(d.Observations))
	for i, o := range d.Observations {
		xs[i] = o.Year
		ys[i] = o.Level
	}
	return xs, ys
}

// YearSpan returns the first and last observed year
func (d *Dataset) YearSpan() (first, last float64) {
	if d.Len() == 0 {
		return 0, 0
	}
	return d.Observations[0].Year, d.Observations[len(d.Observations)-1].Year
}

// Within returns observations whose year falls inside the range
func (d *Dataset) Within(r YearRange) []Observation {
	var out []Observation
	for _, o := range d.Observations {
		if o.Year >= float64(r.Start) && o.Year <= float64(r.End) {
			out = append(out, o)
		}
	}
	return out
}

// Fit is the result of an ordinary least squares fit of level against year
type Fit struct {
	Slope           float64 `json:"slope"`
	Intercept       float64 `json:"intercept"`
	RValue          float64 `json:"r_value"`
	RSquared        float64 `json:"r_squared"`
	PValue          float64 `json:"p_value"`
	StdErr          float64 `json:"std_err"`
	InterceptStdErr float64 `json:"intercept_std_err"`
	N               int     `json:"n"`
}

// Predict evaluates the fitted line at x
func (f Fit) Predict(x float64) float64 {
	return f.Slope*x + f.Intercept
}

// YearRange is an inclusive range of whole years
type YearRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DefaultYearRange returns the slider defaults
func DefaultYearRange() YearRange {
	return YearRange{Start: StartYearDefault, End: EndYearDefault}
}

// Years returns every year from Start to End inclusive
func (r YearRange) Years() []int {
	if r.End < r.Start {
		return nil
	}
	years := make([]int, 0, r.End-r.Start+1)
	for y := r.Start; y <= r.End; y++ {
		years = append(years, y)
	}
	return years
}

// TrendPoint is a point on the fitted trend line
type TrendPoint struct {
	Year  float64 `json:"year"`
	Level float64 `json:"level"`
}
