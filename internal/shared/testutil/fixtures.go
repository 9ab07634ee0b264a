package testutil

import (
	"fmt"
	"strings"
	"time"

	"sealevel/pkg/contracts/domain"
)

// EPAHeader is the header row of the EPA sea level CSV
var EPAHeader = []string{
	"Year",
	"CSIRO Adjusted Sea Level",
	"Lower Error Bound",
	"Upper Error Bound",
	"NOAA Adjusted Sea Level",
}

// LinearObservations returns one observation per year on level = slope*year + intercept
func LinearObservations(first, last int, slope, intercept float64) []domain.Observation {
	obs := make([]domain.Observation, 0, last-first+1)
	for y := first; y <= last; y++ {
		obs = append(obs, domain.Observation{Year: float64(y), Level: slope*float64(y) + intercept})
	}
	return obs
}

// LinearDataset wraps LinearObservations in a sample-sourced dataset
func LinearDataset(first, last int, slope, intercept float64) *domain.Dataset {
	return &domain.Dataset{
		ID:           "fixture",
		Name:         "fixture.csv",
		Source:       domain.SourceSample,
		Fingerprint:  fmt.Sprintf("linear-%d-%d-%g-%g", first, last, slope, intercept),
		Columns:      append([]string(nil), EPAHeader...),
		Observations: LinearObservations(first, last, slope, intercept),
		LoadedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// EPACSV renders observations as a CSV in the EPA layout. Error bounds are
// derived from the level and the NOAA column is left empty.
func EPACSV(obs []domain.Observation) string {
	var b strings.Builder
	b.WriteString(strings.Join(EPAHeader, ","))
	b.WriteString("\n")
	for _, o := range obs {
		fmt.Fprintf(&b, "%g,%g,%g,%g,\n", o.Year, o.Level, o.Level-0.5, o.Level+0.5)
	}
	return b.String()
}
