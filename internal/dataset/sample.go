package dataset

import (
	"context"
	_ "embed"
	"log/slog"
	"os"

	"sealevel/pkg/contracts/domain"
)

// SampleName is the display name of the bundled dataset. The table is a
// synthetic 1880-2013 series in the EPA column layout, not the published
// EPA/CSIRO record; upload epa-sea-level.csv to analyse the real data.
const SampleName = "synthetic-sea-level.csv"

//go:embed data/synthetic-sea-level.csv
var sampleCSV []byte

// SampleBytes returns a copy of the embedded sample
func SampleBytes() []byte {
	return append([]byte(nil), sampleCSV...)
}

// Sample loads the sample dataset. A readable override file wins over the
// embedded copy.
func (l *Loader) Sample(ctx context.Context, override string) (*domain.Dataset, error) {
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return l.LoadFile(ctx, override, domain.SourceSample)
		}
		l.logger.Warn("sample override not found, using embedded dataset",
			slog.String("path", override))
	}
	return l.Parse(ctx, SampleName, domain.SourceSample, sampleCSV)
}
