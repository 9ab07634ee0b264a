package dataset

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	apperrors "sealevel/internal/errors"
	"sealevel/pkg/contracts/domain"
)

// Input formats understood by the loader
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	zipMagic  = []byte("PK\x03\x04")
	nanValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "<nil>"}
)

// Options selects the columns to read and bounds the input size
type Options struct {
	YearColumn  string
	LevelColumn string
	MaxBytes    int64
}

// Loader parses raw tables into datasets
type Loader struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewLoader creates a loader. Empty column names fall back to the EPA defaults.
func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if opts.YearColumn == "" {
		opts.YearColumn = domain.YearColumn
	}
	if opts.LevelColumn == "" {
		opts.LevelColumn = domain.LevelColumn
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		opts:   opts,
		logger: logger.With(slog.String("component", "dataset_loader")),
		now:    time.Now,
	}
}

// Options returns the loader's column selection and size limit
func (l *Loader) Options() Options {
	return l.opts
}

// DetectFormat picks a parser from the file name, sniffing the content when
// the extension is missing or unknown
func DetectFormat(name string, raw []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case "":
		if bytes.HasPrefix(raw, zipMagic) {
			return FormatXLSX, nil
		}
		return FormatCSV, nil
	default:
		return "", apperrors.NewAppError(apperrors.ErrTypeUnsupportedFormat,
			fmt.Sprintf("unsupported format %q", filepath.Ext(name)), ErrUnsupportedFormat).
			WithContext("format", strings.TrimPrefix(filepath.Ext(name), "."))
	}
}

// Read consumes r up to the size limit and parses it
func (l *Loader) Read(ctx context.Context, r io.Reader, name string, source domain.DatasetSource) (*domain.Dataset, error) {
	if l.opts.MaxBytes > 0 {
		r = io.LimitReader(r, l.opts.MaxBytes+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewStorageError("read dataset", err)
	}
	if l.opts.MaxBytes > 0 && int64(len(raw)) > l.opts.MaxBytes {
		return nil, tooLarge(l.opts.MaxBytes)
	}
	return l.Parse(ctx, name, source, raw)
}

// LoadFile reads a CSV or XLSX file from disk
func (l *Loader) LoadFile(ctx context.Context, path string, source domain.DatasetSource) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	return l.Read(ctx, f, filepath.Base(path), source)
}

// Parse dispatches raw bytes to the CSV or XLSX parser
func (l *Loader) Parse(ctx context.Context, name string, source domain.DatasetSource, raw []byte) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperrors.NewParsingError("dataset has no content", ErrEmptyInput)
	}

	format, err := DetectFormat(name, raw)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatXLSX:
		return l.ParseXLSX(name, source, raw)
	default:
		return l.ParseCSV(name, source, raw)
	}
}

// ParseCSV parses a comma separated table with a header row
func (l *Loader) ParseCSV(name string, source domain.DatasetSource, raw []byte) (*domain.Dataset, error) {
	body := bytes.TrimPrefix(raw, utf8BOM)
	if !hasDataRow(body) {
		return nil, headerOnly()
	}

	df := dataframe.ReadCSV(bytes.NewReader(body),
		dataframe.HasHeader(true),
		dataframe.WithLazyQuotes(true),
		dataframe.NaNValues(nanValues),
		dataframe.WithTypes(l.columnTypes()),
	)

	return l.fromFrame(df, name, source, Fingerprint(raw, l.opts.YearColumn, l.opts.LevelColumn))
}

// FromRecords builds a dataset from a header row followed by data rows.
// Short rows are padded and blank rows skipped.
func (l *Loader) FromRecords(name string, source domain.DatasetSource, records [][]string, fingerprint string) (*domain.Dataset, error) {
	if len(records) == 0 {
		return nil, apperrors.NewParsingError("dataset has no header row", ErrEmptyInput)
	}

	width := len(records[0])
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		if i > 0 && blank(rec) {
			continue
		}
		row := make([]string, width)
		copy(row, rec)
		rows = append(rows, row)
	}
	if len(rows) < 2 {
		return nil, headerOnly()
	}

	if fingerprint == "" {
		fingerprint = Fingerprint(recordBytes(rows), l.opts.YearColumn, l.opts.LevelColumn)
	}

	df := dataframe.LoadRecords(rows,
		dataframe.HasHeader(true),
		dataframe.NaNValues(nanValues),
		dataframe.WithTypes(l.columnTypes()),
	)

	return l.fromFrame(df, name, source, fingerprint)
}

func (l *Loader) columnTypes() map[string]series.Type {
	return map[string]series.Type{
		l.opts.YearColumn:  series.Float,
		l.opts.LevelColumn: series.Float,
	}
}

// fromFrame extracts the year and level columns, drops unusable rows and
// orders the rest by year
func (l *Loader) fromFrame(df dataframe.DataFrame, name string, source domain.DatasetSource, fingerprint string) (*domain.Dataset, error) {
	if df.Err != nil {
		return nil, apperrors.NewParsingError("parse dataset", df.Err)
	}

	names := df.Names()
	for _, col := range []string{l.opts.YearColumn, l.opts.LevelColumn} {
		if !slices.Contains(names, col) {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("column %q not found (have: %s)", col, strings.Join(names, ", ")),
				ErrMissingColumn,
			).WithContext("column", col)
		}
	}

	years := df.Col(l.opts.YearColumn).Float()
	levels := df.Col(l.opts.LevelColumn).Float()

	obs := make([]domain.Observation, 0, len(years))
	dropped := 0
	for i := range years {
		if !usable(years[i]) || !usable(levels[i]) {
			dropped++
			continue
		}
		obs = append(obs, domain.Observation{Year: years[i], Level: levels[i]})
	}

	if len(obs) == 0 {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("no numeric %q/%q pairs in %d rows", l.opts.YearColumn, l.opts.LevelColumn, len(years)),
			ErrNoObservations,
		)
	}

	slices.SortStableFunc(obs, func(a, b domain.Observation) int {
		return cmp.Compare(a.Year, b.Year)
	})

	ds := &domain.Dataset{
		ID:           IDFromFingerprint(fingerprint),
		Name:         name,
		Source:       source,
		Fingerprint:  fingerprint,
		Columns:      names,
		Observations: obs,
		DroppedRows:  dropped,
		LoadedAt:     l.now().UTC(),
	}

	l.logger.Debug("dataset parsed",
		slog.String("dataset_id", ds.ID),
		slog.String("name", name),
		slog.String("source", string(source)),
		slog.Int("rows", len(obs)),
		slog.Int("dropped", dropped))

	return ds, nil
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// recordBytes serialises records for fingerprinting
func recordBytes(rows [][]string) []byte {
	var b bytes.Buffer
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\x1f"))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func tooLarge(limit int64) error {
	err := apperrors.NewTooLargeError(limit)
	err.Cause = ErrTooLarge
	return err
}

// hasDataRow reports whether a CSV body has a non-blank line after its header
func hasDataRow(body []byte) bool {
	lines := bytes.Split(body, []byte("\n"))
	if len(lines) < 2 {
		return false
	}
	for _, line := range lines[1:] {
		if len(bytes.Trim(line, " \t\r,")) > 0 {
			return true
		}
	}
	return false
}

func headerOnly() error {
	return apperrors.NewParsingError("dataset has a header but no data rows", ErrNoObservations)
}
