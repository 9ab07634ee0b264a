package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "sealevel/internal/errors"
	"sealevel/internal/regression"
	"sealevel/internal/shared/testutil"
	"sealevel/pkg/contracts/domain"
)

func newTestLoader(t *testing.T, opts Options) *Loader {
	logger, _ := testutil.NewTestLogger(t)
	return NewLoader(opts, logger)
}

func TestLoader_Sample(t *testing.T) {
	l := newTestLoader(t, Options{})

	ds, err := l.Sample(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, SampleName, ds.Name)
	assert.Equal(t, domain.SourceSample, ds.Source)
	assert.Equal(t, 134, ds.Len())
	assert.Zero(t, ds.DroppedRows)
	assert.Len(t, ds.ID, idLength)
	assert.Equal(t, testutil.EPAHeader, ds.Columns)

	first, last := ds.YearSpan()
	assert.Equal(t, 1880.0, first)
	assert.Equal(t, 2013.0, last)
}

func TestLoader_SampleFit(t *testing.T) {
	ds, err := newTestLoader(t, Options{}).Sample(context.Background(), "")
	require.NoError(t, err)

	fit, err := regression.FitDataset(ds)
	require.NoError(t, err)

	assert.Equal(t, 134, fit.N)
	assert.InDelta(t, 0.0603111166, fit.Slope, 1e-8)
	assert.InDelta(t, -113.7699799, fit.Intercept, 1e-5)
}

func TestLoader_SampleOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.csv")
	require.NoError(t, os.WriteFile(path, []byte(testutil.EPACSV(testutil.LinearObservations(1990, 1999, 0.1, 0))), 0o644))

	l := newTestLoader(t, Options{})

	ds, err := l.Sample(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 10, ds.Len())
	assert.Equal(t, "custom.csv", ds.Name)

	ds, err = l.Sample(context.Background(), filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	assert.Equal(t, 134, ds.Len())
}

func TestLoader_ParseCSV_DropsAndSorts(t *testing.T) {
	raw := "Year,CSIRO Adjusted Sea Level\n" +
		"2001,1.5\n" +
		"2000,1.0\n" +
		",2\n" +
		"2002,\n" +
		"2003,abc\n" +
		"2004,NaN\n"

	ds, err := newTestLoader(t, Options{}).Parse(context.Background(), "upload.csv", domain.SourceUpload, []byte(raw))
	require.NoError(t, err)

	assert.Equal(t, []domain.Observation{{Year: 2000, Level: 1.0}, {Year: 2001, Level: 1.5}}, ds.Observations)
	assert.Equal(t, 4, ds.DroppedRows)
	assert.Equal(t, domain.SourceUpload, ds.Source)
}

func TestLoader_ParseCSV_ByteOrderMark(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Year,CSIRO Adjusted Sea Level\n2000,1\n2001,2\n")...)

	ds, err := newTestLoader(t, Options{}).Parse(context.Background(), "bom.csv", domain.SourceUpload, raw)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestLoader_CustomColumns(t *testing.T) {
	raw := "Year,CSIRO Adjusted Sea Level,NOAA Adjusted Sea Level\n1992,6.1,\n1993,6.3,6.2\n1994,6.4,6.3\n"

	l := newTestLoader(t, Options{YearColumn: "Year", LevelColumn: "NOAA Adjusted Sea Level"})
	ds, err := l.Parse(context.Background(), "noaa.csv", domain.SourceUpload, []byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 1, ds.DroppedRows)
	assert.Equal(t, 6.2, ds.Observations[0].Level)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		raw      string
		wantErr  error
		wantType apperrors.ErrorType
	}{
		{
			name:     "missing level column",
			file:     "data.csv",
			raw:      "Year,Level\n2000,1\n",
			wantErr:  ErrMissingColumn,
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "no numeric rows",
			file:     "data.csv",
			raw:      "Year,CSIRO Adjusted Sea Level\nx,y\n,\n",
			wantErr:  ErrNoObservations,
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "header only",
			file:     "data.csv",
			raw:      "Year,CSIRO Adjusted Sea Level\n",
			wantErr:  ErrNoObservations,
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "header and blank lines",
			file:     "data.csv",
			raw:      "\xEF\xBB\xBFYear,CSIRO Adjusted Sea Level\r\n,\r\n\r\n",
			wantErr:  ErrNoObservations,
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "empty",
			file:     "data.csv",
			raw:      "  \n",
			wantErr:  ErrEmptyInput,
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "unsupported extension",
			file:     "data.json",
			raw:      `{"Year": 2000}`,
			wantErr:  ErrUnsupportedFormat,
			wantType: apperrors.ErrTypeUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader(t, Options{}).Parse(context.Background(), tt.file, domain.SourceUpload, []byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			typ, ok := apperrors.TypeOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, typ)
		})
	}
}

func TestLoader_Read_SizeLimit(t *testing.T) {
	raw := testutil.EPACSV(testutil.LinearObservations(1900, 2000, 0.1, 0))

	l := newTestLoader(t, Options{MaxBytes: 64})
	_, err := l.Read(context.Background(), strings.NewReader(raw), "big.csv", domain.SourceUpload)

	assert.ErrorIs(t, err, ErrTooLarge)
	typ, _ := apperrors.TypeOf(err)
	assert.Equal(t, apperrors.ErrTypeTooLarge, typ)

	l = newTestLoader(t, Options{MaxBytes: int64(len(raw))})
	ds, err := l.Read(context.Background(), strings.NewReader(raw), "exact.csv", domain.SourceUpload)
	require.NoError(t, err)
	assert.Equal(t, 101, ds.Len())
}

func TestLoader_Parse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestLoader(t, Options{}).Parse(ctx, "a.csv", domain.SourceUpload, SampleBytes())
	assert.ErrorIs(t, err, context.Canceled)
}

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoader_ParseXLSX(t *testing.T) {
	raw := buildWorkbook(t, [][]interface{}{
		{"Year", "CSIRO Adjusted Sea Level", "Lower Error Bound"},
		{2002.0, 7.1, 6.9},
		{2000.0, 6.9, 6.7},
		{2001.0, "", 6.8},
		{2003.0, 7.3},
	})

	l := newTestLoader(t, Options{})

	for _, name := range []string{"levels.xlsx", "levels"} {
		t.Run(name, func(t *testing.T) {
			ds, err := l.Parse(context.Background(), name, domain.SourceUpload, raw)
			require.NoError(t, err)

			require.Equal(t, 3, ds.Len())
			assert.Equal(t, 1, ds.DroppedRows)
			assert.Equal(t, 2000.0, ds.Observations[0].Year)
			assert.Equal(t, 7.3, ds.Observations[2].Level)
		})
	}
}

func TestLoader_ParseXLSX_HeaderOnly(t *testing.T) {
	raw := buildWorkbook(t, [][]interface{}{{"Year", "CSIRO Adjusted Sea Level"}})

	_, err := newTestLoader(t, Options{}).Parse(context.Background(), "levels.xlsx", domain.SourceUpload, raw)

	assert.ErrorIs(t, err, ErrNoObservations)
}

func TestLoader_ParseXLSX_Corrupt(t *testing.T) {
	raw := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 32)...)

	_, err := newTestLoader(t, Options{}).Parse(context.Background(), "broken.xlsx", domain.SourceUpload, raw)

	typ, ok := apperrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrTypeParsing, typ)
}

func TestLoader_FromRecords(t *testing.T) {
	records := [][]string{
		{"Year", "CSIRO Adjusted Sea Level", "Extra"},
		{"1990", "5.1"},
		{"", "", ""},
		{"1991", "5.3", "x"},
	}

	ds, err := newTestLoader(t, Options{}).FromRecords("records", domain.SourceSheets, records, "")
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Len())
	assert.Zero(t, ds.DroppedRows)
	assert.NotEmpty(t, ds.Fingerprint)

	_, err = newTestLoader(t, Options{}).FromRecords("records", domain.SourceSheets, nil, "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = newTestLoader(t, Options{}).FromRecords("records", domain.SourceSheets,
		[][]string{{"Year", "CSIRO Adjusted Sea Level"}, {"", ""}}, "")
	assert.ErrorIs(t, err, ErrNoObservations)
	typ, ok := apperrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrTypeParsing, typ)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{name: "data.CSV", want: FormatCSV},
		{name: "data.txt", want: FormatCSV},
		{name: "data.xlsx", want: FormatXLSX},
		{name: "blob", raw: []byte("PK\x03\x04rest"), want: FormatXLSX},
		{name: "blob", raw: []byte("Year,Level"), want: FormatCSV},
	}

	for _, tt := range tests {
		got, err := DetectFormat(tt.name, tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}
}
