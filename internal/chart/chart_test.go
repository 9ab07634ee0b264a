package chart

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sealevel/internal/errors"
	"sealevel/internal/regression"
	"sealevel/internal/shared/testutil"
	"sealevel/pkg/contracts/domain"
)

func testInput(t *testing.T, rng domain.YearRange) Input {
	t.Helper()
	ds := testutil.LinearDataset(1880, 2013, 0.063, -119.07)
	fit, err := regression.FitDataset(ds)
	require.NoError(t, err)
	return Input{
		Observations: ds.Observations,
		Trend:        regression.Trend(fit, rng),
		Range:        rng,
	}
}

func TestNewRenderer_Defaults(t *testing.T) {
	r := NewRenderer(Options{})
	assert.Equal(t, DefaultOptions(), r.Options())

	r = NewRenderer(Options{WidthInches: 4, HeightInches: 3, DPI: 72, PointRadius: 1})
	assert.Equal(t, 72, r.Options().DPI)
}

func TestRender_PNG(t *testing.T) {
	rng := domain.DefaultYearRange()
	res, err := NewRenderer(DefaultOptions()).Render(testInput(t, rng), domain.FormatPNG)
	require.NoError(t, err)

	assert.Equal(t, ContentTypePNG, res.ContentType)
	assert.Equal(t, 768, res.Width)
	assert.Equal(t, 480, res.Height)

	img, err := png.Decode(bytes.NewReader(res.Image))
	require.NoError(t, err)
	assert.Equal(t, res.Width, img.Bounds().Dx())
	assert.Equal(t, res.Height, img.Bounds().Dy())

	// 1980..2013 are observed
	require.Len(t, res.Hotspots, 34)
	for i, h := range res.Hotspots {
		assert.GreaterOrEqual(t, h.X, 0)
		assert.LessOrEqual(t, h.X, res.Width)
		assert.GreaterOrEqual(t, h.Y, 0)
		assert.LessOrEqual(t, h.Y, res.Height)
		assert.Positive(t, h.Radius)
		if i > 0 {
			prev := res.Hotspots[i-1]
			assert.Greater(t, h.X, prev.X, "later years sit further right")
			assert.Less(t, h.Y, prev.Y, "higher levels sit further up")
		}
	}
	assert.Equal(t, "1980: 5.67 in", res.Hotspots[0].Label)
}

func TestRender_SVG(t *testing.T) {
	res, err := NewRenderer(DefaultOptions()).Render(testInput(t, domain.YearRange{Start: 2000, End: 2051}), domain.FormatSVG)
	require.NoError(t, err)

	assert.Equal(t, ContentTypeSVG, res.ContentType)
	assert.Contains(t, string(res.Image), "<svg")
	assert.Equal(t, 576, res.Width)
	assert.Equal(t, 360, res.Height)
	assert.Len(t, res.Hotspots, 14)
}

func TestRender_NoVisiblePoints(t *testing.T) {
	res, err := NewRenderer(DefaultOptions()).Render(testInput(t, domain.YearRange{Start: 2020, End: 2051}), domain.FormatPNG)
	require.NoError(t, err)

	assert.Empty(t, res.Hotspots)
	assert.NotEmpty(t, res.Image)
}

func TestRender_SingleYear(t *testing.T) {
	res, err := NewRenderer(DefaultOptions()).Render(testInput(t, domain.YearRange{Start: 2000, End: 2000}), domain.FormatPNG)
	require.NoError(t, err)

	require.Len(t, res.Hotspots, 1)
	assert.InDelta(t, res.Width/2, res.Hotspots[0].X, float64(res.Width)/4)
}

func TestRender_Errors(t *testing.T) {
	r := NewRenderer(DefaultOptions())

	_, err := r.Render(testInput(t, domain.DefaultYearRange()), "gif")
	typ, _ := apperrors.TypeOf(err)
	assert.Equal(t, apperrors.ErrTypeUnsupportedFormat, typ)

	_, err = r.Render(Input{Range: domain.YearRange{Start: 2000, End: 1990}}, domain.FormatPNG)
	typ, _ = apperrors.TypeOf(err)
	assert.Equal(t, apperrors.ErrTypeValidation, typ)
}

func TestVisible(t *testing.T) {
	obs := testutil.LinearObservations(1990, 1999, 1, 0)

	assert.Len(t, Visible(obs, domain.YearRange{Start: 1995, End: 2005}), 5)
	assert.Empty(t, Visible(obs, domain.YearRange{Start: 2000, End: 2005}))
}

func TestLevelBounds(t *testing.T) {
	lo, hi := levelBounds(nil, nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = levelBounds([]domain.Observation{{Year: 1, Level: 2}}, nil)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)

	lo, hi = levelBounds([]domain.Observation{{Level: 0}}, []domain.TrendPoint{{Level: 10}})
	assert.InDelta(t, -0.5, lo, 1e-12)
	assert.InDelta(t, 10.5, hi, 1e-12)
}

func TestContentType(t *testing.T) {
	ct, err := ContentType("")
	require.NoError(t, err)
	assert.Equal(t, ContentTypePNG, ct)

	ct, err = ContentType(domain.FormatSVG)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeSVG, ct)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "1880: 0.00 in", Label(domain.Observation{Year: 1880}))
	assert.Equal(t, "2013: 8.98 in", Label(domain.Observation{Year: 2013, Level: 8.980314951}))
}
