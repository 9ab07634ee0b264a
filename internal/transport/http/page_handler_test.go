package http

import (
	"net/http"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sealevel/internal/errors"
	"sealevel/internal/shared/testutil"
	"sealevel/pkg/contracts/domain"
)

func TestPageHandler_Index(t *testing.T) {
	svc := new(MockSeaLevelService)
	req := domain.ChartRequest{Start: 1990, End: 2040, Format: domain.FormatPNG}
	svc.On("Datasets").Return([]*domain.Dataset{fixtureDataset()})
	svc.On("Chart", req).Return(fixtureView(req), nil)
	svc.On("Dataset", "fixture").Return(fixtureDataset(), nil)
	r := newTestRouter(t, svc, routerOptions{})

	rec := do(r, http.MethodGet, "/?start=1990&end=2040", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	for _, want := range []string{
		"<h1>Sea Level Prediction</h1>",
		"Input Parameters",
		"By default, the sample data is loaded.",
		"The bundled sample is a synthetic series",
		"Start Year",
		"End Year",
		`src="data:image/png;base64,`,
		`coords="100,200,5"`,
		`title="1990: 6.40 in"`,
		"Impact on Coastal Communities, Ecosystems, and Infrastructure",
		"Conclusion",
		"fixture.csv, 134 observations from 1880 to 2013",
	} {
		assert.Contains(t, body, want)
	}
	assert.Contains(t, body, `value="1990"`)
	assert.Contains(t, body, `value="2040"`)
	assert.NotContains(t, body, `role="alert"`)
}

func TestPageHandler_IndexRendersErrorsInline(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		setup      func(svc *MockSeaLevelService)
		wantStatus int
		wantText   string
	}{
		{
			name:   "unknown dataset",
			target: "/?dataset=gone",
			setup: func(svc *MockSeaLevelService) {
				req := domain.DefaultChartRequest()
				req.DatasetID = "gone"
				svc.On("Chart", req).Return(nil, notFound("gone"))
			},
			wantStatus: http.StatusNotFound,
			wantText:   "Dataset Not Found",
		},
		{
			name:       "malformed year",
			target:     "/?start=soon",
			setup:      func(svc *MockSeaLevelService) {},
			wantStatus: http.StatusBadRequest,
			wantText:   "Request validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSeaLevelService)
			svc.On("Datasets").Return([]*domain.Dataset(nil))
			tt.setup(svc)
			r := newTestRouter(t, svc, routerOptions{})

			rec := do(r, http.MethodGet, tt.target, nil, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, `role="alert"`)
			assert.Contains(t, body, tt.wantText)
			assert.Contains(t, body, "Sea Level Prediction")
			assert.NotContains(t, body, `id="chart-image"`)
		})
	}
}

func TestPageHandler_Upload(t *testing.T) {
	const content = "Year,CSIRO Adjusted Sea Level\n1880,0\n1881,0.2\n"

	t.Run("redirects to the new dataset", func(t *testing.T) {
		svc := new(MockSeaLevelService)
		svc.On("Upload", "levels.csv", content).Return(fixtureDataset(), nil)
		r := newTestRouter(t, svc, routerOptions{})

		body, contentType := multipartBody(t, map[string]string{"start": "1990", "end": "2030"}, "levels.csv", content)
		rec := do(r, http.MethodPost, "/upload", body, contentType)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/?dataset=fixture&end=2030&start=1990", rec.Header().Get("Location"))
	})

	t.Run("rejected upload renders inline", func(t *testing.T) {
		svc := new(MockSeaLevelService)
		svc.On("Upload", "notes.txt", "hello").Return(nil, apperrors.NewUnsupportedFormatError("txt"))
		svc.On("Datasets").Return([]*domain.Dataset(nil))
		r := newTestRouter(t, svc, routerOptions{})

		body, contentType := multipartBody(t, nil, "notes.txt", "hello")
		rec := do(r, http.MethodPost, "/upload", body, contentType)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Contains(t, rec.Body.String(), "Unsupported Format")
	})
}

func TestPageHandler_ChartImage(t *testing.T) {
	svc := new(MockSeaLevelService)
	req := domain.ChartRequest{DatasetID: "fixture", Start: 1980, End: 2020, Format: domain.FormatSVG}
	view := fixtureView(req)
	view.Image = []byte("<svg/>")
	view.ContentType = "image/svg+xml"
	svc.On("Chart", req).Return(view, nil)
	r := newTestRouter(t, svc, routerOptions{})

	rec := do(r, http.MethodGet, "/chart.svg?dataset=fixture", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<svg/>", rec.Body.String())

	rec = do(r, http.MethodGet, "/chart.gif", nil, "")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	svc.AssertNumberOfCalls(t, "Chart", 1)
}

func TestPageHandler_Static(t *testing.T) {
	r := newTestRouter(t, new(MockSeaLevelService), routerOptions{})

	rec := do(r, http.MethodGet, "/static/main.css", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/css"))

	rec = do(r, http.MethodGet, "/static/sea-level.svg", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewPageHandler_MissingTemplate(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	assets := fstest.MapFS{
		"templates/other.html": &fstest.MapFile{Data: []byte("<p>other</p>")},
		"static/main.css":      &fstest.MapFile{Data: []byte("body{}")},
	}

	_, err := NewPageHandler(new(MockSeaLevelService), assets, logger, apperrors.NewErrorHandler(logger, false), 0)

	assert.Error(t, err)
}
