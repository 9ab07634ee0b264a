package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealevel/internal/config"
	apperrors "sealevel/internal/errors"
	"sealevel/internal/services"
	"sealevel/internal/shared/testutil"
	ws "sealevel/internal/websocket"
	"sealevel/pkg/contracts/domain"
	"sealevel/web"
)

func fixtureDataset() *domain.Dataset {
	return testutil.LinearDataset(1880, 2013, 0.063, -119.1)
}

func fixtureView(req domain.ChartRequest) *domain.ChartView {
	return &domain.ChartView{
		DatasetID:   "fixture",
		Range:       req.Range(),
		Fit:         domain.Fit{Slope: 0.063, Intercept: -119.1, RSquared: 0.97, N: 134},
		Trend:       []domain.TrendPoint{},
		Visible:     []domain.Observation{{Year: 1990, Level: 6.4}},
		Image:       []byte("\x89PNG-fixture"),
		ContentType: "image/png",
		Width:       768,
		Height:      480,
		Hotspots:    []domain.Hotspot{{Year: 1990, Level: 6.4, X: 100, Y: 200, Radius: 5, Label: "1990: 6.40 in"}},
	}
}

func notFound(id string) error {
	return apperrors.NewAppError(apperrors.ErrTypeNotFound, "dataset \""+id+"\" not found", services.ErrDatasetNotFound)
}

type routerOptions struct {
	hub     *ws.Hub
	metrics http.Handler
	health  HealthServiceInterface
}

func newTestRouter(t *testing.T, svc *MockSeaLevelService, opts routerOptions) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	cfg := config.Default()
	cfg.Security.RateLimit.Enabled = false

	r, err := NewRouter(RouterConfig{
		Config:   cfg,
		SeaLevel: svc,
		Health:   opts.health,
		Hub:      opts.hub,
		Assets:   web.Assets(),
		Metrics:  opts.metrics,
		Logger:   logger,
	})
	require.NoError(t, err)
	return r
}

func do(h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem), rec.Body.String())
	return problem
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, key := range []string{"start", "end"} {
		if v, ok := fields[key]; ok {
			require.NoError(t, mw.WriteField(key, v))
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRouter_HealthRoutes(t *testing.T) {
	health := new(MockHealthService)
	health.On("HealthCheck").Return(services.HealthStatus{Status: "ok"})
	health.On("ReadinessCheck").Return(services.HealthStatus{Status: "not_ready"})
	health.On("LivenessCheck").Return(services.HealthStatus{Status: "alive"})
	health.On("Version").Return(map[string]interface{}{"version": "1.0.0"})

	r := newTestRouter(t, new(MockSeaLevelService), routerOptions{health: health})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/api/health", http.StatusOK, `"status":"ok"`},
		{"/api/health/ready", http.StatusServiceUnavailable, `"status":"not_ready"`},
		{"/api/health/live", http.StatusOK, `"status":"alive"`},
		{"/api/version", http.StatusOK, `"version":"1.0.0"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(r, http.MethodGet, tt.path, nil, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRouter_NotFoundIsProblem(t *testing.T) {
	r := newTestRouter(t, new(MockSeaLevelService), routerOptions{})

	rec := do(r, http.MethodGet, "/nope", nil, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, apperrors.TypeNotFound, problem["type"])

	rec = do(r, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics route is only mounted with an exporter")
}

func TestRouter_Metrics(t *testing.T) {
	exposition := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# HELP sealevel_http_requests_total\n")
	})
	r := newTestRouter(t, new(MockSeaLevelService), routerOptions{metrics: exposition})

	rec := do(r, http.MethodGet, "/metrics", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sealevel_http_requests_total")
}

func TestRouter_ClientLogs(t *testing.T) {
	r := newTestRouter(t, new(MockSeaLevelService), routerOptions{})

	rec := do(r, http.MethodPost, "/api/logs", strings.NewReader(`{"level":"warn","message":"websocket closed","source":"page"}`), "application/json")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(r, http.MethodPost, "/api/logs", strings.NewReader(`{"level":"warn"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/logs", strings.NewReader(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_WebSocketRangeRequest(t *testing.T) {
	svc := new(MockSeaLevelService)
	req := domain.ChartRequest{Start: 1990, End: 2030, Format: domain.FormatPNG}
	svc.On("Chart", req).Return(fixtureView(req), nil)

	logger, _ := testutil.NewTestLogger(t)
	hub := ws.NewHub(config.WebSocketConfig{}, svc, nil, logger)
	hub.Start()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(newTestRouter(t, svc, routerOptions{hub: hub}))
	t.Cleanup(server.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	read := func() map[string]interface{} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, ws.TypeConnection, read()["type"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "range", "start": 1990, "end": 2030}))
	msg := read()
	require.Equal(t, ws.TypeChart, msg["type"])
	data := msg["data"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(data["image"].(string), "data:image/png;base64,"))
	svc.AssertExpectations(t)
}

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewWebSocketHandler(nil, config.WebSocketConfig{}, []string{"http://localhost:8080"}, logger)

	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "example.com", true},
		{"http://localhost:8080", "127.0.0.1:8080", true},
		{"http://example.com", "example.com", true},
		{"http://evil.example", "localhost:8080", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Host = tt.host
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, h.checkOrigin(req), tt.origin)
	}
}
