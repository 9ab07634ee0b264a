package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealevel/internal/infrastructure"
	"sealevel/internal/shared/testutil"
)

func TestOTelMiddleware_Handler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m, err := NewOTelMiddleware(infrastructure.NoopProviders(logger), nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/api/v1/datasets/{id}/fit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("gone"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/datasets/abc/fit", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "gone", rec.Body.String())
}

func TestNewOTelMiddleware_NilProviders(t *testing.T) {
	m, err := NewOTelMiddleware(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, m.metrics)
}

func TestResponseWriter_CapturesFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, _ = ww.Write([]byte("abc"))
	ww.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusOK, ww.statusCode)
	assert.Equal(t, int64(3), ww.bytesWritten)

	_, _, err := ww.Hijack()
	assert.Error(t, err, "recorder cannot be hijacked")
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1:5555", GetRealIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", GetRealIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", GetRealIP(req))
}
