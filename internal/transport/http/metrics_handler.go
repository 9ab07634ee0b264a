package http

import (
	"net/http"

	apperrors "sealevel/internal/errors"
)

// MetricsHandler exposes the Prometheus exposition produced by the OTel
// metric exporter
type MetricsHandler struct {
	exposition   http.Handler
	errorHandler *apperrors.ErrorHandler
}

// NewMetricsHandler wraps exposition, which is nil when the metric exporter
// is disabled
func NewMetricsHandler(exposition http.Handler, errorHandler *apperrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{exposition: exposition, errorHandler: errorHandler}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exposition == nil {
		h.errorHandler.HandleError(w, r, apperrors.New(
			http.StatusNotFound,
			"NOT_FOUND",
			"metrics exporter is disabled",
		))
		return
	}
	h.exposition.ServeHTTP(w, r)
}
