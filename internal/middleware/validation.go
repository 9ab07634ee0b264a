package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	apperrors "sealevel/internal/errors"
	"sealevel/pkg/contracts/domain"
)

type chartRequestKey struct{}

// ChartQuery parses the dataset, start, end and format query parameters into
// a domain.ChartRequest stored on the context. Missing parameters take the
// slider defaults. Range checks are left to the service validator; only
// malformed numbers are rejected here.
func ChartQuery(handler *apperrors.ErrorHandler, logger *slog.Logger) func(next http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "chart_query"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := ParseChartRequest(r)
			if err != nil {
				logger.DebugContext(r.Context(), "rejected chart query",
					slog.String("query", r.URL.RawQuery),
					slog.String("error", err.Error()))
				handler.HandleError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), chartRequestKey{}, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseChartRequest reads a chart request from the query string
func ParseChartRequest(r *http.Request) (domain.ChartRequest, error) {
	q := r.URL.Query()
	req := domain.DefaultChartRequest()
	req.DatasetID = strings.TrimSpace(q.Get("dataset"))

	var err error
	if req.Start, err = intParam(q.Get("start"), req.Start, "start"); err != nil {
		return req, err
	}
	if req.End, err = intParam(q.Get("end"), req.End, "end"); err != nil {
		return req, err
	}
	if f := q.Get("format"); f != "" {
		req.Format = strings.ToLower(f)
	}
	return req, nil
}

func intParam(raw string, def int, name string) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.ErrValidation(name, fmt.Sprintf("%s must be a whole year, got %q", name, raw))
	}
	return v, nil
}

// ChartRequestFrom returns the request parsed by ChartQuery, or the defaults
func ChartRequestFrom(ctx context.Context) domain.ChartRequest {
	if req, ok := ctx.Value(chartRequestKey{}).(domain.ChartRequest); ok {
		return req
	}
	return domain.DefaultChartRequest()
}

// BodyLimit caps request bodies at limit bytes. Requests that declare a
// larger Content-Length are refused up front; others fail on read.
func BodyLimit(limit int64, handler *apperrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				handler.HandleError(w, r, apperrors.NewWithDetails(
					http.StatusRequestEntityTooLarge,
					apperrors.ErrPayloadTooLarge.ErrorCode,
					apperrors.ErrPayloadTooLarge.Message,
					map[string]interface{}{
						"max_size": limit,
						"size":     r.ContentLength,
					},
				))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeValidator ensures requests with a body use one of the allowed
// media types
func ContentTypeValidator(handler *apperrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				handler.HandleError(w, r, apperrors.New(
					http.StatusBadRequest,
					"MISSING_CONTENT_TYPE",
					"Content-Type header is required",
				))
				return
			}

			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil {
				mediaType = contentType
			}
			for _, allowed := range contentTypes {
				if strings.EqualFold(mediaType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			handler.HandleError(w, r, apperrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]interface{}{
					"content_type": mediaType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}
