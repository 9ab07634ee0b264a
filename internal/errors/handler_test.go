package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealevel/internal/shared/testutil"
)

func TestNewErrorHandler(t *testing.T) {
	for _, includeStack := range []bool{true, false} {
		t.Run(fmt.Sprintf("include stack %v", includeStack), func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)

			handler := NewErrorHandler(logger, includeStack)

			require.NotNil(t, handler)
			assert.Equal(t, includeStack, handler.includeStack)
			assert.NotNil(t, handler.logger)
		})
	}
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantTitle  string
	}{
		{
			name:       "context deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
			wantTitle:  "Request Timeout",
		},
		{
			name:       "api error",
			err:        ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantTitle:  "Bad Request",
		},
		{
			name:       "dataset not found api error",
			err:        ErrDatasetNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeDatasetNotFound,
			wantTitle:  "Not Found",
		},
		{
			name:       "parsing app error",
			err:        NewParsingError("missing column \"Year\"", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeDatasetInvalid,
			wantTitle:  "Invalid Dataset",
		},
		{
			name:       "wrapped insufficient data",
			err:        fmt.Errorf("fit: %w", NewInsufficientDataError("need at least two observations", nil)),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeInsufficientData,
			wantTitle:  "Insufficient Data",
		},
		{
			name:       "unsupported format",
			err:        NewUnsupportedFormatError("gif"),
			wantStatus: http.StatusUnsupportedMediaType,
			wantType:   TypeUnsupportedFormat,
			wantTitle:  "Unsupported Format",
		},
		{
			name:       "too large",
			err:        NewTooLargeError(1024),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
			wantTitle:  "Payload Too Large",
		},
		{
			name:       "upstream failure",
			err:        NewNetworkError("sheets request failed", fmt.Errorf("dial tcp: timeout")),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
			wantTitle:  "Upstream Unavailable",
		},
		{
			name:       "plain not found message",
			err:        fmt.Errorf("snapshot not found"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
			wantTitle:  "Resource Not Found",
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			wantTitle:  "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/sealevel/fit", nil)
			w := httptest.NewRecorder()

			handler.HandleError(w, req, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, tt.wantTitle, body["title"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/v1/sealevel/fit", body["instance"])
			assert.Contains(t, body, "trace_id")
		})
	}
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	h.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, w.Body.Len())
	assert.Equal(t, 0, handler.Count())
}

func TestErrorHandler_ValidatorErrors(t *testing.T) {
	type rangeReq struct {
		Start int `validate:"gte=1880,ltefield=End"`
		End   int `validate:"lte=2051"`
	}

	err := validator.New().Struct(rangeReq{Start: 2000, End: 1990})
	require.Error(t, err)

	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	problem := h.ErrorToProblem(err, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, TypeValidation, problem.Type)

	fields, ok := problem.Extensions["errors"].([]ValidationError)
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "start", fields[0].Field)
	assert.Equal(t, "must not be after end", fields[0].Message)
}

func TestErrorHandler_AppErrorContextBecomesExtension(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	problem := h.ErrorToProblem(NewUnsupportedFormatError("bmp"), httptest.NewRequest(http.MethodGet, "/chart.bmp", nil))

	assert.Equal(t, "bmp", problem.Extensions["format"])
	assert.Equal(t, string(ErrTypeUnsupportedFormat), problem.Extensions["error_code"])
}

func TestErrorHandler_RenderErrorHidesCause(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	problem := h.ErrorToProblem(NewRenderError("draw", fmt.Errorf("secret path /tmp/x")), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, problem.Status)
	assert.NotContains(t, problem.Detail, "/tmp/x")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{name: "without stack", includeStack: false},
		{name: "with stack", includeStack: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, tt.includeStack)

			w := httptest.NewRecorder()
			h.HandlePanic(w, httptest.NewRequest(http.MethodGet, "/chart.png", nil), "nil map")

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.True(t, logs.ContainsMessage("panic recovered"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.includeStack {
				assert.Equal(t, "nil map", body["panic"])
				assert.Contains(t, body, "stack")
			} else {
				assert.NotContains(t, body, "panic")
			}
		})
	}
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TypeMethodNotAllowed, body["type"])
	assert.Contains(t, body["detail"], "DELETE")
}
