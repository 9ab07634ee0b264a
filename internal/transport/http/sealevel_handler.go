package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "sealevel/internal/errors"
	"sealevel/internal/middleware"
	"sealevel/pkg/contracts/domain"
)

// multipartOverhead is allowed on top of the upload limit for form framing
const multipartOverhead = 64 << 10

// SeaLevelHandler serves the JSON API under /api/v1/sealevel
type SeaLevelHandler struct {
	service      SeaLevelServiceInterface
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
	maxUpload    int64
}

// NewSeaLevelHandler creates the API handler. maxUpload caps upload bodies;
// zero disables the transport limit.
func NewSeaLevelHandler(service SeaLevelServiceInterface, logger *slog.Logger, errorHandler *apperrors.ErrorHandler, maxUpload int64) *SeaLevelHandler {
	return &SeaLevelHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "sealevel_handler")),
		errorHandler: errorHandler,
		maxUpload:    maxUpload,
	}
}

// DatasetSummary describes a dataset without its observations
type DatasetSummary struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Source      domain.DatasetSource `json:"source"`
	N           int                  `json:"n"`
	DroppedRows int                  `json:"dropped_rows"`
	FirstYear   float64              `json:"first_year"`
	LastYear    float64              `json:"last_year"`
	LoadedAt    time.Time            `json:"loaded_at"`
}

// Summarize builds the summary of ds
func Summarize(ds *domain.Dataset) DatasetSummary {
	first, last := ds.YearSpan()
	return DatasetSummary{
		ID:          ds.ID,
		Name:        ds.Name,
		Source:      ds.Source,
		N:           ds.Len(),
		DroppedRows: ds.DroppedRows,
		FirstYear:   first,
		LastYear:    last,
		LoadedAt:    ds.LoadedAt,
	}
}

// ObservationsResponse is returned by GET /observations
type ObservationsResponse struct {
	DatasetID    string               `json:"dataset"`
	Range        *domain.YearRange    `json:"range,omitempty"`
	N            int                  `json:"n"`
	Observations []domain.Observation `json:"observations"`
}

// Routes returns the API routes
func (h *SeaLevelHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/fit", h.GetFit)
	r.Get("/observations", h.GetObservations)
	r.With(middleware.ChartQuery(h.errorHandler, h.logger)).Get("/chart", h.GetChart)
	r.With(middleware.ChartQuery(h.errorHandler, h.logger)).Get("/export.{format}", h.GetExport)

	r.Route("/datasets", func(r chi.Router) {
		r.Get("/", h.ListDatasets)
		r.With(
			middleware.ContentTypeValidator(h.errorHandler,
				"multipart/form-data", "text/csv", "text/plain", "application/octet-stream",
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
			middleware.BodyLimit(h.bodyLimit(), h.errorHandler),
		).Post("/", h.CreateDataset)
	})

	return r
}

func (h *SeaLevelHandler) bodyLimit() int64 {
	if h.maxUpload <= 0 {
		return 0
	}
	return h.maxUpload + multipartOverhead
}

// GetFit handles GET /api/v1/sealevel/fit
func (h *SeaLevelHandler) GetFit(w http.ResponseWriter, r *http.Request) {
	fit, err := h.service.FitFor(r.Context(), r.URL.Query().Get("dataset"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, fit)
}

// GetObservations handles GET /api/v1/sealevel/observations. The range is
// applied only when start or end is given.
func (h *SeaLevelHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var rng *domain.YearRange
	if q.Has("start") || q.Has("end") {
		req, err := middleware.ParseChartRequest(r)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		yr := req.Range()
		rng = &yr
	}

	id := q.Get("dataset")
	obs, err := h.service.Observations(r.Context(), id, rng)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if id == "" {
		if ds, err := h.service.Default(r.Context()); err == nil {
			id = ds.ID
		}
	}
	if obs == nil {
		obs = []domain.Observation{}
	}

	render.JSON(w, r, ObservationsResponse{
		DatasetID:    id,
		Range:        rng,
		N:            len(obs),
		Observations: obs,
	})
}

// GetChart handles GET /api/v1/sealevel/chart. The image is base64 encoded
// in the JSON body.
func (h *SeaLevelHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Chart(r.Context(), middleware.ChartRequestFrom(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// GetExport handles GET /api/v1/sealevel/export.{format}
func (h *SeaLevelHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(chi.URLParam(r, "format"))
	req := middleware.ChartRequestFrom(r.Context())

	// buffered so a failure can still become a problem response
	var buf bytes.Buffer
	res, err := h.service.Export(r.Context(), req, format, &buf)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Export-Rows", strconv.Itoa(res.Rows))
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write interrupted", slog.String("error", err.Error()))
	}
}

// ListDatasets handles GET /api/v1/sealevel/datasets
func (h *SeaLevelHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets := h.service.Datasets(r.Context())
	out := make([]DatasetSummary, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, Summarize(ds))
	}
	render.JSON(w, r, map[string]interface{}{
		"datasets": out,
		"count":    len(out),
	})
}

// CreateDataset handles POST /api/v1/sealevel/datasets. It accepts either a
// multipart form with a "file" field or the raw table as the body, named by
// the "name" query parameter.
func (h *SeaLevelHandler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var (
		filename string
		body     io.Reader
	)
	if isMultipart(r) {
		form, err := readUploadForm(r)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		filename, body = form.filename, form.file
	} else {
		filename = r.URL.Query().Get("name")
		if filename == "" {
			filename = "upload.csv"
		}
		body = r.Body
	}

	ds, err := h.service.Upload(r.Context(), filename, body)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "dataset created",
		slog.String("dataset_id", ds.ID),
		slog.Int("rows", ds.Len()))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, Summarize(ds))
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// uploadForm is a streamed multipart upload. Fields that precede the file
// part are collected; the file itself is left unread.
type uploadForm struct {
	filename string
	file     io.Reader
	fields   map[string]string
}

func readUploadForm(r *http.Request) (*uploadForm, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, apperrors.InvalidRequestWithError(err)
	}

	form := &uploadForm{fields: make(map[string]string)}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apperrors.ErrValidation("file", "a file is required")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			if part.FileName() == "" {
				return nil, apperrors.ErrValidation("file", "a file is required")
			}
			form.filename = filepath.Base(part.FileName())
			form.file = part
			return form, nil
		}
		form.fields[part.FormName()] = readField(part)
	}
}

func readField(part *multipart.Part) string {
	b, _ := io.ReadAll(io.LimitReader(part, 256))
	return strings.TrimSpace(string(b))
}
