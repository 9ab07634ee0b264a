package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sealevel/internal/chart"
	apperrors "sealevel/internal/errors"
	"sealevel/internal/middleware"
	"sealevel/pkg/contracts/domain"
)

// PageTemplate is the template executed for the page
const PageTemplate = "index.html"

// SliderBounds are the limits of the two year sliders
type SliderBounds struct {
	StartMin, StartMax int
	EndMin, EndMax     int
}

// PageData is the view model of the page
type PageData struct {
	Title       string
	Request     domain.ChartRequest
	Slider      SliderBounds
	Dataset     *DatasetSummary
	Datasets    []DatasetSummary
	Chart       *domain.ChartView
	ImageURL    template.URL
	Error       string
	MaxUploadMB float64
}

// PageHandler serves the server rendered page, uploads from its form and
// raw chart images
type PageHandler struct {
	service      SeaLevelServiceInterface
	templates    *template.Template
	static       http.Handler
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
	maxUpload    int64
}

// NewPageHandler parses templates/*.html from assets and serves
// assets/static under /static
func NewPageHandler(service SeaLevelServiceInterface, assets fs.FS, logger *slog.Logger, errorHandler *apperrors.ErrorHandler, maxUpload int64) (*PageHandler, error) {
	tmpl, err := template.New("page").Funcs(template.FuncMap{
		"fixed": func(prec int, v float64) string { return strconv.FormatFloat(v, 'f', prec, 64) },
		"neg":   func(v float64) float64 { return -v },
	}).ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}
	if tmpl.Lookup(PageTemplate) == nil {
		return nil, fmt.Errorf("page template %s not found", PageTemplate)
	}

	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}

	return &PageHandler{
		service:      service,
		templates:    tmpl,
		static:       http.StripPrefix("/static", http.FileServer(http.FS(static))),
		logger:       logger.With(slog.String("component", "page_handler")),
		errorHandler: errorHandler,
		maxUpload:    maxUpload,
	}, nil
}

// Routes registers the page routes on r
func (h *PageHandler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.With(middleware.BodyLimit(h.bodyLimit(), h.errorHandler)).Post("/upload", h.Upload)
	r.With(middleware.ChartQuery(h.errorHandler, h.logger)).Get("/chart.{format}", h.ChartImage)
	r.Handle("/static/*", h.static)
}

func (h *PageHandler) bodyLimit() int64 {
	if h.maxUpload <= 0 {
		return 0
	}
	return h.maxUpload + multipartOverhead
}

// Index handles GET /?dataset=&start=&end=
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	req, err := middleware.ParseChartRequest(r)
	if err != nil {
		h.renderError(w, r, domain.DefaultChartRequest(), err)
		return
	}
	req.Format = domain.FormatPNG

	data, err := h.page(r.Context(), req)
	if err != nil {
		h.renderError(w, r, req, err)
		return
	}
	h.render(w, r, http.StatusOK, data)
}

// Upload handles POST /upload from the page form and redirects to the page
// showing the new dataset
func (h *PageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	form, err := readUploadForm(r)
	if err != nil {
		h.renderError(w, r, domain.DefaultChartRequest(), err)
		return
	}

	ds, err := h.service.Upload(r.Context(), form.filename, form.file)
	if err != nil {
		h.renderError(w, r, domain.DefaultChartRequest(), err)
		return
	}

	q := url.Values{}
	q.Set("dataset", ds.ID)
	for _, key := range []string{"start", "end"} {
		if v := form.fields[key]; v != "" {
			q.Set(key, v)
		}
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

// ChartImage handles GET /chart.{format}
func (h *PageHandler) ChartImage(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(chi.URLParam(r, "format"))
	if _, err := chart.ContentType(format); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	req := middleware.ChartRequestFrom(r.Context())
	req.Format = format
	view, err := h.service.Chart(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", view.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(view.Image)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(view.Image); err != nil {
		h.logger.DebugContext(r.Context(), "chart write interrupted", slog.String("error", err.Error()))
	}
}

func (h *PageHandler) page(ctx context.Context, req domain.ChartRequest) (*PageData, error) {
	data := h.basePage(ctx, req)

	view, err := h.service.Chart(ctx, req)
	if err != nil {
		return data, err
	}
	data.Chart = view
	data.Request.DatasetID = view.DatasetID
	data.ImageURL = template.URL("data:" + view.ContentType + ";base64," + base64.StdEncoding.EncodeToString(view.Image))

	if ds, err := h.service.Dataset(ctx, view.DatasetID); err == nil {
		s := Summarize(ds)
		data.Dataset = &s
	}
	return data, nil
}

func (h *PageHandler) basePage(ctx context.Context, req domain.ChartRequest) *PageData {
	data := &PageData{
		Title:   "Sea Level Prediction",
		Request: req,
		Slider: SliderBounds{
			StartMin: domain.StartYearMin, StartMax: domain.StartYearMax,
			EndMin: domain.EndYearMin, EndMax: domain.EndYearMax,
		},
	}
	if h.maxUpload > 0 {
		data.MaxUploadMB = float64(h.maxUpload) / (1 << 20)
	}
	for _, ds := range h.service.Datasets(ctx) {
		data.Datasets = append(data.Datasets, Summarize(ds))
	}
	return data
}

// renderError shows the page with the problem inline, using the status the
// API would answer with
func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, req domain.ChartRequest, err error) {
	problem := h.errorHandler.ErrorToProblem(err, r)
	h.logger.WarnContext(r.Context(), "page request failed",
		slog.Int("status", problem.Status),
		slog.String("error", err.Error()))

	data := h.basePage(r.Context(), req)
	data.Error = problem.Title
	if problem.Detail != "" {
		data.Error = problem.Title + ": " + problem.Detail
	}
	h.render(w, r, problem.Status, data)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, data *PageData) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, PageTemplate, data); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.NewRenderError("page template failed", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
