package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"sealevel/internal/chart"
	"sealevel/internal/dataset"
	apperrors "sealevel/internal/errors"
	"sealevel/internal/exporter"
	"sealevel/internal/infrastructure"
	"sealevel/internal/regression"
	"sealevel/pkg/contracts/domain"
)

// Notifier pushes events to connected browsers
type Notifier interface {
	Broadcast(messageType string, data interface{})
}

// SeaLevelDeps are the collaborators of a SeaLevelService. Loader, Cache
// and Renderer are required; the rest have no-op defaults.
type SeaLevelDeps struct {
	Loader     *dataset.Loader
	Cache      *dataset.Cache
	Sheets     *dataset.SheetsSource
	Renderer   *chart.Renderer
	Exporter   *exporter.Exporter
	Notifier   Notifier
	Tracer     trace.Tracer
	Metrics    *infrastructure.BusinessMetrics
	Logger     *slog.Logger
	SampleFile string
}

// ExportResult describes a written export
type ExportResult struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
	Rows        int    `json:"rows"`
}

// SeaLevelService composes datasets, the regression and the chart renderer
type SeaLevelService struct {
	loader     *dataset.Loader
	cache      *dataset.Cache
	sheets     *dataset.SheetsSource
	renderer   *chart.Renderer
	exporter   *exporter.Exporter
	notifier   Notifier
	tracer     trace.Tracer
	metrics    *infrastructure.BusinessMetrics
	logger     *slog.Logger
	validate   *validator.Validate
	sampleFile string
	now        func() time.Time

	group     singleflight.Group
	mu        sync.RWMutex
	defaultID string
	fits      map[string]domain.Fit
}

// NewSeaLevelService creates the service
func NewSeaLevelService(deps SeaLevelDeps) (*SeaLevelService, error) {
	if deps.Loader == nil || deps.Cache == nil || deps.Renderer == nil {
		return nil, apperrors.NewConfigError("sea level service requires a loader, cache and renderer", nil)
	}
	if deps.Logger == nil {
		deps.Logger = infrastructure.GetLogger()
	}
	if deps.Tracer == nil {
		deps.Tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.ServiceName)
	}
	if deps.Metrics == nil {
		m, err := infrastructure.CreateBusinessMetrics(nil)
		if err != nil {
			return nil, err
		}
		deps.Metrics = m
	}
	if deps.Exporter == nil {
		deps.Exporter = exporter.New(nil, deps.Logger)
	}

	return &SeaLevelService{
		loader:     deps.Loader,
		cache:      deps.Cache,
		sheets:     deps.Sheets,
		renderer:   deps.Renderer,
		exporter:   deps.Exporter,
		notifier:   deps.Notifier,
		tracer:     deps.Tracer,
		metrics:    deps.Metrics,
		logger:     deps.Logger.With(slog.String("service", "sealevel")),
		validate:   validator.New(),
		sampleFile: deps.SampleFile,
		now:        time.Now,
		fits:       make(map[string]domain.Fit),
	}, nil
}

// SetNotifier attaches the push channel used for upload events
func (s *SeaLevelService) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Default returns the sample dataset, or the configured spreadsheet. It is
// loaded once and pinned in the cache.
func (s *SeaLevelService) Default(ctx context.Context) (*domain.Dataset, error) {
	ctx, span := s.tracer.Start(ctx, "sealevel.default")
	defer span.End()

	s.mu.RLock()
	id := s.defaultID
	s.mu.RUnlock()
	if id != "" {
		if ds, ok := s.cache.Get(id); ok {
			return ds, nil
		}
	}

	v, err, _ := s.group.Do("default", func() (interface{}, error) {
		return s.loadDefault(ctx)
	})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	return v.(*domain.Dataset), nil
}

func (s *SeaLevelService) loadDefault(ctx context.Context) (*domain.Dataset, error) {
	var ds *domain.Dataset
	var err error

	if s.sheets.Enabled() {
		ds, err = s.sheets.Load(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "spreadsheet unavailable, falling back to sample",
				slog.String("error", err.Error()))
		}
	}
	if ds == nil {
		ds, err = s.loader.Sample(ctx, s.sampleFile)
	}
	if err != nil {
		s.recordLoadError(ctx, domain.SourceSample)
		return nil, fmt.Errorf("%w: %w", ErrNoDefault, err)
	}

	s.cache.Pin(ds)
	s.mu.Lock()
	s.defaultID = ds.ID
	s.mu.Unlock()

	s.recordLoad(ctx, ds)
	s.logger.InfoContext(ctx, "default dataset loaded",
		slog.String("dataset_id", ds.ID),
		slog.String("source", string(ds.Source)),
		slog.Int("rows", ds.Len()),
		slog.Int("dropped", ds.DroppedRows))
	return ds, nil
}

// DefaultID returns the ID of the default dataset, or "" before it is loaded
func (s *SeaLevelService) DefaultID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultID
}

// Upload reads a CSV or XLSX table. Identical content resolves to the
// cached dataset without parsing again.
func (s *SeaLevelService) Upload(ctx context.Context, filename string, r io.Reader) (*domain.Dataset, error) {
	ctx, span := s.tracer.Start(ctx, "sealevel.upload",
		trace.WithAttributes(attribute.String("file.name", filename)))
	defer span.End()

	raw, err := s.readLimited(r)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.recordLoadError(ctx, domain.SourceUpload)
		return nil, err
	}

	opts := s.loader.Options()
	id := dataset.IDFromFingerprint(dataset.Fingerprint(raw, opts.YearColumn, opts.LevelColumn))
	span.SetAttributes(attribute.String("dataset.id", id), attribute.Int("file.size", len(raw)))

	ds, hit := s.cache.Get(id)
	if hit {
		s.metrics.DatasetCacheHits.Add(ctx, 1)
		s.logger.DebugContext(ctx, "upload matched cached dataset", slog.String("dataset_id", id))
	} else {
		s.metrics.DatasetCacheMisses.Add(ctx, 1)
		ds, err = s.loader.Parse(ctx, filename, domain.SourceUpload, raw)
		if err != nil {
			infrastructure.RecordError(ctx, err)
			s.recordLoadError(ctx, domain.SourceUpload)
			s.logger.WarnContext(ctx, "upload rejected",
				slog.String("file", filename),
				slog.String("error", err.Error()))
			return nil, err
		}
		s.cache.Set(ds)
		s.recordLoad(ctx, ds)
		s.logger.InfoContext(ctx, "dataset uploaded",
			slog.String("dataset_id", ds.ID),
			slog.String("file", filename),
			slog.Int("rows", ds.Len()),
			slog.Int("dropped", ds.DroppedRows))
	}

	s.notify(domain.EventDatasetLoaded, map[string]interface{}{
		"id":     ds.ID,
		"name":   ds.Name,
		"n":      ds.Len(),
		"cached": hit,
	})
	return ds, nil
}

func (s *SeaLevelService) readLimited(r io.Reader) ([]byte, error) {
	limit := s.loader.Options().MaxBytes
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, apperrors.NewStorageError("read upload", err)
	}
	if limit > 0 && int64(buf.Len()) > limit {
		return nil, apperrors.NewTooLargeError(limit)
	}
	return buf.Bytes(), nil
}

// Dataset looks a dataset up by ID. An empty ID selects the default.
func (s *SeaLevelService) Dataset(ctx context.Context, id string) (*domain.Dataset, error) {
	if id == "" {
		return s.Default(ctx)
	}
	if ds, ok := s.cache.Get(id); ok {
		return ds, nil
	}
	// the default may not have been loaded yet
	if ds, err := s.Default(ctx); err == nil && ds.ID == id {
		return ds, nil
	}
	return nil, apperrors.NewAppError(apperrors.ErrTypeNotFound,
		fmt.Sprintf("dataset %q not found", id), ErrDatasetNotFound).
		WithContext("dataset", id)
}

// Datasets lists the cached datasets, default first
func (s *SeaLevelService) Datasets(ctx context.Context) []*domain.Dataset {
	if _, err := s.Default(ctx); err != nil {
		s.logger.WarnContext(ctx, "default dataset unavailable", slog.String("error", err.Error()))
	}
	return s.cache.List()
}

// FitFor returns the least squares fit of a dataset, computed once per
// dataset
func (s *SeaLevelService) FitFor(ctx context.Context, id string) (domain.Fit, error) {
	ctx, span := s.tracer.Start(ctx, "sealevel.fit")
	defer span.End()

	ds, err := s.Dataset(ctx, id)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.Fit{}, err
	}
	fit, err := s.fit(ctx, ds)
	if err != nil {
		infrastructure.RecordError(ctx, err)
	}
	return fit, err
}

func (s *SeaLevelService) fit(ctx context.Context, ds *domain.Dataset) (domain.Fit, error) {
	s.mu.RLock()
	fit, ok := s.fits[ds.ID]
	s.mu.RUnlock()
	if ok {
		return fit, nil
	}

	fit, err := regression.FitDataset(ds)
	if err != nil {
		return domain.Fit{}, apperrors.NewInsufficientDataError(
			fmt.Sprintf("cannot fit dataset %s", ds.ID), err).
			WithContext("observations", ds.Len())
	}
	s.metrics.RegressionFits.Add(ctx, 1)

	s.mu.Lock()
	s.fits[ds.ID] = fit
	s.pruneFits()
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "regression fitted",
		slog.String("dataset_id", ds.ID),
		slog.Float64("slope", fit.Slope),
		slog.Float64("intercept", fit.Intercept),
		slog.Float64("r_value", fit.RValue))
	return fit, nil
}

// pruneFits drops fits of datasets that left the cache. Callers hold s.mu.
func (s *SeaLevelService) pruneFits() {
	if len(s.fits) <= s.cache.Stats().MaxSize+1 {
		return
	}
	live := make(map[string]bool)
	for _, ds := range s.cache.List() {
		live[ds.ID] = true
	}
	for id := range s.fits {
		if !live[id] {
			delete(s.fits, id)
		}
	}
}

// Observations returns the observations of a dataset, restricted to rng when
// it is non-nil
func (s *SeaLevelService) Observations(ctx context.Context, id string, rng *domain.YearRange) ([]domain.Observation, error) {
	ds, err := s.Dataset(ctx, id)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		return ds.Observations, nil
	}
	if rng.End < rng.Start {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			fmt.Sprintf("start year %d is after end year %d", rng.Start, rng.End), ErrInvalidRange)
	}
	return ds.Within(*rng), nil
}

// Chart validates req, fits the dataset and renders the requested range
func (s *SeaLevelService) Chart(ctx context.Context, req domain.ChartRequest) (*domain.ChartView, error) {
	if req.Format == "" {
		req.Format = domain.FormatPNG
	}

	ctx, span := s.tracer.Start(ctx, "sealevel.chart", trace.WithAttributes(
		attribute.String("dataset.id", req.DatasetID),
		attribute.Int("range.start", req.Start),
		attribute.Int("range.end", req.End),
		attribute.String("chart.format", req.Format),
	))
	defer span.End()

	view, err := s.chart(ctx, req)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	return view, nil
}

func (s *SeaLevelService) chart(ctx context.Context, req domain.ChartRequest) (*domain.ChartView, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	ds, err := s.Dataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	fit, err := s.fit(ctx, ds)
	if err != nil {
		return nil, err
	}

	rng := req.Range()
	trend := regression.Trend(fit, rng)

	started := time.Now()
	res, err := s.renderer.Render(chart.Input{
		Observations: ds.Observations,
		Trend:        trend,
		Range:        rng,
	}, req.Format)
	if err != nil {
		s.metrics.SystemErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("component", "chart")))
		return nil, err
	}

	formatAttr := metric.WithAttributes(attribute.String("format", req.Format))
	s.metrics.ChartRenders.Add(ctx, 1, formatAttr)
	s.metrics.ChartRenderDuration.Record(ctx, time.Since(started).Seconds(), formatAttr)

	return &domain.ChartView{
		DatasetID:   ds.ID,
		Range:       rng,
		Fit:         fit,
		Trend:       trend,
		Visible:     chart.Visible(ds.Observations, rng),
		Image:       res.Image,
		ContentType: res.ContentType,
		Width:       res.Width,
		Height:      res.Height,
		Hotspots:    res.Hotspots,
	}, nil
}

// Report builds the export table for a dataset and range
func (s *SeaLevelService) Report(ctx context.Context, req domain.ChartRequest) (exporter.Report, error) {
	req.Format = ""
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return exporter.Report{}, err
	}
	ds, err := s.Dataset(ctx, req.DatasetID)
	if err != nil {
		return exporter.Report{}, err
	}
	fit, err := s.fit(ctx, ds)
	if err != nil {
		return exporter.Report{}, err
	}
	return exporter.NewReport(ds, fit, req.Range(), nil, s.now()), nil
}

// Export writes the observations, trend and fit for req as csv or xlsx
func (s *SeaLevelService) Export(ctx context.Context, req domain.ChartRequest, format string, w io.Writer) (*ExportResult, error) {
	ctx, span := s.tracer.Start(ctx, "sealevel.export", trace.WithAttributes(
		attribute.String("export.format", format),
	))
	defer span.End()

	if _, err := exporter.ContentType(format); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	rep, err := s.Report(ctx, req)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	contentType, err := s.exporter.Write(w, format, rep)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	s.metrics.Exports.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))

	return &ExportResult{
		ContentType: contentType,
		FileName:    rep.FileName(format),
		Rows:        len(rep.Rows()),
	}, nil
}

// SaveExport writes an export into the exports directory and returns its path
func (s *SeaLevelService) SaveExport(ctx context.Context, req domain.ChartRequest, format string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "sealevel.save_export")
	defer span.End()

	rep, err := s.Report(ctx, req)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return "", err
	}
	path, err := s.exporter.SaveFile(format, rep)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return "", err
	}
	s.metrics.Exports.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
	s.logger.InfoContext(ctx, "export saved", slog.String("path", path))
	return path, nil
}

// CacheStats reports dataset cache usage
func (s *SeaLevelService) CacheStats() dataset.CacheStats {
	return s.cache.Stats()
}

// Close stops the cache sweeper
func (s *SeaLevelService) Close() {
	s.cache.Stop()
}

func (s *SeaLevelService) notify(event string, data interface{}) {
	s.mu.RLock()
	n := s.notifier
	s.mu.RUnlock()
	if n != nil {
		n.Broadcast(event, data)
	}
}

func (s *SeaLevelService) recordLoad(ctx context.Context, ds *domain.Dataset) {
	source := metric.WithAttributes(attribute.String("source", string(ds.Source)))
	s.metrics.DatasetLoads.Add(ctx, 1, source)
	s.metrics.DatasetRows.Record(ctx, int64(ds.Len()), source)
}

func (s *SeaLevelService) recordLoadError(ctx context.Context, source domain.DatasetSource) {
	s.metrics.DatasetLoadErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(source))))
}

// IsNotFound reports whether err means an unknown dataset
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDatasetNotFound)
}
