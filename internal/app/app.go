package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"sealevel/internal/chart"
	"sealevel/internal/config"
	"sealevel/internal/dataset"
	"sealevel/internal/exporter"
	"sealevel/internal/infrastructure"
	"sealevel/internal/middleware"
	"sealevel/internal/services"
	handlers "sealevel/internal/transport/http"
	ws "sealevel/internal/websocket"
	"sealevel/pkg/contracts"
)

const AppName = "Sea Level Prediction"

// Options carries what NewApplication cannot load on its own. Every field
// is optional: Config falls back to config.Load, Logger to the configured
// global logger.
type Options struct {
	Config *config.Config
	Assets fs.FS
	Logger *slog.Logger
	// Sheets replaces the Google Sheets client, mainly for tests
	Sheets dataset.ValuesGetter
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	SeaLevel      *services.SeaLevelService
	Health        *services.HealthService
	WebSocketHub  *ws.Hub
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	stopOnce sync.Once
	stopErr  error
}

// NewApplication wires configuration, telemetry, services and the router
func NewApplication(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	logger := opts.Logger
	if logger == nil {
		l, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
	}

	if err := a.initializeServices(context.Background(), opts.Sheets); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := a.setupRouter(opts.Assets); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	a.createServer()

	return a, nil
}

// NewSeaLevelService builds the service stack without any HTTP surface.
// The command line tools use it directly.
func NewSeaLevelService(ctx context.Context, cfg *config.Config, paths *config.Paths, providers *infrastructure.OTelProviders, metrics *infrastructure.BusinessMetrics, sheetsGetter dataset.ValuesGetter, logger *slog.Logger) (*services.SeaLevelService, error) {
	if providers == nil {
		providers = infrastructure.NoopProviders(logger)
	}

	loader := dataset.NewLoader(dataset.Options{
		YearColumn:  cfg.Data.YearColumn,
		LevelColumn: cfg.Data.LevelColumn,
		MaxBytes:    cfg.Data.MaxUploadBytes,
	}, logger)

	var sheets *dataset.SheetsSource
	if cfg.Data.Sheets.Enabled() {
		sc := dataset.SheetsConfig{
			SpreadsheetID:   cfg.Data.Sheets.SpreadsheetID,
			Range:           cfg.Data.Sheets.Range,
			CredentialsFile: cfg.Data.Sheets.CredentialsFile,
			APIKey:          cfg.Data.Sheets.APIKey,
		}
		if sheetsGetter == nil {
			getter, err := dataset.NewSheetsService(ctx, sc)
			if err != nil {
				// The sample still serves as the default dataset
				logger.WarnContext(ctx, "Google Sheets client unavailable",
					slog.String("error", err.Error()))
			} else {
				sheetsGetter = getter
			}
		}
		sheets = dataset.NewSheetsSource(sc, sheetsGetter, loader, logger)
	}

	return services.NewSeaLevelService(services.SeaLevelDeps{
		Loader: loader,
		Cache:  dataset.NewCache(cfg.Data.CacheTTL, cfg.Data.CacheSize),
		Sheets: sheets,
		Renderer: chart.NewRenderer(chart.Options{
			WidthInches:  cfg.Chart.WidthInches,
			HeightInches: cfg.Chart.HeightInches,
			DPI:          cfg.Chart.DPI,
			PointRadius:  cfg.Chart.PointRadius,
		}),
		Exporter:   exporter.New(paths, logger),
		Tracer:     providers.Tracer,
		Metrics:    metrics,
		Logger:     logger,
		SampleFile: paths.SampleFile,
	})
}

// initializeServices initializes all application services
func (a *Application) initializeServices(ctx context.Context, sheetsGetter dataset.ValuesGetter) error {
	svc, err := NewSeaLevelService(ctx, a.Config, a.Paths, a.OTelProviders, a.Metrics, sheetsGetter, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize sea level service: %w", err)
	}
	a.SeaLevel = svc

	a.WebSocketHub = ws.NewHub(a.Config.WebSocket, svc, a.Metrics, a.Logger)
	svc.SetNotifier(a.WebSocketHub)

	a.Health = services.NewHealthService(svc, a.WebSocketHub, a.Paths, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter(assets fs.FS) error {
	otelMiddleware, err := middleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}

	router, err := handlers.NewRouter(handlers.RouterConfig{
		Config:   a.Config,
		SeaLevel: a.SeaLevel,
		Health:   a.Health,
		Hub:      a.WebSocketHub,
		Assets:   assets,
		Metrics:  a.OTelProviders.PrometheusHTTP,
		OTel:     otelMiddleware,
		Logger:   a.Logger,
	})
	if err != nil {
		return err
	}
	a.Router = router
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// everything down.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.WebSocketHub.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening",
			slog.String("address", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.performStartupHealthCheck(gctx); err != nil {
			a.Logger.WarnContext(gctx, "Startup health check warnings", slog.String("warnings", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(context.Background(), "Shutdown requested")
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully stops the application. Later calls return the first result.
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.stopErr = a.stop(ctx)
	})
	return a.stopErr
}

func (a *Application) stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	a.WebSocketHub.Stop()
	a.SeaLevel.Close()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// performStartupHealthCheck loads the default dataset and checks that the
// export and snapshot directories are writable
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	ctx, cancel := context.WithTimeout(ctx, a.Config.Server.RequestTimeout)
	defer cancel()

	start := time.Now()
	ds, err := a.SeaLevel.Default(ctx)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("default dataset: %v", err))
	} else {
		a.Logger.InfoContext(ctx, "Default dataset ready",
			slog.String("dataset_id", ds.ID),
			slog.Int("rows", ds.Len()),
			slog.Duration("duration", time.Since(start)))
	}

	directories := map[string]string{
		"Exports":   a.Paths.ExportsDir,
		"Snapshots": a.Paths.SnapshotsDir,
	}
	for name, dir := range directories {
		if dir == "" {
			continue
		}
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
