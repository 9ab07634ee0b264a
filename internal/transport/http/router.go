package http

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"sealevel/internal/config"
	apperrors "sealevel/internal/errors"
	"sealevel/internal/infrastructure"
	"sealevel/internal/middleware"
	ws "sealevel/internal/websocket"
)

// RouterConfig holds what NewRouter mounts. Hub, Assets, Metrics and OTel
// are optional; their routes are skipped when nil.
type RouterConfig struct {
	Config   *config.Config
	SeaLevel SeaLevelServiceInterface
	Health   HealthServiceInterface
	Hub      *ws.Hub
	Assets   fs.FS
	Metrics  http.Handler
	OTel     *middleware.OTelMiddleware
	Logger   *slog.Logger
}

// NewRouter builds the chi router with the full middleware stack
func NewRouter(rc RouterConfig) (*chi.Mux, error) {
	cfg := rc.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := rc.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	errorHandler := apperrors.NewErrorHandler(logger, cfg.Logging.Level == "debug")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if rc.OTel != nil {
		r.Use(rc.OTel.Handler)
	}
	r.Use(apperrors.NewErrorMiddleware(errorHandler, logger).Handler)
	r.Use(middleware.SecurityHeaders)
	if cfg.Security.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: cfg.Security.AllowedOrigins,
			ExposedHeaders: []string{middleware.RequestIDHeader, "Content-Disposition", "X-Export-Rows"},
			Logger:         logger,
		}))
	}

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	if rc.Metrics != nil {
		r.Handle("/metrics", NewMetricsHandler(rc.Metrics, errorHandler))
	}
	if rc.Hub != nil {
		r.Handle("/ws", NewWebSocketHandler(rc.Hub, cfg.WebSocket, cfg.Security.AllowedOrigins, logger))
	}

	// everything below is rate limited and bounded in time
	var pageHandler *PageHandler
	if rc.Assets != nil {
		ph, err := NewPageHandler(rc.SeaLevel, rc.Assets, logger, errorHandler, cfg.Data.MaxUploadBytes)
		if err != nil {
			return nil, err
		}
		pageHandler = ph
	}

	r.Group(func(r chi.Router) {
		if cfg.Security.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst, errorHandler, logger)
			r.Use(limiter.Handler)
		}
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

		if pageHandler != nil {
			pageHandler.Routes(r)
		}

		r.Route("/api", func(r chi.Router) {
			if rc.Health != nil {
				health := NewHealthHandler(rc.Health, logger)
				r.Get("/health", health.HealthCheck)
				r.Get("/health/ready", health.ReadinessCheck)
				r.Get("/health/live", health.LivenessCheck)
				r.Get("/version", health.Version)
			}
			r.With(middleware.BodyLimit(16<<10, errorHandler)).
				Post("/logs", NewClientLogHandler(logger, errorHandler).Handle)
			if rc.SeaLevel != nil {
				r.Mount("/v1/sealevel", NewSeaLevelHandler(rc.SeaLevel, logger, errorHandler, cfg.Data.MaxUploadBytes).Routes())
			}
		})
	})

	return r, nil
}
