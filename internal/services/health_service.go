package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"sealevel/internal/config"
	"sealevel/internal/dataset"
	"sealevel/pkg/contracts"
	"sealevel/pkg/contracts/domain"
)

// DatasetHealth is the part of SeaLevelService the health checks probe
type DatasetHealth interface {
	Default(ctx context.Context) (*domain.Dataset, error)
	CacheStats() dataset.CacheStats
}

// ClientCounter reports connected websocket clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	paths     *config.Paths
	datasets  DatasetHealth
	hub       ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. hub and paths may be nil.
func NewHealthService(datasets DatasetHealth, hub ClientCounter, paths *config.Paths, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   contracts.Version,
		buildTime: contracts.BuildTime,
		buildID:   contracts.GitCommit,
		paths:     paths,
		datasets:  datasets,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health with dataset cache statistics
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}
	if hs.datasets != nil {
		status.Services["cache"] = hs.datasets.CacheStats()
	}
	if hs.hub != nil {
		status.Services["websocket_clients"] = hs.hub.ClientCount()
	}

	hs.logger.DebugContext(ctx, "health check", slog.String("status", status.Status))
	return status
}

// ReadinessCheck reports whether the default dataset can be served and
// exports can be written
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"dataset":   hs.checkDatasetHealth(ctx),
			"exports":   hs.checkExportsHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "readiness check failed",
				slog.String("component", name),
				slog.String("message", sh.Message))
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"api_version":  contracts.APIVersion,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" && hs.buildTime != "unknown" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" && hs.buildID != "unknown" {
		result["build_id"] = hs.buildID
	}
	return result
}

func (hs *HealthService) checkDatasetHealth(ctx context.Context) ServiceHealth {
	if hs.datasets == nil {
		return ServiceHealth{Status: "not_ready", Message: "dataset service not initialized"}
	}
	ds, err := hs.datasets.Default(ctx)
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("default dataset: %v", err)}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%s: %d observations", ds.Name, ds.Len()),
	}
}

func (hs *HealthService) checkExportsHealth() ServiceHealth {
	if hs.paths == nil || hs.paths.ExportsDir == "" {
		return ServiceHealth{Status: "ready", Message: "exports are streamed only"}
	}
	if err := os.MkdirAll(hs.paths.ExportsDir, 0755); err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("cannot create exports directory: %v", err)}
	}
	f, err := os.CreateTemp(hs.paths.ExportsDir, ".ready-*")
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("cannot write to exports directory: %v", err)}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "ready", Message: "websocket disabled"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
	}
}
