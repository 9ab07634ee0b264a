package http

import (
	"context"
	"io"

	"sealevel/internal/services"
	"sealevel/pkg/contracts/domain"
)

// SeaLevelServiceInterface is the part of services.SeaLevelService the
// handlers use
type SeaLevelServiceInterface interface {
	Default(ctx context.Context) (*domain.Dataset, error)
	Dataset(ctx context.Context, id string) (*domain.Dataset, error)
	Datasets(ctx context.Context) []*domain.Dataset
	Upload(ctx context.Context, filename string, r io.Reader) (*domain.Dataset, error)
	FitFor(ctx context.Context, id string) (domain.Fit, error)
	Observations(ctx context.Context, id string, rng *domain.YearRange) ([]domain.Observation, error)
	Chart(ctx context.Context, req domain.ChartRequest) (*domain.ChartView, error)
	Export(ctx context.Context, req domain.ChartRequest, format string, w io.Writer) (*services.ExportResult, error)
}
