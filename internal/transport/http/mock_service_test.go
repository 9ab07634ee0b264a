package http

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"sealevel/internal/services"
	"sealevel/pkg/contracts/domain"
)

// MockSeaLevelService is a mock implementation of SeaLevelServiceInterface
type MockSeaLevelService struct {
	mock.Mock
}

func (m *MockSeaLevelService) Default(ctx context.Context) (*domain.Dataset, error) {
	args := m.Called()
	ds, _ := args.Get(0).(*domain.Dataset)
	return ds, args.Error(1)
}

func (m *MockSeaLevelService) Dataset(ctx context.Context, id string) (*domain.Dataset, error) {
	args := m.Called(id)
	ds, _ := args.Get(0).(*domain.Dataset)
	return ds, args.Error(1)
}

func (m *MockSeaLevelService) Datasets(ctx context.Context) []*domain.Dataset {
	args := m.Called()
	list, _ := args.Get(0).([]*domain.Dataset)
	return list
}

func (m *MockSeaLevelService) Upload(ctx context.Context, filename string, r io.Reader) (*domain.Dataset, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(filename, string(body))
	ds, _ := args.Get(0).(*domain.Dataset)
	return ds, args.Error(1)
}

func (m *MockSeaLevelService) FitFor(ctx context.Context, id string) (domain.Fit, error) {
	args := m.Called(id)
	return args.Get(0).(domain.Fit), args.Error(1)
}

func (m *MockSeaLevelService) Observations(ctx context.Context, id string, rng *domain.YearRange) ([]domain.Observation, error) {
	args := m.Called(id, rng)
	obs, _ := args.Get(0).([]domain.Observation)
	return obs, args.Error(1)
}

func (m *MockSeaLevelService) Chart(ctx context.Context, req domain.ChartRequest) (*domain.ChartView, error) {
	args := m.Called(req)
	view, _ := args.Get(0).(*domain.ChartView)
	return view, args.Error(1)
}

func (m *MockSeaLevelService) Export(ctx context.Context, req domain.ChartRequest, format string, w io.Writer) (*services.ExportResult, error) {
	args := m.Called(req, format)
	if body, ok := args.Get(2).(string); ok {
		_, _ = io.WriteString(w, body)
	}
	res, _ := args.Get(0).(*services.ExportResult)
	return res, args.Error(1)
}

// MockHealthService is a mock implementation of HealthServiceInterface
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called().Get(0).(services.HealthStatus)
}

func (m *MockHealthService) Version() map[string]interface{} {
	return m.Called().Get(0).(map[string]interface{})
}
