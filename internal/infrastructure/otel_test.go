package infrastructure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"sealevel/internal/config"
)

func TestInitializeOTel_Prometheus(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: "test",
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}, DiscardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	assert.Nil(t, providers.TracerProvider)
	require.NotNil(t, providers.MeterProvider)
	require.NotNil(t, providers.PrometheusHTTP)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.ChartRenders.Add(context.Background(), 3, metric.WithAttributes(attribute.String("format", "png")))

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "chart_renders_total")
	assert.Contains(t, string(body), `format="png"`)
}

func TestInitializeOTel_RepeatedInitialisation(t *testing.T) {
	cfg := OTelConfigFrom(config.Default().Telemetry)

	for i := 0; i < 2; i++ {
		providers, err := InitializeOTel(cfg, DiscardLogger())
		require.NoError(t, err)
		_, err = CreateBusinessMetrics(providers.Meter)
		require.NoError(t, err)
		require.NoError(t, providers.Shutdown(context.Background()))
	}
}

func TestInitializeOTel_StdoutTracing(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    ServiceName,
		TraceExporter:  "stdout",
		MetricExporter: "none",
		SampleRatio:    1,
	}, DiscardLogger())
	require.NoError(t, err)

	require.NotNil(t, providers.TracerProvider)
	assert.Nil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTel_UnsupportedExporter(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{TraceExporter: "zipkin"}, DiscardLogger())
	assert.ErrorContains(t, err, "unsupported trace exporter")

	_, err = InitializeOTel(&OTelConfig{MetricExporter: "statsd"}, DiscardLogger())
	assert.ErrorContains(t, err, "unsupported metric exporter")
}

func TestNoopProviders(t *testing.T) {
	providers := NoopProviders(nil)

	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NoError(t, providers.Shutdown(context.Background()))

	metrics, err := CreateBusinessMetrics(nil)
	require.NoError(t, err)
	metrics.HTTPRequestsTotal.Add(context.Background(), 1)
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.Len(t, TraceIDFromContext(ctx), 32)

	AddSpanEvent(ctx, "dataset.loaded", attribute.String("dataset.id", "abc"))
	RecordError(ctx, errors.New("boom"))
	RecordError(ctx, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)

	var names []string
	for _, ev := range ended[0].Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "dataset.loaded")
	assert.Contains(t, names, "exception")

	assert.Empty(t, TraceIDFromContext(context.Background()))
	RecordError(context.Background(), errors.New("no span"))
}
