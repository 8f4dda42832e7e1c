package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/wlocate/wlocate/internal/api/middleware"
)

func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader
}

// counterPoints returns the data points of an Int64 sum instrument.
func counterPoints(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			return sum.DataPoints
		}
	}
	return nil
}

func attrValue(set attribute.Set, key attribute.Key) string {
	v, ok := set.Value(key)
	if !ok {
		return ""
	}
	return v.Emit()
}

func TestNewMetrics(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)
	assert.NotNil(t, metrics)
}

func TestMetrics_Middleware_LabelsByRoutePattern(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/locations/{bssid}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, bssid := range []string{"00:11:22:33:44:55", "66:77:88:99:aa:bb"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/locations/"+bssid, http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	points := counterPoints(t, reader, "http.server.request.total")
	require.Len(t, points, 1, "both lookups share one series")
	assert.Equal(t, int64(2), points[0].Value)
	assert.Equal(t, "/v1/locations/{bssid}", attrValue(points[0].Attributes, "http.route"))
	assert.Equal(t, "200", attrValue(points[0].Attributes, "http.response.status_code"))
}

func TestMetrics_Middleware_Unmatched(t *testing.T) {
	reader := setupTestMeter(t)
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/resource", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	points := counterPoints(t, reader, "http.server.request.total")
	require.Len(t, points, 1)
	assert.Equal(t, "unmatched", attrValue(points[0].Attributes, "http.route"))
	assert.Equal(t, "500", attrValue(points[0].Attributes, "http.response.status_code"))
}

func TestMetrics_Middleware_DefaultStatusCode(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("response"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "response", w.Body.String())
}

func TestProviderMetrics_RecordRequest(t *testing.T) {
	reader := setupTestMeter(t)
	pm, err := middleware.NewProviderMetrics()
	require.NoError(t, err)

	pm.RecordRequest("apple-wloc", "query", 20*time.Millisecond, nil)
	pm.RecordRequest("apple-wloc", "query", 30*time.Millisecond, errors.New("boom"))

	points := counterPoints(t, reader, "provider.request.total")
	require.Len(t, points, 2)

	byError := map[string]int64{}
	for _, p := range points {
		assert.Equal(t, "apple-wloc", attrValue(p.Attributes, "provider.name"))
		byError[attrValue(p.Attributes, "error")] += p.Value
	}
	assert.Equal(t, map[string]int64{"false": 1, "true": 1}, byError)
}
