package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/wlocate/wlocate/internal/api/middleware"

// requestInstruments is a duration histogram paired with a call counter.
type requestInstruments struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

func newRequestInstruments(meter metric.Meter, prefix, subject string) (requestInstruments, error) {
	var (
		ri  requestInstruments
		err error
	)
	ri.duration, err = meter.Float64Histogram(prefix+".duration",
		metric.WithDescription("Duration of "+subject+" in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return ri, err
	}
	ri.total, err = meter.Int64Counter(prefix+".total",
		metric.WithDescription("Number of "+subject),
		metric.WithUnit("{request}"))
	return ri, err
}

func (ri requestInstruments) record(ctx context.Context, elapsed time.Duration, attrs metric.MeasurementOption) {
	ri.duration.Record(ctx, elapsed.Seconds(), attrs)
	ri.total.Add(ctx, 1, attrs)
}

// Metrics holds the HTTP server instruments.
type Metrics struct {
	requests requestInstruments
	inFlight metric.Int64UpDownCounter
}

// NewMetrics creates the HTTP server instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requests, err := newRequestInstruments(meter, "http.server.request", "HTTP server requests")
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Number of HTTP requests in progress"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, inFlight: inFlight}, nil
}

// Middleware records one measurement per request, labelled by chi route
// pattern so BSSIDs never end up in attributes.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			m.requests.record(ctx, time.Since(start), metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.response.status_code", strconv.Itoa(rec.statusCode)),
			))
		})
	}
}

// ProviderMetrics records upstream lookup calls.
type ProviderMetrics struct {
	calls requestInstruments
}

func NewProviderMetrics() (*ProviderMetrics, error) {
	calls, err := newRequestInstruments(otel.Meter(meterName), "provider.request", "provider requests")
	if err != nil {
		return nil, err
	}
	return &ProviderMetrics{calls: calls}, nil
}

// RecordRequest records one provider call. It uses a background context
// because the caller's may already be cancelled.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	m.calls.record(context.Background(), duration, metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
		attribute.Bool("error", err != nil),
	))
}
