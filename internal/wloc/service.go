package wloc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/wlocate/wlocate/internal/wloc"

// Transport sends an encoded request frame to the lookup service and returns
// the raw response body. Implementations treat non-2xx statuses as errors.
type Transport interface {
	// Query posts frame and returns the response body.
	Query(ctx context.Context, frame []byte) ([]byte, error)

	// Name returns the transport name for logging and metrics.
	Name() string
}

// MetricsRecorder records the outcome of provider calls.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ServiceConfig holds configuration for the lookup service.
type ServiceConfig struct {
	// Transport delivers frames to the lookup service (required).
	Transport Transport

	// Identity is written into every request header.
	// If zero, uses DefaultClientIdentity.
	Identity ClientIdentity

	// Metrics records lookup outcomes (optional).
	Metrics MetricsRecorder

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service resolves BSSIDs to locations. It holds no mutable state and is
// safe for concurrent use.
type Service struct {
	transport Transport
	identity  ClientIdentity
	metrics   MetricsRecorder
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewService creates a new lookup service.
func NewService(cfg ServiceConfig) *Service {
	identity := cfg.Identity
	if identity == (ClientIdentity{}) {
		identity = DefaultClientIdentity()
	}

	return &Service{
		transport: cfg.Transport,
		identity:  identity,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Identity returns the client identity used for request headers.
func (s *Service) Identity() ClientIdentity {
	return s.identity
}

// BasicLocation returns the latitude and longitude of a single BSSID.
func (s *Service) BasicLocation(ctx context.Context, bssid string) (lat, lon float64, err error) {
	obs, err := s.Resolve(ctx, bssid)
	if err != nil {
		return 0, 0, err
	}
	return obs.Location.Latitude, obs.Location.Longitude, nil
}

// Resolve looks up a single BSSID and returns its observation. The returned
// observation always carries a location; otherwise ErrBssidNotFound.
func (s *Service) Resolve(ctx context.Context, bssid string) (*WifiObservation, error) {
	req, err := NewRequest([]string{bssid}, DefaultQueryOptions())
	if err != nil {
		return nil, err
	}
	mac := req.Wifis[0].BSSID

	resp, err := s.query(ctx, req)
	if err != nil {
		return nil, err
	}

	obs, ok := resp.Find(mac)
	if !ok && len(resp) > 0 {
		obs = &resp[0]
	}
	if obs == nil || obs.Location == nil {
		return nil, &NotFoundError{BSSID: mac}
	}

	return obs, nil
}

// Locate queries all bssids in one request and returns every observation
// the service sent back, in server order. Use Response.Find to correlate.
func (s *Service) Locate(ctx context.Context, bssids []string, opts QueryOptions) (Response, error) {
	req, err := NewRequest(bssids, opts)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, req)
}

func (s *Service) query(ctx context.Context, req *Request) (resp Response, err error) {
	ctx, span := s.tracer.Start(ctx, "wloc.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("wloc.transport", s.transport.Name()),
			attribute.Int("wloc.request.wifis", len(req.Wifis)),
		),
	)
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordRequest(s.transport.Name(), "query", time.Since(start), err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("wloc.response.wifis", len(resp)),
				attribute.Int("wloc.response.known", len(resp.Known())),
			)
		}
		span.End()
	}()

	frame, err := EncodeRequest(s.identity, req)
	if err != nil {
		return nil, err
	}

	body, err := s.transport.Query(ctx, frame)
	if err != nil {
		return nil, err
	}

	resp, err = DecodeResponse(body)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("transport", s.transport.Name()).
		Int("requested", len(req.Wifis)).
		Int("observations", len(resp)).
		Dur("duration", time.Since(start)).
		Msg("wloc query completed")

	return resp, nil
}
