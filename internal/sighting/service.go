package sighting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wlocate/wlocate/internal/wloc"
)

// ServiceConfig holds configuration for the sighting service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// Now overrides the clock (optional).
	Now func() time.Time
}

// Service records and lists sightings.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new sighting service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		now:    now,
	}
}

// RecordResponse stores every located observation in resp and returns how
// many were recorded. Observations without a location are skipped.
func (s *Service) RecordResponse(ctx context.Context, source string, resp wloc.Response) (int, error) {
	observedAt := s.now().UTC()

	sightings := make([]*Sighting, 0, len(resp))
	for _, obs := range resp.Known() {
		sightings = append(sightings, &Sighting{
			ID:               uuid.New().String(),
			BSSID:            obs.BSSID,
			Latitude:         obs.Location.Latitude,
			Longitude:        obs.Location.Longitude,
			Accuracy:         obs.Location.Accuracy,
			Altitude:         obs.Location.Altitude,
			AltitudeAccuracy: obs.Location.AltitudeAccuracy,
			Source:           source,
			ObservedAt:       observedAt,
		})
	}

	if len(sightings) == 0 {
		return 0, nil
	}

	if err := s.repo.Record(ctx, sightings); err != nil {
		return 0, err
	}

	s.logger.Debug().
		Str("source", source).
		Int("recorded", len(sightings)).
		Int("skipped", len(resp)-len(sightings)).
		Msg("sightings recorded")

	return len(sightings), nil
}

// History returns the recorded sightings of bssid, newest first.
func (s *Service) History(ctx context.Context, bssid string, opts ListOptions) (*ListResult, error) {
	mac, err := wloc.ParseMAC(bssid)
	if err != nil {
		return nil, &wloc.InvalidInputError{BSSID: bssid, Err: err}
	}
	return s.repo.ListByBSSID(ctx, mac, opts)
}
