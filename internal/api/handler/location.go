package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wlocate/wlocate/internal/api/models"
	"github.com/wlocate/wlocate/internal/api/response"
	"github.com/wlocate/wlocate/internal/wloc"
)

// maxLookupBodySize bounds batch lookup request bodies.
const maxLookupBodySize = 64 << 10

// defaultSightingSource tags sightings recorded without an explicit source.
const defaultSightingSource = "api"

// Locator resolves access point positions.
type Locator interface {
	Resolve(ctx context.Context, bssid string) (*wloc.WifiObservation, error)
	Locate(ctx context.Context, bssids []string, opts wloc.QueryOptions) (wloc.Response, error)
}

// SightingRecorder stores located observations.
type SightingRecorder interface {
	RecordResponse(ctx context.Context, source string, resp wloc.Response) (int, error)
}

// LocationHandler handles location lookup endpoints.
type LocationHandler struct {
	locator   Locator
	sightings SightingRecorder
	logger    zerolog.Logger
}

// NewLocationHandler creates a new LocationHandler. sightings may be nil, in
// which case lookups are not recorded.
func NewLocationHandler(locator Locator, sightings SightingRecorder, logger zerolog.Logger) *LocationHandler {
	return &LocationHandler{
		locator:   locator,
		sightings: sightings,
		logger:    logger,
	}
}

// GetLocation handles GET /v1/locations/{bssid} - resolve one access point.
func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	bssid := chi.URLParam(r, "bssid")

	obs, err := h.locator.Resolve(r.Context(), bssid)
	if err != nil {
		writeLookupError(w, r, h.logger, "bssid", err)
		return
	}

	h.record(r.Context(), defaultSightingSource, wloc.Response{*obs})
	response.JSON(w, r, http.StatusOK, toObservation(*obs))
}

// Lookup handles POST /v1/locations:lookup - resolve a batch of access points
// in a single upstream request.
func (h *LocationHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var input models.LookupRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLookupBodySize)).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := input.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	opts := wloc.DefaultQueryOptions()
	if input.Signal != nil {
		opts.Signal = input.Signal
	}
	opts.Source = input.Source

	resp, err := h.locator.Locate(r.Context(), input.BSSIDs, opts)
	if err != nil {
		writeLookupError(w, r, h.logger, "bssids", err)
		return
	}

	source := input.Source
	if source == "" {
		source = defaultSightingSource
	}
	h.record(r.Context(), source, resp)

	out := models.LookupResponse{Items: make([]models.Observation, 0, len(resp))}
	for _, obs := range resp {
		out.Items = append(out.Items, toObservation(obs))
		if obs.Known() {
			out.Known++
		}
	}
	response.JSON(w, r, http.StatusOK, out)
}

// record stores located observations. Failures are logged and never fail
// the lookup.
func (h *LocationHandler) record(ctx context.Context, source string, resp wloc.Response) {
	if h.sightings == nil {
		return
	}
	if _, err := h.sightings.RecordResponse(ctx, source, resp); err != nil {
		h.logger.Warn().Err(err).Str("source", source).Msg("failed to record sightings")
	}
}

func toObservation(obs wloc.WifiObservation) models.Observation {
	out := models.Observation{BSSID: obs.BSSID.String()}
	if obs.Location != nil {
		loc := toLocation(*obs.Location)
		out.Location = &loc
	}
	return out
}

func toLocation(loc wloc.Location) models.Location {
	return models.Location{
		Lat:              loc.Latitude,
		Lon:              loc.Longitude,
		Accuracy:         loc.Accuracy,
		Altitude:         loc.Altitude,
		AltitudeAccuracy: loc.AltitudeAccuracy,
	}
}
