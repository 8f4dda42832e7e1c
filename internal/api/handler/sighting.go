package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wlocate/wlocate/internal/api/models"
	"github.com/wlocate/wlocate/internal/api/response"
	"github.com/wlocate/wlocate/internal/sighting"
	"github.com/wlocate/wlocate/internal/wloc"
)

// SightingLister lists recorded sightings of an access point.
type SightingLister interface {
	History(ctx context.Context, bssid string, opts sighting.ListOptions) (*sighting.ListResult, error)
}

// SightingHandler handles sighting history endpoints.
type SightingHandler struct {
	sightings SightingLister
	logger    zerolog.Logger
}

// NewSightingHandler creates a new SightingHandler.
func NewSightingHandler(sightings SightingLister, logger zerolog.Logger) *SightingHandler {
	return &SightingHandler{
		sightings: sightings,
		logger:    logger,
	}
}

// ListSightings handles GET /v1/sightings/{bssid} - recorded positions of an
// access point, newest first.
func (h *SightingHandler) ListSightings(w http.ResponseWriter, r *http.Request) {
	opts := sighting.ListOptions{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer", Code: "INVALID"},
			})
			return
		}
		opts.Limit = limit
	}

	result, err := h.sightings.History(r.Context(), chi.URLParam(r, "bssid"), opts)
	if err != nil {
		if errors.Is(err, wloc.ErrInvalidInput) {
			writeLookupError(w, r, h.logger, "bssid", err)
			return
		}
		h.logger.Error().Err(err).Msg("failed to list sightings")
		response.InternalError(w, r, "failed to list sightings")
		return
	}

	page := models.PagedSightings{
		Items: make([]models.Sighting, 0, len(result.Items)),
		Meta:  models.PagedResponseMeta{Limit: sighting.NormalizeLimit(opts.Limit)},
	}
	if result.NextCursor != "" {
		cursor := result.NextCursor
		page.Meta.NextCursor = &cursor
	}
	for _, s := range result.Items {
		page.Items = append(page.Items, models.Sighting{
			ID:    s.ID,
			BSSID: s.BSSID.String(),
			Location: models.Location{
				Lat:              s.Latitude,
				Lon:              s.Longitude,
				Accuracy:         s.Accuracy,
				Altitude:         s.Altitude,
				AltitudeAccuracy: s.AltitudeAccuracy,
			},
			Source:     s.Source,
			ObservedAt: models.Timestamp(s.ObservedAt),
		})
	}

	response.JSON(w, r, http.StatusOK, page)
}
