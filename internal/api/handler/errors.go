package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wlocate/wlocate/internal/api/models"
	"github.com/wlocate/wlocate/internal/api/response"
	"github.com/wlocate/wlocate/internal/provider/resilience"
	"github.com/wlocate/wlocate/internal/wloc"
)

// writeLookupError maps a lookup failure onto a problem response. field names
// the request field that carried the BSSIDs.
func writeLookupError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, field string, err error) {
	switch {
	case errors.Is(err, wloc.ErrInvalidInput):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: field, Message: "must be a MAC address of six hex octets", Code: "INVALID_FORMAT"},
		})
	case errors.Is(err, wloc.ErrBssidNotFound):
		response.BssidNotFound(w, r, err.Error())
	case errors.Is(err, resilience.ErrCircuitOpen):
		logger.Warn().Err(err).Msg("lookup provider circuit open")
		response.ServiceUnavailable(w, r, "lookup provider is temporarily unavailable")
	case errors.Is(err, wloc.ErrTransport), errors.Is(err, wloc.ErrDecode):
		logger.Error().Err(err).Msg("upstream lookup failed")
		response.BadGateway(w, r, err.Error())
	default:
		logger.Error().Err(err).Msg("lookup failed")
		response.InternalError(w, r, "lookup failed")
	}
}
