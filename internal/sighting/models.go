// Package sighting keeps an append-only history of resolved access point
// positions. Lookups never read from it.
package sighting

import (
	"time"

	"github.com/wlocate/wlocate/internal/wloc"
)

// Sighting is one located observation returned by the lookup service.
type Sighting struct {
	ID               string
	BSSID            wloc.MacAddress
	Latitude         float64
	Longitude        float64
	Accuracy         int64
	Altitude         int64
	AltitudeAccuracy int64
	Source           string
	ObservedAt       time.Time
}

// ListOptions contains options for listing sightings.
type ListOptions struct {
	Limit int

	// Cursor is the ID of the last sighting of the previous page.
	Cursor string
}

// ListResult contains the result of listing sightings, newest first.
type ListResult struct {
	Items      []*Sighting
	NextCursor string
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// NormalizeLimit returns the page size used for a requested limit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
