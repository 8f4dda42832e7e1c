package sighting

import (
	"context"

	"github.com/wlocate/wlocate/internal/wloc"
)

// Repository defines the interface for sighting persistence.
type Repository interface {
	// Record appends sightings. Existing rows are never updated.
	Record(ctx context.Context, sightings []*Sighting) error

	// ListByBSSID returns the sightings of one access point, newest first.
	ListByBSSID(ctx context.Context, bssid wloc.MacAddress, opts ListOptions) (*ListResult, error)
}
