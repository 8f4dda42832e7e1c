package sighting

import (
	"context"
	"sort"
	"sync"

	"github.com/wlocate/wlocate/internal/wloc"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Used by tests and when no database is configured.
type InMemoryRepository struct {
	mu      sync.RWMutex
	byBSSID map[wloc.MacAddress][]*Sighting
}

// NewInMemoryRepository creates a new in-memory sighting repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byBSSID: make(map[wloc.MacAddress][]*Sighting),
	}
}

// Record appends sightings.
func (r *InMemoryRepository) Record(_ context.Context, sightings []*Sighting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range sightings {
		c := *s
		r.byBSSID[s.BSSID] = append(r.byBSSID[s.BSSID], &c)
	}
	return nil
}

// ListByBSSID returns the sightings of one access point, newest first.
func (r *InMemoryRepository) ListByBSSID(_ context.Context, bssid wloc.MacAddress, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.byBSSID[bssid]
	items := make([]*Sighting, 0, len(stored))
	for _, s := range stored {
		c := *s
		items = append(items, &c)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ObservedAt.Equal(items[j].ObservedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].ObservedAt.After(items[j].ObservedAt)
	})

	if opts.Cursor != "" {
		start := len(items)
		for i, s := range items {
			if s.ID == opts.Cursor {
				start = i + 1
				break
			}
		}
		items = items[start:]
	}

	limit := NormalizeLimit(opts.Limit)
	result := &ListResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.NextCursor = items[limit-1].ID
	}

	return result, nil
}
