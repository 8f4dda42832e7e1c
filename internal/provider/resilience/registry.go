package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Level summarises a provider's circuit state.
type Level int

const (
	LevelHealthy   Level = iota // closed
	LevelDegraded               // half-open
	LevelUnhealthy              // open
)

// ProviderHealth is a point-in-time view of one registered provider.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Level maps the circuit state onto a health level.
func (h *ProviderHealth) Level() Level {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return LevelUnhealthy
	case gobreaker.StateHalfOpen:
		return LevelDegraded
	default:
		return LevelHealthy
	}
}

// outcomes holds the last recorded call results for a provider.
type outcomes struct {
	client    *Client
	successAt *time.Time
	failureAt *time.Time
	lastError string
}

// Registry tracks provider clients by name along with the outcome of their
// most recent calls. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*outcomes
	now       func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*outcomes), now: time.Now}
}

// Register adds client under name, replacing any previous entry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	r.providers[name] = &outcomes{client: client}
	r.mu.Unlock()
}

// Record notes the outcome of a provider call; nil err is a success.
// Unknown names are ignored.
func (r *Registry) Record(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.providers[name]
	if o == nil {
		return
	}
	at := r.now()
	if err != nil {
		o.failureAt, o.lastError = &at, err.Error()
		return
	}
	o.successAt = &at
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// GetHealth returns the health of name, or nil when it is not registered.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if o := r.providers[name]; o != nil {
		return o.snapshot(name)
	}
	return nil
}

// GetAllHealth returns every provider's health ordered by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	all := make([]*ProviderHealth, 0, len(r.providers))
	for name, o := range r.providers {
		all = append(all, o.snapshot(name))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

func (o *outcomes) snapshot(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		CircuitState:  o.client.CircuitBreakerState(),
		Counts:        o.client.CircuitBreakerCounts(),
		LastSuccessAt: o.successAt,
		LastFailureAt: o.failureAt,
		LastError:     o.lastError,
	}
}
