package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health statuses reported by the registry.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ProviderHealth is a point-in-time view of one provider.
type ProviderHealth struct {
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	CircuitState  string     `json:"circuitState"`
	Requests      uint32     `json:"requests"`
	Failures      uint32     `json:"failures"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// Healthy reports whether the provider's circuit is closed.
func (h ProviderHealth) Healthy() bool {
	return h.Status == StatusHealthy
}

// Registry tracks the health of every registered provider client.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*providerEntry
	now       func() time.Time
}

type providerEntry struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*providerEntry),
		now:       time.Now,
	}
}

// Register adds a client. Registering the same name again replaces it.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[c.Name()] = &providerEntry{client: c}
}

// RecordSuccess stamps a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := r.now()
		p.lastSuccessAt = &now
	}
}

// RecordFailure stamps a failed call and keeps its message.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := r.now()
		p.lastFailureAt = &now
		if err != nil {
			p.lastError = err.Error()
		}
	}
}

// Health returns the health of one provider.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return p.health(name), true
}

// All returns the health of every provider sorted by name.
func (r *Registry) All() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, p.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AllHealthy reports whether no provider has an open circuit.
func (r *Registry) AllHealthy() bool {
	for _, h := range r.All() {
		if h.Status == StatusUnhealthy {
			return false
		}
	}
	return true
}

func (p *providerEntry) health(name string) ProviderHealth {
	state := p.client.State()
	counts := p.client.Counts()

	status := StatusHealthy
	switch state {
	case gobreaker.StateHalfOpen:
		status = StatusDegraded
	case gobreaker.StateOpen:
		status = StatusUnhealthy
	}

	return ProviderHealth{
		Name:          name,
		Status:        status,
		CircuitState:  state.String(),
		Requests:      counts.Requests,
		Failures:      counts.TotalFailures,
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
	}
}
