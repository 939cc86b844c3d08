package models

// HealthStatus is the coarse state reported by the health endpoints.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Worse returns whichever of s and other is less healthy.
func (s HealthStatus) Worse(other HealthStatus) HealthStatus {
	if s.severity() >= other.severity() {
		return s
	}
	return other
}

func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusOK:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Providers []ProviderStatus `json:"providers"`
	Cache     CacheStatus      `json:"cache"`
	Sessions  int              `json:"sessions"`
}

// ProviderStatus represents the circuit health of an upstream provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Requests      uint32       `json:"requests"`
	Failures      uint32       `json:"failures"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// CacheStatus reports reading cache counters.
type CacheStatus struct {
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"maxEntries"`
	TTL        string `json:"ttl"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Evictions  int64  `json:"evictions"`
}
