// Package handler provides HTTP handlers for the air quality map API.
package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/api/models"
	"github.com/varunkainth/airpollutionmap/internal/api/response"
	"github.com/varunkainth/airpollutionmap/internal/provider/resilience"
)

// OpsConfig wires the operational endpoints to the running system. Any
// field may be nil.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Cache     interface{ Stats() airquality.CacheStats }
	Sessions  interface{ Len() int }

	// Dependencies are readiness checks for backing stores, keyed by name.
	Dependencies map[string]func(ctx context.Context) error
}

// dependencyTimeout bounds each readiness dependency check.
const dependencyTimeout = 2 * time.Second

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The service is not ready while
// any provider circuit is open or a backing store is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}

	var open []string
	if h.cfg.Registry != nil && !h.cfg.Registry.AllHealthy() {
		for _, p := range h.providers() {
			if p.Status == resilience.StatusUnhealthy {
				open = append(open, p.Name)
			}
		}
	}
	failed := h.checkDependencies(r.Context())

	if len(open) == 0 && len(failed) == 0 {
		for _, p := range h.providers() {
			health.Status = health.Status.Worse(healthStatus(p.Status))
		}
		response.JSON(w, r, http.StatusOK, health)
		return
	}

	health.Status = models.HealthStatusFail
	health.Details = map[string]any{}
	if len(open) > 0 {
		health.Details["unavailableProviders"] = open
	}
	if len(failed) > 0 {
		health.Details["unavailableDependencies"] = failed
	}
	response.JSON(w, r, http.StatusServiceUnavailable, health)
}

// checkDependencies returns the names of unreachable dependencies, sorted.
func (h *OpsHandler) checkDependencies(ctx context.Context) []string {
	var failed []string
	for name, check := range h.cfg.Dependencies {
		checkCtx, cancel := context.WithTimeout(ctx, dependencyTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			failed = append(failed, name)
		}
	}
	slices.Sort(failed)
	return failed
}

func (h *OpsHandler) providers() []resilience.ProviderHealth {
	if h.cfg.Registry == nil {
		return nil
	}
	return h.cfg.Registry.All()
}

// SystemStatus handles GET /v1/ops/status - provider circuits, cache
// counters and active sessions.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.now()),
		Providers: []models.ProviderStatus{},
	}

	for _, p := range h.providers() {
		ps := providerStatus(p)
		status.Status = status.Status.Worse(ps.Status)
		status.Providers = append(status.Providers, ps)
	}

	if h.cfg.Cache != nil {
		st := h.cfg.Cache.Stats()
		status.Cache = models.CacheStatus{
			Entries:    st.Entries,
			MaxEntries: st.MaxEntries,
			TTL:        st.TTL.String(),
			Hits:       st.Hits,
			Misses:     st.Misses,
			Evictions:  st.Evictions,
		}
	}

	if h.cfg.Sessions != nil {
		status.Sessions = h.cfg.Sessions.Len()
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(p resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     p.Name,
		Status:       healthStatus(p.Status),
		CircuitState: p.CircuitState,
		Requests:     p.Requests,
		Failures:     p.Failures,
	}
	if p.LastSuccessAt != nil {
		ts := models.Timestamp(*p.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if p.LastFailureAt != nil {
		ts := models.Timestamp(*p.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}
	return ps
}

func healthStatus(s string) models.HealthStatus {
	switch s {
	case resilience.StatusHealthy:
		return models.HealthStatusOK
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}
