// Package handler provides HTTP handlers for the lookup API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/wlocate/wlocate/internal/api/models"
	"github.com/wlocate/wlocate/internal/api/response"
	"github.com/wlocate/wlocate/internal/provider/resilience"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one subsystem the API depends on.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    []ReadinessCheck
}

// NewOpsHandler creates a new OpsHandler. registry may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, checks ...ReadinessCheck) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		checks:    checks,
	}
}

// HealthCheck handles GET /v1/ops/health. It never touches dependencies.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Version:   h.version,
		BuildTime: h.buildTime,
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing check answers 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	for _, c := range h.runChecks(r.Context()) {
		if c.Status != models.HealthStatusOK {
			health.Failing = append(health.Failing, c.Name)
		}
	}

	status := http.StatusOK
	if len(health.Failing) > 0 {
		health.Status = models.HealthStatusFail
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Checks:    h.runChecks(r.Context()),
		Providers: []models.ProviderStatus{},
	}

	for _, c := range status.Checks {
		status.Status = worse(status.Status, c.Status)
	}

	if h.registry != nil {
		for _, health := range h.registry.GetAllHealth() {
			p := providerStatus(health)
			status.Providers = append(status.Providers, p)
			if p.Status != models.HealthStatusOK {
				status.Status = worse(status.Status, models.HealthStatusDegraded)
				status.Degraded = append(status.Degraded, p.Provider+":"+p.CircuitState)
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.CheckResult {
	results := make([]models.CheckResult, 0, len(h.checks))
	for _, c := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		start := time.Now()
		err := c.Check(checkCtx)
		cancel()

		result := models.CheckResult{
			Name:      c.Name,
			Status:    models.HealthStatusOK,
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			msg := err.Error()
			result.Status = models.HealthStatusFail
			result.Error = &msg
		}
		results = append(results, result)
	}
	return results
}

// providerStatus maps a circuit state onto the API health levels: open is
// FAIL and half-open is DEGRADED.
func providerStatus(health *resilience.ProviderHealth) models.ProviderStatus {
	p := models.ProviderStatus{
		Provider:            health.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        health.CircuitState.String(),
		ConsecutiveFailures: health.Counts.ConsecutiveFailures,
	}
	switch health.Level() {
	case resilience.LevelUnhealthy:
		p.Status = models.HealthStatusFail
	case resilience.LevelDegraded:
		p.Status = models.HealthStatusDegraded
	}
	if health.LastSuccessAt != nil {
		ts := models.Timestamp(*health.LastSuccessAt)
		p.LastSuccessAt = &ts
	}
	if health.LastFailureAt != nil {
		ts := models.Timestamp(*health.LastFailureAt)
		p.LastFailureAt = &ts
	}
	if health.LastError != "" {
		msg := health.LastError
		p.LastError = &msg
	}
	return p
}

var statusRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worse(a, b models.HealthStatus) models.HealthStatus {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}
