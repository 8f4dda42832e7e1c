package models

// Health is the body of the liveness and readiness endpoints.
type Health struct {
	Status    HealthStatus `json:"status"`
	Time      Timestamp    `json:"time"`
	Version   string       `json:"version,omitempty"`
	BuildTime string       `json:"buildTime,omitempty"`

	// Failing names the readiness checks that did not pass.
	Failing []string `json:"failing,omitempty"`
}

// SystemStatus aggregates readiness checks and lookup provider circuits.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Checks    []CheckResult    `json:"checks"`
	Providers []ProviderStatus `json:"providers"`

	// Degraded lists "provider:circuit-state" for every provider whose
	// circuit is not closed.
	Degraded []string `json:"degraded,omitempty"`
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	LatencyMs int64        `json:"latencyMs"`
	Error     *string      `json:"error,omitempty"`
}

// ProviderStatus reports the circuit of one lookup provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	LastError           *string      `json:"lastError,omitempty"`
}
