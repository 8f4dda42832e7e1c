// Package worker processes BSSID lookup jobs delivered over Pub/Sub.
package worker

import (
	"os"
	"strconv"
	"time"
)

// LocateConfig holds configuration for the locate job.
type LocateConfig struct {
	// BatchSize is the maximum number of BSSIDs sent in one upstream request.
	// Default: 50
	BatchSize int

	// Concurrency is the number of batches resolved in parallel.
	// Default: 3
	Concurrency int

	// Timeout bounds each batch lookup.
	// Default: 30 seconds
	Timeout time.Duration

	// DefaultSource tags sightings from messages without a source.
	// Default: "worker"
	DefaultSource string
}

// DefaultLocateConfig returns the default locate configuration.
func DefaultLocateConfig() LocateConfig {
	return LocateConfig{
		BatchSize:     50,
		Concurrency:   3,
		Timeout:       30 * time.Second,
		DefaultSource: "worker",
	}
}

// ConfigFromEnv creates a LocateConfig from environment variables, falling
// back to the defaults for anything unset or unparsable.
func ConfigFromEnv() LocateConfig {
	cfg := DefaultLocateConfig()
	if v, err := strconv.Atoi(os.Getenv("WORKER_BATCH_SIZE")); err == nil && v > 0 {
		cfg.BatchSize = v
	}
	if v, err := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY")); err == nil && v > 0 {
		cfg.Concurrency = v
	}
	if v, err := time.ParseDuration(os.Getenv("WORKER_TIMEOUT")); err == nil && v > 0 {
		cfg.Timeout = v
	}
	if v := os.Getenv("WORKER_DEFAULT_SOURCE"); v != "" {
		cfg.DefaultSource = v
	}
	return cfg
}

// withDefaults fills zero fields from DefaultLocateConfig.
func (c LocateConfig) withDefaults() LocateConfig {
	d := DefaultLocateConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.DefaultSource == "" {
		c.DefaultSource = d.DefaultSource
	}
	return c
}

// Batches splits bssids into consecutive groups of at most BatchSize.
func (c LocateConfig) Batches(bssids []string) [][]string {
	size := c.BatchSize
	if size <= 0 {
		size = DefaultLocateConfig().BatchSize
	}

	batches := make([][]string, 0, (len(bssids)+size-1)/size)
	for start := 0; start < len(bssids); start += size {
		end := start + size
		if end > len(bssids) {
			end = len(bssids)
		}
		batches = append(batches, bssids[start:end])
	}
	return batches
}
