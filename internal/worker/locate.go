package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wlocate/wlocate/internal/wloc"
)

// Locator resolves batches of BSSIDs.
type Locator interface {
	Locate(ctx context.Context, bssids []string, opts wloc.QueryOptions) (wloc.Response, error)
}

// SightingRecorder stores located observations.
type SightingRecorder interface {
	RecordResponse(ctx context.Context, source string, resp wloc.Response) (int, error)
}

// LocateJob resolves the BSSIDs of a job in batches and records what it finds.
type LocateJob struct {
	config    LocateConfig
	logger    zerolog.Logger
	locator   Locator
	sightings SightingRecorder

	metrics *LocateMetrics
}

// LocateMetrics tracks locate job statistics.
type LocateMetrics struct {
	mu sync.RWMutex

	TotalJobs         int64
	TotalBatches      int64
	FailedBatches     int64
	RequestedBSSIDs   int64
	KnownLocations    int64
	RecordedSightings int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// LocateJobConfig holds configuration for creating a LocateJob.
type LocateJobConfig struct {
	Config  LocateConfig
	Logger  zerolog.Logger
	Locator Locator

	// Sightings is optional; without it results are only counted.
	Sightings SightingRecorder
}

// NewLocateJob creates a new locate job processor.
func NewLocateJob(cfg LocateJobConfig) *LocateJob {
	return &LocateJob{
		config:    cfg.Config.withDefaults(),
		logger:    cfg.Logger,
		locator:   cfg.Locator,
		sightings: cfg.Sightings,
		metrics:   &LocateMetrics{},
	}
}

// LocateResult contains the result of one job run.
type LocateResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Requested    int
	Batches      int
	Failed       int
	Observations int
	Known        int
	Recorded     int
	Errors       []BatchError
}

// BatchError describes a batch that could not be resolved or recorded.
type BatchError struct {
	BSSIDs []string
	Error  string

	// Retryable is false when redelivering the job cannot help.
	Retryable bool
}

// Retryable reports whether any failed batch might succeed on redelivery.
func (r *LocateResult) Retryable() bool {
	for _, e := range r.Errors {
		if e.Retryable {
			return true
		}
	}
	return false
}

// Run resolves bssids and records located observations under source.
func (j *LocateJob) Run(ctx context.Context, bssids []string, source string) *LocateResult {
	startTime := time.Now()
	if source == "" {
		source = j.config.DefaultSource
	}

	batches := j.config.Batches(bssids)
	result := &LocateResult{
		StartTime: startTime,
		Requested: len(bssids),
		Batches:   len(batches),
	}

	j.logger.Info().
		Int("bssids", len(bssids)).
		Int("batches", len(batches)).
		Int("concurrency", j.config.Concurrency).
		Str("source", source).
		Msg("starting locate job")

	batchChan := make(chan []string, len(batches))
	resultsChan := make(chan batchResult, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.locateWorker(ctx, source, batchChan, resultsChan)
		}()
	}

	for _, b := range batches {
		batchChan <- b
	}
	close(batchChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	handled := 0
	for br := range resultsChan {
		handled++
		result.Observations += br.observations
		result.Known += br.known
		result.Recorded += br.recorded
		if br.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, *br.err)
		}
	}

	// Batches skipped after cancellation count as retryable failures.
	if skipped := len(batches) - handled; skipped > 0 {
		result.Failed += skipped
		result.Errors = append(result.Errors, BatchError{
			Error:     "job cancelled before all batches ran",
			Retryable: true,
		})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("observations", result.Observations).
		Int("known", result.Known).
		Int("recorded", result.Recorded).
		Int("failed_batches", result.Failed).
		Msg("locate job completed")

	return result
}

type batchResult struct {
	observations int
	known        int
	recorded     int
	err          *BatchError
}

func (j *LocateJob) locateWorker(ctx context.Context, source string, batches <-chan []string, results chan<- batchResult) {
	for batch := range batches {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.locateBatch(ctx, source, batch)
		}
	}
}

func (j *LocateJob) locateBatch(ctx context.Context, source string, bssids []string) batchResult {
	batchCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	opts := wloc.DefaultQueryOptions()
	opts.Source = source

	resp, err := j.locator.Locate(batchCtx, bssids, opts)
	if err != nil {
		j.logger.Warn().Err(err).Int("bssids", len(bssids)).Msg("batch lookup failed")
		return batchResult{err: &BatchError{
			BSSIDs:    bssids,
			Error:     err.Error(),
			Retryable: retryable(err),
		}}
	}

	result := batchResult{
		observations: len(resp),
		known:        len(resp.Known()),
	}

	if j.sightings != nil {
		recorded, err := j.sightings.RecordResponse(batchCtx, source, resp)
		if err != nil {
			result.err = &BatchError{BSSIDs: bssids, Error: err.Error(), Retryable: true}
			return result
		}
		result.recorded = recorded
	}

	return result
}

// retryable reports whether a lookup error may clear on redelivery. Bad
// input and unencodable frames fail the same way every time.
func retryable(err error) bool {
	return !errors.Is(err, wloc.ErrInvalidInput) && !errors.Is(err, wloc.ErrEncode)
}

func (j *LocateJob) updateMetrics(result *LocateResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalJobs++
	j.metrics.TotalBatches += int64(result.Batches)
	j.metrics.FailedBatches += int64(result.Failed)
	j.metrics.RequestedBSSIDs += int64(result.Requested)
	j.metrics.KnownLocations += int64(result.Known)
	j.metrics.RecordedSightings += int64(result.Recorded)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *LocateJob) GetMetrics() LocateMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return LocateMetrics{
		TotalJobs:         j.metrics.TotalJobs,
		TotalBatches:      j.metrics.TotalBatches,
		FailedBatches:     j.metrics.FailedBatches,
		RequestedBSSIDs:   j.metrics.RequestedBSSIDs,
		KnownLocations:    j.metrics.KnownLocations,
		RecordedSightings: j.metrics.RecordedSightings,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *LocateJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_jobs":         m.TotalJobs,
		"total_batches":      m.TotalBatches,
		"failed_batches":     m.FailedBatches,
		"requested_bssids":   m.RequestedBSSIDs,
		"known_locations":    m.KnownLocations,
		"recorded_sightings": m.RecordedSightings,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
	}
}
