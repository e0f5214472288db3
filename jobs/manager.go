// Package jobs provides background job processing functionality.
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"watchlist/models"
	"watchlist/repository"
)

// Defaults for the periodic work
const (
	DefaultBackfillInterval = 6 * time.Hour
	DefaultEventRetention   = 90 * 24 * time.Hour
)

// JobManager handles background job execution
type JobManager struct {
	posterJob      *PosterBackfillJob
	store          repository.Store
	interval       time.Duration
	eventRetention time.Duration
	logger         *zap.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	running        bool
	mu             sync.RWMutex
}

// NewJobManager creates a new job manager. store may be nil when event
// pruning is not wanted.
func NewJobManager(posterJob *PosterBackfillJob, store repository.Store, interval time.Duration, logger *zap.Logger) *JobManager {
	if interval <= 0 {
		interval = DefaultBackfillInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		posterJob:      posterJob,
		store:          store,
		interval:       interval,
		eventRetention: DefaultEventRetention,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// SetEventRetention changes how long activity events are kept. Zero disables pruning.
func (jm *JobManager) SetEventRetention(d time.Duration) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.eventRetention = d
}

// Start begins the job manager background processing
func (jm *JobManager) Start() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if jm.running {
		jm.logger.Info("job manager is already running")
		return
	}

	if jm.ctx.Err() != nil {
		jm.ctx, jm.cancel = context.WithCancel(context.Background())
	}
	jm.running = true
	jm.logger.Info("starting job manager", zap.Duration("interval", jm.interval))

	jm.wg.Add(1)
	go jm.runPeriodic(jm.ctx)
}

// Stop stops the job manager
func (jm *JobManager) Stop() {
	jm.mu.Lock()
	if !jm.running {
		jm.mu.Unlock()
		return
	}
	jm.logger.Info("stopping job manager")
	jm.cancel()
	jm.running = false
	jm.mu.Unlock()

	// Wait for all jobs to finish
	jm.wg.Wait()
	jm.logger.Info("job manager stopped")
}

// IsRunning returns whether the job manager is currently running
func (jm *JobManager) IsRunning() bool {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.running
}

// TriggerPosterBackfill immediately looks up the poster of one item
func (jm *JobManager) TriggerPosterBackfill(c models.Category, id int) {
	if jm.posterJob == nil {
		jm.logger.Debug("cannot trigger poster backfill: no poster job configured")
		return
	}

	jm.mu.RLock()
	ctx := jm.ctx
	jm.mu.RUnlock()

	jm.wg.Add(1)
	go func() {
		defer jm.wg.Done()
		if _, err := jm.posterJob.BackfillItem(ctx, c, id); err != nil {
			jm.logger.Warn("failed to backfill poster",
				zap.String("category", string(c)), zap.Int("id", id), zap.Error(err))
		}
	}()
}

// RunOnce performs one round of the periodic work
func (jm *JobManager) RunOnce(ctx context.Context) {
	if jm.posterJob != nil {
		if _, err := jm.posterJob.ProcessQueue(ctx); err != nil {
			jm.logger.Warn("poster backfill failed", zap.Error(err))
		}
	}

	jm.mu.RLock()
	retention := jm.eventRetention
	jm.mu.RUnlock()

	if jm.store != nil && retention > 0 {
		n, err := jm.store.DeleteOldEvents(ctx, retention)
		if err != nil {
			jm.logger.Warn("failed to prune events", zap.Error(err))
		} else if n > 0 {
			jm.logger.Info("pruned old events", zap.Int64("deleted", n))
		}
	}
}

// runPeriodic runs the background work on startup and then every interval
func (jm *JobManager) runPeriodic(ctx context.Context) {
	defer jm.wg.Done()

	jm.RunOnce(ctx)

	ticker := time.NewTicker(jm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			jm.logger.Info("periodic jobs stopped")
			return
		case <-ticker.C:
			jm.logger.Info("running periodic jobs")
			jm.RunOnce(ctx)
		}
	}
}
