package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
)

// Manager runs the worker pool that drains planned jobs through the
// pipeline. One goroutine per worker polls the queue, claims a job, and
// keeps a heartbeat loop alive for the duration of processing.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	pipeline     *Pipeline
	logger       *slog.Logger
	pollInterval time.Duration
	retryDelay   time.Duration
	heartbeat    *HeartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, pipeline *Pipeline, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		pipeline:     pipeline,
		logger:       logger.With(logging.String(logging.FieldComponent, "workflow")),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryDelay:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.StaleAfterMinutes)*time.Minute,
		),
	}
}

// Start launches the workers and the stale-job reclaim loop. Jobs stranded
// in processing by a previous run are reclaimed before workers begin.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("manager already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	if err := m.heartbeat.ReclaimStale(runCtx, m.logger); err != nil {
		m.logger.Warn("startup reclaim failed", logging.Error(err))
	}

	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	m.logger.Info("workflow started",
		logging.Int("workers", workers),
		logging.Duration("poll_interval", m.pollInterval))

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(runCtx, i)
	}
	m.wg.Add(1)
	go m.reclaimLoop(runCtx)
	return nil
}

// Stop cancels the run context and waits for in-flight jobs to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Running reports whether the manager has been started and not yet stopped.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) worker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := m.processNext(ctx, logger)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.Warn("worker pass failed", logging.Error(err))
			m.sleep(ctx, m.retryDelay)
		case !processed:
			m.sleep(ctx, m.pollInterval)
		}
	}
}

// processNext claims and processes at most one planned job. It reports
// false when the queue had nothing to claim.
func (m *Manager) processNext(ctx context.Context, logger *slog.Logger) (bool, error) {
	job, err := m.store.NextPlanned(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	claimed, err := m.store.Claim(ctx, job.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		// Another worker won the row. Not an error, just poll again.
		return true, nil
	}

	runID := uuid.NewString()[:8]
	jobCtx := logging.WithRunID(logging.WithJob(ctx, job.ID, job.VideoID), runID)

	hbCtx, stopHeartbeat := context.WithCancel(jobCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	outcome, err := m.pipeline.Process(jobCtx, job)
	stopHeartbeat()
	hbWG.Wait()
	if err != nil {
		return true, err
	}
	logger.Info("job settled",
		logging.Int64(logging.FieldJobID, outcome.JobID),
		logging.String(logging.FieldVideoID, outcome.VideoID),
		logging.String("status", outcome.Status),
		logging.String(logging.FieldRunID, runID))
	return true, nil
}

func (m *Manager) reclaimLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.staleAfter
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStale(ctx, m.logger); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("periodic reclaim failed", logging.Error(err))
			}
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
