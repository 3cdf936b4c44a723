package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/model"
	"github.com/fyrsmithlabs/reviewd/internal/store"
)

// RunnerConfig holds runner configuration.
type RunnerConfig struct {
	// PollInterval is the pause between pending-task scans.
	PollInterval time.Duration `koanf:"poll_interval"`

	// Workers bounds concurrent task executions.
	Workers int `koanf:"workers"`
}

// DefaultRunnerConfig returns the default runner configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		PollInterval: 2 * time.Second,
		Workers:      4,
	}
}

// Runner polls for pending tasks and dispatches them to a bounded worker
// pool. It is the only caller of Manager.Run in the daemon.
type Runner struct {
	cfg     RunnerConfig
	manager *Manager
	tasks   store.TaskStore
	logger  *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewRunner creates a runner over the manager's task store.
func NewRunner(cfg RunnerConfig, manager *Manager, tasks store.TaskStore, logger *zap.Logger) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultRunnerConfig().PollInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultRunnerConfig().Workers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		manager:  manager,
		tasks:    tasks,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Start fails orphaned tasks, then polls until the context is cancelled.
// It blocks; run it in its own goroutine. All workers have returned when
// Start returns.
func (r *Runner) Start(ctx context.Context) error {
	orphans, err := r.manager.MarkOrphans(ctx)
	if err != nil {
		return err
	}
	if orphans > 0 {
		r.logger.Warn("failed orphaned tasks from previous run", zap.Int("count", orphans))
	}

	queue := make(chan string, r.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx, queue)
		}()
	}

	r.logger.Info("runner started",
		zap.Duration("poll_interval", r.cfg.PollInterval),
		zap.Int("workers", r.cfg.Workers),
	)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.dispatch(ctx, queue)
	for {
		select {
		case <-ctx.Done():
			close(queue)
			wg.Wait()
			r.logger.Info("runner stopped")
			return nil
		case <-ticker.C:
			r.dispatch(ctx, queue)
		}
	}
}

// dispatch queues pending tasks not already claimed by a worker. When the
// queue is full the remainder waits for the next poll.
func (r *Runner) dispatch(ctx context.Context, queue chan<- string) {
	pending, err := r.tasks.ListTasksByStatus(ctx, model.StatusPending)
	if err != nil {
		r.logger.Error("listing pending tasks", zap.Error(err))
		return
	}

	for _, t := range pending {
		if !r.claim(t.ID) {
			continue
		}
		select {
		case queue <- t.ID:
		default:
			r.release(t.ID)
			return
		}
	}
}

func (r *Runner) work(ctx context.Context, queue <-chan string) {
	for taskID := range queue {
		if ctx.Err() != nil {
			r.release(taskID)
			return
		}
		if err := r.manager.Run(ctx, taskID); err != nil {
			r.logger.Error("task run failed",
				zap.String("task_id", taskID), zap.Error(err))
		}
		r.release(taskID)
	}
}

func (r *Runner) claim(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[taskID]; busy {
		return false
	}
	r.inFlight[taskID] = struct{}{}
	return true
}

func (r *Runner) release(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, taskID)
}
