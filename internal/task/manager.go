// Package task implements the durable task lifecycle: creation, the single
// status mutation path that enforces the state machine, cooperative
// cancellation, and the polling runner that executes pending tasks.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/agent"
	"github.com/fyrsmithlabs/reviewd/internal/events"
	"github.com/fyrsmithlabs/reviewd/internal/model"
	"github.com/fyrsmithlabs/reviewd/internal/sanitize"
	"github.com/fyrsmithlabs/reviewd/internal/store"
)

// ErrInvalidTransition indicates a status change the state machine forbids,
// including any attempt to leave a terminal status.
var ErrInvalidTransition = errors.New("invalid status transition")

// orphanError marks tasks found running at daemon start. Their executions
// died with the previous process, so the running status can never resolve.
const orphanError = "orphaned by restart"

// Manager owns the task lifecycle. All status changes go through its single
// mutation path, which is what makes the state machine and the monotonic
// progress guarantee enforceable.
type Manager struct {
	tasks    store.TaskStore
	execs    store.ExecutionStore
	registry *agent.Registry
	events   events.Publisher
	logger   *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // task ID -> running execution cancel
}

// NewManager creates a task manager. All dependencies except the logger are
// required.
func NewManager(tasks store.TaskStore, execs store.ExecutionStore, registry *agent.Registry, pub events.Publisher, logger *zap.Logger) (*Manager, error) {
	if tasks == nil {
		return nil, errors.New("task store is required")
	}
	if execs == nil {
		return nil, errors.New("execution store is required")
	}
	if registry == nil {
		return nil, errors.New("agent registry is required")
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tasks:    tasks,
		execs:    execs,
		registry: registry,
		events:   pub,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}, nil
}

// CreateTaskRequest carries the caller's task parameters.
type CreateTaskRequest struct {
	AgentType model.AgentType `json:"agent_type"`
	Name      string          `json:"name,omitempty"`
	Input     model.TaskInput `json:"input"`
}

// CreateTask validates the request, persists a pending task, and announces
// it. Execution happens later, when the runner picks the task up.
func (m *Manager) CreateTask(ctx context.Context, req CreateTaskRequest) (*model.Task, error) {
	if req.Input.Query == "" {
		return nil, errors.New("query is required")
	}
	if err := sanitize.ValidateMatterID(req.Input.MatterID); err != nil {
		return nil, err
	}
	if _, err := m.registry.Get(req.AgentType); err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = model.AutoName(req.AgentType, req.Input.Query)
	}

	task := &model.Task{
		ID:        uuid.NewString(),
		MatterID:  req.Input.MatterID,
		AgentType: req.AgentType,
		Name:      name,
		Status:    model.StatusPending,
		Input:     req.Input,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("persisting task: %w", err)
	}

	tasksCreatedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("agent_type", string(task.AgentType))))
	m.publish(events.Event{
		Type:      events.TypeTaskCreated,
		TaskID:    task.ID,
		MatterID:  task.MatterID,
		AgentType: task.AgentType,
		Status:    task.Status,
	})
	m.logger.Info("task created",
		zap.String("task_id", task.ID),
		zap.String("agent_type", string(task.AgentType)),
		zap.String("matter_id", task.MatterID),
	)
	return task, nil
}

// GetTask returns one task.
func (m *Manager) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return m.tasks.GetTask(ctx, id)
}

// ListTasksByMatter returns a matter's tasks, newest first.
func (m *Manager) ListTasksByMatter(ctx context.Context, matterID string) ([]*model.Task, error) {
	return m.tasks.ListTasksByMatter(ctx, matterID)
}

// ListTasksByStatus returns every task in one lifecycle state. The pending
// and running projections the runner and API work from both come through
// here.
func (m *Manager) ListTasksByStatus(ctx context.Context, status model.TaskStatus) ([]*model.Task, error) {
	return m.tasks.ListTasksByStatus(ctx, status)
}

// EstimateDuration asks the registered agent how long the input should take.
func (m *Manager) EstimateDuration(agentType model.AgentType, input model.TaskInput) (time.Duration, error) {
	ag, err := m.registry.Get(agentType)
	if err != nil {
		return 0, err
	}
	return ag.EstimateDuration(input), nil
}

// TaskExecutions returns the task's execution ledger, oldest first.
func (m *Manager) TaskExecutions(ctx context.Context, taskID string) ([]*model.Execution, error) {
	return m.execs.ListExecutionsByTask(ctx, taskID)
}

// statusUpdate describes one pass through the mutation path. Nil fields are
// left untouched.
type statusUpdate struct {
	status   model.TaskStatus
	progress *int
	step     *string
	output   []byte
	errMsg   *string
}

// applyUpdate is the single task mutation path. It enforces the state
// machine, keeps progress monotonically non-decreasing, and stamps
// StartedAt/CompletedAt on the relevant transitions.
func (m *Manager) applyUpdate(ctx context.Context, taskID string, upd statusUpdate) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !model.ValidTransition(task.Status, upd.status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, upd.status)
	}

	prev := task.Status
	task.Status = upd.status
	if upd.progress != nil && *upd.progress > task.Progress {
		task.Progress = *upd.progress
	}
	if upd.step != nil {
		task.CurrentStep = *upd.step
	}
	if upd.output != nil {
		task.Output = upd.output
	}
	if upd.errMsg != nil {
		task.Error = *upd.errMsg
	}

	now := time.Now().UTC()
	if task.Status == model.StatusRunning && task.StartedAt == nil {
		task.StartedAt = &now
	}
	if task.Status.IsTerminal() && task.CompletedAt == nil {
		task.CompletedAt = &now
	}
	if task.Status == model.StatusCompleted {
		task.Progress = 100
	}

	if err := m.tasks.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}

	m.publish(taskEvent(task, prev))
	if task.Status.IsTerminal() {
		tasksFinishedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("agent_type", string(task.AgentType)),
			attribute.String("status", string(task.Status)),
		))
	}
	return task, nil
}

// taskEvent picks the event type for a completed mutation.
func taskEvent(task *model.Task, prev model.TaskStatus) events.Event {
	ev := events.Event{
		TaskID:    task.ID,
		MatterID:  task.MatterID,
		AgentType: task.AgentType,
		Status:    task.Status,
		Progress:  task.Progress,
		Step:      task.CurrentStep,
		Error:     task.Error,
	}
	switch {
	case task.Status == model.StatusCompleted:
		ev.Type = events.TypeTaskCompleted
	case task.Status == prev:
		ev.Type = events.TypeTaskProgress
	default:
		ev.Type = events.TypeTaskStatus
	}
	return ev
}

// CancelTask flips the task to cancelled immediately and signals the running
// execution, if any. The agent observes the cancellation at its next
// checkpoint; the status does not wait for it.
func (m *Manager) CancelTask(ctx context.Context, taskID string) (*model.Task, error) {
	step := "cancelled"
	task, err := m.applyUpdate(ctx, taskID, statusUpdate{
		status: model.StatusCancelled,
		step:   &step,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	cancel, ok := m.cancels[taskID]
	m.mu.Unlock()
	if ok {
		cancel()
	}

	m.logger.Info("task cancelled", zap.String("task_id", taskID), zap.Bool("was_running", ok))
	return task, nil
}

// Run executes one attempt of a pending task: transition to running, append
// an execution to the ledger, dispatch to the registered agent, and record
// the outcome. Expected failures (unknown agent, rejected input, agent
// failure) are recorded on the task, not returned.
func (m *Manager) Run(ctx context.Context, taskID string) error {
	task, err := m.tasks.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != model.StatusPending {
		return fmt.Errorf("task %s is %s, not pending", taskID, task.Status)
	}

	ag, err := m.registry.Get(task.AgentType)
	if err != nil {
		return m.failBeforeStart(ctx, taskID, err.Error())
	}
	if !ag.ValidateInput(task.Input) {
		return m.failBeforeStart(ctx, taskID, "input rejected by agent validation")
	}

	step := "starting"
	if _, err := m.applyUpdate(ctx, taskID, statusUpdate{status: model.StatusRunning, step: &step}); err != nil {
		// Lost the claim, most likely to a cancellation racing the runner.
		return err
	}

	exec := &model.Execution{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		AgentType: task.AgentType,
		Status:    model.StatusRunning,
		Input:     task.Input,
		StartedAt: time.Now().UTC(),
	}
	if err := m.execs.CreateExecution(ctx, exec); err != nil {
		return fmt.Errorf("recording execution: %w", err)
	}

	execCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels[taskID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, taskID)
		m.mu.Unlock()
		cancel()
	}()

	progress := func(percent int, step string) {
		updated, err := m.applyUpdate(execCtx, taskID, statusUpdate{
			status:   model.StatusRunning,
			progress: &percent,
			step:     &step,
		})
		if err != nil {
			// Cancelled tasks reject further running updates; that is the
			// expected shape of a cancellation racing progress.
			m.logger.Debug("progress update dropped",
				zap.String("task_id", taskID), zap.Error(err))
			return
		}
		// Mirror onto the ledger row so an execution carries its own
		// progress history, not just the task projection.
		exec.Progress = updated.Progress
		exec.CurrentStep = updated.CurrentStep
		if err := m.execs.UpdateExecution(execCtx, exec); err != nil {
			m.logger.Warn("execution progress update failed",
				zap.String("execution_id", exec.ID), zap.Error(err))
		}
	}

	start := time.Now()
	result := ag.Execute(execCtx, task.Input, progress)
	taskDurationHistogram.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("agent_type", string(task.AgentType)),
		attribute.Bool("success", result.Success),
	))

	return m.finish(ctx, exec, result)
}

// failBeforeStart records an input-stage failure: pending -> failed without
// an execution.
func (m *Manager) failBeforeStart(ctx context.Context, taskID, msg string) error {
	m.logger.Warn("task rejected before start", zap.String("task_id", taskID), zap.String("reason", msg))
	_, err := m.applyUpdate(ctx, taskID, statusUpdate{status: model.StatusFailed, errMsg: &msg})
	return err
}

// finish records the execution outcome on both the ledger row and the task
// projection. A task already flipped to cancelled keeps that status; only
// the ledger row is updated.
func (m *Manager) finish(ctx context.Context, exec *model.Execution, result agent.Result) error {
	task, err := m.tasks.GetTask(ctx, exec.TaskID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	exec.CompletedAt = &now

	switch {
	case task.Status == model.StatusCancelled:
		exec.Status = model.StatusCancelled
		exec.Error = result.Error
		exec.Progress = task.Progress
		exec.CurrentStep = task.CurrentStep
	case result.Success:
		exec.Status = model.StatusCompleted
		exec.Output = result.Output
		exec.Progress = 100
		exec.CurrentStep = "completed"
		step := "completed"
		if _, err := m.applyUpdate(ctx, exec.TaskID, statusUpdate{
			status: model.StatusCompleted,
			output: result.Output,
			step:   &step,
		}); err != nil {
			return err
		}
	default:
		exec.Status = model.StatusFailed
		exec.Error = result.Error
		exec.Progress = task.Progress
		exec.CurrentStep = task.CurrentStep
		if _, err := m.applyUpdate(ctx, exec.TaskID, statusUpdate{
			status: model.StatusFailed,
			errMsg: &result.Error,
		}); err != nil {
			return err
		}
	}

	if err := m.execs.UpdateExecution(ctx, exec); err != nil {
		return fmt.Errorf("recording execution outcome: %w", err)
	}

	m.logger.Info("execution finished",
		zap.String("task_id", exec.TaskID),
		zap.String("execution_id", exec.ID),
		zap.String("status", string(exec.Status)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return nil
}

// MarkOrphans fails every task left in running status by a previous process.
// Called once at daemon start, before the runner begins polling.
func (m *Manager) MarkOrphans(ctx context.Context) (int, error) {
	running, err := m.tasks.ListTasksByStatus(ctx, model.StatusRunning)
	if err != nil {
		return 0, err
	}
	msg := orphanError
	for _, t := range running {
		if _, err := m.applyUpdate(ctx, t.ID, statusUpdate{status: model.StatusFailed, errMsg: &msg}); err != nil {
			return 0, err
		}
		m.logger.Warn("orphaned task failed", zap.String("task_id", t.ID))
	}
	return len(running), nil
}

// publish emits an event, logging rather than propagating failures.
func (m *Manager) publish(ev events.Event) {
	if err := m.events.Publish(ev); err != nil {
		m.logger.Warn("event publish failed",
			zap.String("task_id", ev.TaskID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
	}
}
