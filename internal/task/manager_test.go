package task

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reviewd/internal/agent"
	"github.com/fyrsmithlabs/reviewd/internal/model"
	"github.com/fyrsmithlabs/reviewd/internal/store"
)

// stubAgent is a scriptable agent for lifecycle tests.
type stubAgent struct {
	agentType model.AgentType
	reject    bool
	execute   func(ctx context.Context, input model.TaskInput, progress agent.ProgressFunc) agent.Result
}

func (s *stubAgent) ID() string                       { return "stub" }
func (s *stubAgent) Type() model.AgentType            { return s.agentType }
func (s *stubAgent) Capabilities() []agent.Capability { return nil }
func (s *stubAgent) RequiredContext() []string        { return nil }
func (s *stubAgent) ValidateInput(model.TaskInput) bool {
	return !s.reject
}
func (s *stubAgent) EstimateDuration(model.TaskInput) time.Duration { return time.Second }
func (s *stubAgent) Execute(ctx context.Context, input model.TaskInput, progress agent.ProgressFunc) agent.Result {
	if s.execute != nil {
		return s.execute(ctx, input, progress)
	}
	return agent.Result{Success: true, Output: []byte(`{"ok":true}`)}
}

func newTestManager(t *testing.T, agents ...agent.Agent) *Manager {
	t.Helper()
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "reviewd.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	registry := agent.NewRegistry()
	for _, a := range agents {
		require.NoError(t, registry.Register(a))
	}

	m, err := NewManager(s, s, registry, nil, nil)
	require.NoError(t, err)
	return m
}

func discoveryRequest() CreateTaskRequest {
	return CreateTaskRequest{
		AgentType: model.AgentDiscovery,
		Input:     model.TaskInput{Query: "review for production", MatterID: "matter-1"},
	}
}

func TestCreateTask(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})

	task, err := m.CreateTask(context.Background(), discoveryRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Equal(t, "discovery: review for production", task.Name)
	assert.Zero(t, task.Progress)
	assert.Nil(t, task.StartedAt)

	got, err := m.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestCreateTaskValidation(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})

	_, err := m.CreateTask(context.Background(), CreateTaskRequest{AgentType: model.AgentDiscovery})
	require.Error(t, err, "empty query must be rejected")

	_, err = m.CreateTask(context.Background(), CreateTaskRequest{
		AgentType: model.AgentResearch,
		Input:     model.TaskInput{Query: "anything"},
	})
	require.Error(t, err, "unregistered agent type must be rejected")
}

func TestRunCompletesTask(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, task.ID))

	got, err := m.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.JSONEq(t, `{"ok":true}`, string(got.Output))
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)

	execs, err := m.TaskExecutions(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, model.StatusCompleted, execs[0].Status)
	assert.Equal(t, 100, execs[0].Progress)
	assert.Equal(t, "completed", execs[0].CurrentStep)
	assert.NotNil(t, execs[0].CompletedAt)
}

func TestExecutionLedgerTracksProgress(t *testing.T) {
	m := newTestManager(t, &stubAgent{
		agentType: model.AgentDiscovery,
		execute: func(_ context.Context, _ model.TaskInput, progress agent.ProgressFunc) agent.Result {
			progress(42, "halfway")
			return agent.Failure("broke mid-pass", 0)
		},
	})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, task.ID))

	// The ledger row carries the last reported progress and step, not just
	// the task projection.
	execs, err := m.TaskExecutions(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, model.StatusFailed, execs[0].Status)
	assert.Equal(t, 42, execs[0].Progress)
	assert.Equal(t, "halfway", execs[0].CurrentStep)
}

func TestRunRecordsAgentFailure(t *testing.T) {
	m := newTestManager(t, &stubAgent{
		agentType: model.AgentDiscovery,
		execute: func(context.Context, model.TaskInput, agent.ProgressFunc) agent.Result {
			return agent.Failure("corpus unreadable", 0)
		},
	})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, task.ID))

	got, err := m.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "corpus unreadable", got.Error)

	execs, err := m.TaskExecutions(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, model.StatusFailed, execs[0].Status)
}

func TestRunRejectsInvalidInput(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery, reject: true})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, task.ID))

	got, err := m.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "input rejected")

	// No execution is recorded for an input-stage failure.
	execs, err := m.TaskExecutions(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestCancelPendingTask(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)

	cancelled, err := m.CancelTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)

	// A cancelled task cannot be picked up.
	require.Error(t, m.Run(ctx, task.ID))
}

func TestCancelRunningTask(t *testing.T) {
	started := make(chan struct{})
	m := newTestManager(t, &stubAgent{
		agentType: model.AgentDiscovery,
		execute: func(ctx context.Context, _ model.TaskInput, _ agent.ProgressFunc) agent.Result {
			close(started)
			<-ctx.Done()
			return agent.Failure("interrupted: "+ctx.Err().Error(), 0)
		},
	})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, task.ID) }()
	<-started

	// The status flips immediately, before the agent observes the signal.
	cancelled, err := m.CancelTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	require.NoError(t, <-done)

	got, err := m.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Empty(t, got.Output)

	execs, err := m.TaskExecutions(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, model.StatusCancelled, execs[0].Status)
}

func TestCancelTerminalTaskFails(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, task.ID))

	_, err = m.CancelTask(ctx, task.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestProgressIsMonotonic(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	_, err = m.applyUpdate(ctx, task.ID, statusUpdate{status: model.StatusRunning})
	require.NoError(t, err)

	set := func(p int) *model.Task {
		got, err := m.applyUpdate(ctx, task.ID, statusUpdate{status: model.StatusRunning, progress: &p})
		require.NoError(t, err)
		return got
	}

	assert.Equal(t, 50, set(50).Progress)
	assert.Equal(t, 50, set(20).Progress, "progress must never decrease")
	assert.Equal(t, 80, set(80).Progress)
}

func TestTerminalStatusIsFinal(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, task.ID))

	for _, status := range []model.TaskStatus{
		model.StatusPending, model.StatusRunning, model.StatusFailed, model.StatusCancelled,
	} {
		_, err := m.applyUpdate(ctx, task.ID, statusUpdate{status: status})
		require.ErrorIs(t, err, ErrInvalidTransition, "completed -> %s must be rejected", status)
	}
}

func TestMarkOrphans(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	_, err = m.applyUpdate(ctx, task.ID, statusUpdate{status: model.StatusRunning})
	require.NoError(t, err)

	n, err := m.MarkOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "orphaned by restart", got.Error)
}

func TestListTasksByStatus(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx := context.Background()

	first, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	_, err = m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, first.ID))

	pending, err := m.ListTasksByStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	completed, err := m.ListTasksByStatus(ctx, model.StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)
}

func TestEstimateDuration(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})

	d, err := m.EstimateDuration(model.AgentDiscovery, model.TaskInput{Query: "review"})
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	_, err = m.EstimateDuration(model.AgentResearch, model.TaskInput{})
	assert.Error(t, err, "unregistered agent type has no estimate")
}

func TestNewManagerValidatesDeps(t *testing.T) {
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "reviewd.db")})
	require.NoError(t, err)
	defer s.Close()

	_, err = NewManager(nil, s, agent.NewRegistry(), nil, nil)
	assert.Error(t, err)
	_, err = NewManager(s, nil, agent.NewRegistry(), nil, nil)
	assert.Error(t, err)
	_, err = NewManager(s, s, nil, nil, nil)
	assert.Error(t, err)
}

func TestErrInvalidTransitionWrapped(t *testing.T) {
	m := newTestManager(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx := context.Background()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)

	_, err = m.applyUpdate(ctx, task.ID, statusUpdate{status: model.StatusCompleted})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}
