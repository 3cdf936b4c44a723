package task

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reviewd/internal/agent"
	"github.com/fyrsmithlabs/reviewd/internal/model"
	"github.com/fyrsmithlabs/reviewd/internal/store"
)

func newTestRunner(t *testing.T, agents ...agent.Agent) (*Runner, *Manager, *store.Store) {
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

	cfg := RunnerConfig{PollInterval: 20 * time.Millisecond, Workers: 2}
	return NewRunner(cfg, m, s, nil), m, s
}

func TestRunnerExecutesPendingTasks(t *testing.T) {
	r, m, _ := newTestRunner(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	second, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		a, err := m.GetTask(context.Background(), first.ID)
		if err != nil {
			return false
		}
		b, err := m.GetTask(context.Background(), second.ID)
		if err != nil {
			return false
		}
		return a.Status == model.StatusCompleted && b.Status == model.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunnerFailsOrphansOnStart(t *testing.T) {
	r, m, _ := newTestRunner(t, &stubAgent{agentType: model.AgentDiscovery})
	ctx, cancel := context.WithCancel(context.Background())

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)
	_, err = m.applyUpdate(ctx, task.ID, statusUpdate{status: model.StatusRunning})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		got, err := m.GetTask(context.Background(), task.ID)
		return err == nil && got.Status == model.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	got, err := m.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "orphaned by restart", got.Error)

	cancel()
	<-done
}

func TestRunnerDoesNotDoubleClaim(t *testing.T) {
	blocked := make(chan struct{})
	release := make(chan struct{})
	r, m, _ := newTestRunner(t, &stubAgent{
		agentType: model.AgentDiscovery,
		execute: func(context.Context, model.TaskInput, agent.ProgressFunc) agent.Result {
			blocked <- struct{}{}
			<-release
			return agent.Result{Success: true}
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := m.CreateTask(ctx, discoveryRequest())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Start(ctx)
	}()

	// Exactly one worker picks the task up even across several polls.
	<-blocked
	time.Sleep(100 * time.Millisecond)
	select {
	case <-blocked:
		t.Fatal("task was claimed twice")
	default:
	}
	close(release)

	require.Eventually(t, func() bool {
		got, err := m.GetTask(context.Background(), task.ID)
		return err == nil && got.Status == model.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	execs, err := m.TaskExecutions(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Len(t, execs, 1)

	cancel()
	<-done
}
