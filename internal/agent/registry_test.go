package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// stubAgent is a minimal Agent for registry tests.
type stubAgent struct {
	id        string
	agentType model.AgentType
}

func (s *stubAgent) ID() string                  { return s.id }
func (s *stubAgent) Type() model.AgentType       { return s.agentType }
func (s *stubAgent) Capabilities() []Capability  { return nil }
func (s *stubAgent) RequiredContext() []string   { return nil }
func (s *stubAgent) ValidateInput(model.TaskInput) bool { return true }
func (s *stubAgent) EstimateDuration(model.TaskInput) time.Duration {
	return time.Second
}
func (s *stubAgent) Execute(context.Context, model.TaskInput, ProgressFunc) Result {
	return Result{Success: true}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	a := &stubAgent{id: "discovery-1", agentType: model.AgentDiscovery}
	require.NoError(t, r.Register(a))

	got, err := r.Get(model.AgentDiscovery)
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&stubAgent{id: "a", agentType: model.AgentResearch}))
	err := r.Register(&stubAgent{id: "b", agentType: model.AgentResearch})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsUnknownType(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&stubAgent{id: "a", agentType: model.AgentType("astrology")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent type")
}

func TestRegistryRejectsNil(t *testing.T) {
	require.Error(t, NewRegistry().Register(nil))
}

func TestRegistryGetMissing(t *testing.T) {
	_, err := NewRegistry().Get(model.AgentDrafting)
	require.Error(t, err)
}

func TestRegistryTypesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubAgent{id: "a", agentType: model.AgentResearch}))
	require.NoError(t, r.Register(&stubAgent{id: "b", agentType: model.AgentDiscovery}))

	assert.Equal(t, []model.AgentType{model.AgentDiscovery, model.AgentResearch}, r.Types())
}
