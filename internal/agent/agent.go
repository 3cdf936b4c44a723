// Package agent defines the execution contract all long-running agents
// implement, and the closed registry they are dispatched through.
//
// Agents declare their capabilities and required context up front, validate
// input before execution, estimate duration for UI expectations, and report
// progress through a callback. Expected failure modes (missing input, model
// unavailable) never surface as errors from Execute; they become a Result
// with Success=false and a populated Error.
package agent

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// Capability describes one named thing an agent can do.
type Capability struct {
	// Name identifies the capability.
	Name string `json:"name"`

	// Accepts and Produces are data-kind tags for the capability's input
	// and output.
	Accepts  []string `json:"accepts"`
	Produces []string `json:"produces"`

	// EstimatedDuration is a rough per-invocation duration for UI
	// expectations. Never a hard deadline.
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Result is the uniform outcome of an agent execution.
type Result struct {
	// Success reports whether the agent completed its work.
	Success bool `json:"success"`

	// Output is the structured result payload, nil on failure.
	Output []byte `json:"output,omitempty"`

	// Error describes an expected failure mode when Success is false.
	Error string `json:"error,omitempty"`

	// Citations lists source references the agent relied on.
	Citations []string `json:"citations,omitempty"`

	// Metadata carries agent-specific extras.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Elapsed is the wall-clock execution time.
	Elapsed time.Duration `json:"elapsed"`
}

// Failure builds a failed Result with the given error message.
func Failure(msg string, elapsed time.Duration) Result {
	return Result{Success: false, Error: msg, Elapsed: elapsed}
}

// ProgressFunc receives progress updates during execution: a percentage in
// [0, 100] and a human-readable step label. Implementations must tolerate
// fire-and-forget semantics; progress is advisory, never a completion
// signal.
type ProgressFunc func(percent int, step string)

// Agent is the contract every long-running job implements.
type Agent interface {
	// ID returns the agent's stable identifier.
	ID() string

	// Type returns the agent type tag the registry dispatches on.
	Type() model.AgentType

	// Capabilities declares what the agent can do.
	Capabilities() []Capability

	// RequiredContext lists the external data that must be supplied in the
	// task input before execution (e.g. "matter", "documents").
	RequiredContext() []string

	// ValidateInput performs a structural check on the input. It returns
	// false, rather than failing later, for caller-correctable problems.
	ValidateInput(input model.TaskInput) bool

	// EstimateDuration returns a cheap duration heuristic for the input,
	// used for UI expectations only.
	EstimateDuration(input model.TaskInput) time.Duration

	// Execute runs the agent. Cancellation is cooperative: the agent
	// observes ctx at the checkpoints it chooses. Expected failures are
	// reported in the Result, not returned as errors.
	Execute(ctx context.Context, input model.TaskInput, progress ProgressFunc) Result
}
