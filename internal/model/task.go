// Package model defines the core entities of the review engine: tasks,
// executions, and documents.
//
// A Task is a persisted unit of agent work with a lifecycle status. An
// Execution is one attempt to run a task; a task may accumulate several
// executions, and the executions form the append-only ledger while the task
// row holds the current projection.
package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// AgentType identifies the agent implementation a task is dispatched to.
//
// The set is closed: dispatch goes through this enum, not free-form strings,
// so adding an agent type is a compile-time-checked extension.
type AgentType string

const (
	// AgentResearch performs legal research over case law and statutes.
	AgentResearch AgentType = "research"

	// AgentDrafting drafts legal documents from structured instructions.
	AgentDrafting AgentType = "drafting"

	// AgentDiscovery runs the discovery document review pipeline.
	AgentDiscovery AgentType = "discovery"

	// AgentContract analyzes contract terms and obligations.
	AgentContract AgentType = "contract"

	// AgentTimeline reconstructs event timelines from a matter's documents.
	AgentTimeline AgentType = "timeline"

	// AgentDocumentAnalysis analyzes a single document in depth.
	AgentDocumentAnalysis AgentType = "document-analysis"
)

// AllAgentTypes returns the closed set of agent types.
func AllAgentTypes() []AgentType {
	return []AgentType{
		AgentResearch,
		AgentDrafting,
		AgentDiscovery,
		AgentContract,
		AgentTimeline,
		AgentDocumentAnalysis,
	}
}

// Valid reports whether t is a member of the closed agent type set.
func (t AgentType) Valid() bool {
	for _, known := range AllAgentTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// TaskStatus represents the lifecycle state of a task or execution.
//
// The state machine is:
//
//	pending → running → {completed | failed | cancelled}
//	pending → failed      (input rejected before start)
//	pending → cancelled   (cancelled before start)
//
// No transition leaves a terminal state.
type TaskStatus string

const (
	// StatusPending means the task is created and waiting to be executed.
	StatusPending TaskStatus = "pending"

	// StatusRunning means an execution owns the task and is in progress.
	StatusRunning TaskStatus = "running"

	// StatusCompleted means the task finished and its output is persisted.
	StatusCompleted TaskStatus = "completed"

	// StatusFailed means the task aborted with an error message.
	StatusFailed TaskStatus = "failed"

	// StatusCancelled means the task was cancelled by the caller.
	StatusCancelled TaskStatus = "cancelled"
)

// Valid reports whether s is a member of the status set.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is one of the three terminal states.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ValidTransition reports whether moving from one status to another is
// allowed by the state machine. Self-transitions are permitted for
// non-terminal states so that progress-only updates can reuse the single
// mutation path.
func ValidTransition(from, to TaskStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusPending || to == StatusRunning || to == StatusFailed || to == StatusCancelled
	case StatusRunning:
		return to == StatusRunning || to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	default:
		return false
	}
}

// DiscoveryRequest is one numbered request for production the responsiveness
// classifier matches documents against.
type DiscoveryRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TaskInput is the input payload a task carries to its agent.
type TaskInput struct {
	// Query is the caller's instruction or question. Required.
	Query string `json:"query"`

	// MatterID scopes the task to a matter. Empty for matter-less tasks.
	MatterID string `json:"matter_id,omitempty"`

	// MatterName and ClientName give the model path context for privilege
	// judgment. Optional.
	MatterName string `json:"matter_name,omitempty"`
	ClientName string `json:"client_name,omitempty"`

	// DocumentIDs restricts the document set. When empty the agent loads
	// all documents of the matter.
	DocumentIDs []string `json:"document_ids,omitempty"`

	// DiscoveryRequests are the requests for production to analyze
	// responsiveness against.
	DiscoveryRequests []DiscoveryRequest `json:"discovery_requests,omitempty"`

	// Parameters carries agent-specific free-form options.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Task is a persisted unit of agent work.
type Task struct {
	ID          string     `json:"id"`
	MatterID    string     `json:"matter_id,omitempty"`
	AgentType   AgentType  `json:"agent_type"`
	Name        string     `json:"name"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step,omitempty"`
	Input       TaskInput  `json:"input"`
	Output      []byte     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// maxAutoNameQuery bounds the query excerpt used in auto-generated names.
const maxAutoNameQuery = 50

// AutoName derives a human-readable task name from the agent type and a
// truncated query. Used when the caller supplies no name.
func AutoName(agentType AgentType, query string) string {
	query = strings.TrimSpace(query)
	if len(query) > maxAutoNameQuery {
		cut := maxAutoNameQuery
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character.
		for cut > 0 && !utf8.RuneStart(query[cut]) {
			cut--
		}
		query = query[:cut] + "…"
	}
	if query == "" {
		return string(agentType) + " task"
	}
	return string(agentType) + ": " + query
}
