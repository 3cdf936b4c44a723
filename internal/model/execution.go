package model

import "time"

// Execution records one attempt to run a task.
//
// Executions are append-only: a row is created when the attempt starts and
// finalized exactly once when it reaches a terminal status. The parent task
// row mirrors the latest execution's status and progress.
type Execution struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	AgentType   AgentType  `json:"agent_type"`
	Status      TaskStatus `json:"status"`
	Input       TaskInput  `json:"input"`
	Output      []byte     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the execution has finished.
func (e *Execution) IsTerminal() bool {
	return e.Status.IsTerminal()
}
