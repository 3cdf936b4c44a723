package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// CreateExecution appends a new execution to the ledger.
func (s *Store) CreateExecution(ctx context.Context, exec *model.Execution) error {
	input, err := json.Marshal(exec.Input)
	if err != nil {
		return fmt.Errorf("marshaling execution input: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (id, task_id, agent_type, status, input, output, error, progress, current_step, started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		exec.ID, exec.TaskID, string(exec.AgentType), string(exec.Status),
		string(input), nullableBytes(exec.Output), nullable(exec.Error),
		exec.Progress, nullable(exec.CurrentStep), exec.StartedAt, exec.CompletedAt)
	return err
}

// UpdateExecution overwrites the mutable columns of an execution row.
func (s *Store) UpdateExecution(ctx context.Context, exec *model.Execution) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET status = ?, output = ?, error = ?, progress = ?, current_step = ?, completed_at = ?
		WHERE id = ?`,
		string(exec.Status), nullableBytes(exec.Output), nullable(exec.Error),
		exec.Progress, nullable(exec.CurrentStep), exec.CompletedAt, exec.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExecutionsByTask returns a task's executions ordered by start time.
func (s *Store) ListExecutionsByTask(ctx context.Context, taskID string) ([]*model.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, agent_type, status, input, output, error, progress, current_step, started_at, completed_at
		FROM executions WHERE task_id = ? ORDER BY started_at ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*model.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

func scanExecution(row rowScanner) (*model.Execution, error) {
	var (
		e           model.Execution
		agentType   string
		status      string
		input       string
		output      sql.NullString
		errMsg      sql.NullString
		currentStep sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.TaskID, &agentType, &status, &input, &output,
		&errMsg, &e.Progress, &currentStep, &e.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.AgentType = model.AgentType(agentType)
	e.Status = model.TaskStatus(status)
	e.Error = errMsg.String
	e.CurrentStep = currentStep.String
	if output.Valid {
		e.Output = []byte(output.String)
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(input), &e.Input); err != nil {
		return nil, fmt.Errorf("unmarshaling execution input: %w", err)
	}
	return &e, nil
}
