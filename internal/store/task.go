package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// CreateTask inserts a new task row.
func (s *Store) CreateTask(ctx context.Context, task *model.Task) error {
	input, err := json.Marshal(task.Input)
	if err != nil {
		return fmt.Errorf("marshaling task input: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, matter_id, agent_type, name, status, progress, current_step, input, output, error, created_at, started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		task.ID, nullable(task.MatterID), string(task.AgentType), task.Name,
		string(task.Status), task.Progress, nullable(task.CurrentStep),
		string(input), nullableBytes(task.Output), nullable(task.Error),
		task.CreatedAt, task.StartedAt, task.CompletedAt)
	return err
}

// GetTask fetches a task by ID, returning ErrNotFound if absent.
func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, matter_id, agent_type, name, status, progress, current_step, input, output, error, created_at, started_at, completed_at
		FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// UpdateTask overwrites the mutable columns of the task row.
func (s *Store) UpdateTask(ctx context.Context, task *model.Task) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, progress = ?, current_step = ?, output = ?, error = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		string(task.Status), task.Progress, nullable(task.CurrentStep),
		nullableBytes(task.Output), nullable(task.Error),
		task.StartedAt, task.CompletedAt, task.ID)
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

// ListTasksByMatter returns a matter's tasks, newest first.
func (s *Store) ListTasksByMatter(ctx context.Context, matterID string) ([]*model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, matter_id, agent_type, name, status, progress, current_step, input, output, error, created_at, started_at, completed_at
		FROM tasks WHERE matter_id = ? ORDER BY created_at DESC`, matterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListTasksByStatus returns tasks in the given status, oldest first so the
// runner claims pending work in creation order.
func (s *Store) ListTasksByStatus(ctx context.Context, status model.TaskStatus) ([]*model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, matter_id, agent_type, name, status, progress, current_step, input, output, error, created_at, started_at, completed_at
		FROM tasks WHERE status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		t           model.Task
		matterID    sql.NullString
		currentStep sql.NullString
		input       string
		output      sql.NullString
		errMsg      sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
		agentType   string
		status      string
	)
	err := row.Scan(&t.ID, &matterID, &agentType, &t.Name, &status, &t.Progress,
		&currentStep, &input, &output, &errMsg, &t.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.MatterID = matterID.String
	t.AgentType = model.AgentType(agentType)
	t.Status = model.TaskStatus(status)
	t.CurrentStep = currentStep.String
	t.Error = errMsg.String
	if output.Valid {
		t.Output = []byte(output.String)
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(input), &t.Input); err != nil {
		return nil, fmt.Errorf("unmarshaling task input: %w", err)
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]*model.Task, error) {
	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
