// Package store persists tasks, executions, and documents in SQLite.
//
// The schema is bootstrapped on open. Tasks hold the current projection of
// agent work, executions are the append-only attempt ledger, and documents
// are the review corpus keyed by matter.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/reviewd/internal/model"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// UpdateTask overwrites the mutable columns of a task row. Callers are
	// expected to go through the task lifecycle manager, which is the single
	// writer and enforces the state machine.
	UpdateTask(ctx context.Context, task *model.Task) error
	ListTasksByMatter(ctx context.Context, matterID string) ([]*model.Task, error)
	ListTasksByStatus(ctx context.Context, status model.TaskStatus) ([]*model.Task, error)
}

// ExecutionStore persists the execution ledger.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, exec *model.Execution) error
	UpdateExecution(ctx context.Context, exec *model.Execution) error
	ListExecutionsByTask(ctx context.Context, taskID string) ([]*model.Execution, error)
}

// DocumentStore reads and writes the review corpus.
type DocumentStore interface {
	PutDocument(ctx context.Context, doc *model.Document) error
	GetDocumentsByIDs(ctx context.Context, ids []string) ([]*model.Document, error)
	ListDocumentsByMatter(ctx context.Context, matterID string) ([]*model.Document, error)
}

// Store is the SQLite-backed implementation of all three store interfaces.
type Store struct {
	db *sql.DB
}

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file. ":memory:" opens an in-memory store.
	Path string `koanf:"path"`
}

// Open opens the database, enables foreign keys and WAL, and bootstraps the
// schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent task updates.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	matter_id    TEXT,
	agent_type   TEXT NOT NULL,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL,
	progress     INTEGER NOT NULL DEFAULT 0,
	current_step TEXT,
	input        TEXT NOT NULL,
	output       TEXT,
	error        TEXT,
	created_at   TIMESTAMP NOT NULL,
	started_at   TIMESTAMP,
	completed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tasks_matter ON tasks(matter_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS executions (
	id           TEXT PRIMARY KEY,
	task_id      TEXT NOT NULL REFERENCES tasks(id),
	agent_type   TEXT NOT NULL,
	status       TEXT NOT NULL,
	input        TEXT NOT NULL,
	output       TEXT,
	error        TEXT,
	progress     INTEGER NOT NULL DEFAULT 0,
	current_step TEXT,
	started_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_executions_task ON executions(task_id, started_at);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	matter_id  TEXT NOT NULL,
	filename   TEXT NOT NULL,
	text       TEXT NOT NULL,
	doc_type   TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_matter ON documents(matter_id);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}
