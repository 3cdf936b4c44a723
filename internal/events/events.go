// Package events publishes task lifecycle events to NATS so interested
// processes (UIs, audit sinks) can follow review progress without polling.
//
// Events are fire-and-forget: a publish failure is logged by the caller and
// never blocks or fails the task mutation that produced it.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/reviewd/internal/model"
	"github.com/fyrsmithlabs/reviewd/internal/sanitize"
)

// Event types.
const (
	TypeTaskCreated   = "task.created"
	TypeTaskStatus    = "task.status"
	TypeTaskProgress  = "task.progress"
	TypeTaskCompleted = "task.completed"
)

// Event is one task lifecycle notification.
type Event struct {
	Type      string           `json:"type"`
	TaskID    string           `json:"task_id"`
	MatterID  string           `json:"matter_id,omitempty"`
	AgentType model.AgentType  `json:"agent_type,omitempty"`
	Status    model.TaskStatus `json:"status,omitempty"`
	Progress  int              `json:"progress,omitempty"`
	Step      string           `json:"step,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Publisher emits task lifecycle events.
type Publisher interface {
	Publish(event Event) error
	Close()
}

// Config holds NATS publisher configuration.
type Config struct {
	// URL is the NATS server URL. Empty disables publishing.
	URL string `koanf:"url"`

	// SubjectPrefix prefixes every subject. Defaults to "reviewd".
	SubjectPrefix string `koanf:"subject_prefix"`
}

// DefaultConfig returns the default publisher configuration.
func DefaultConfig() Config {
	return Config{SubjectPrefix: "reviewd"}
}

// NATSPublisher publishes events over a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(cfg Config) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "reviewd"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("reviewd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Publish sends the event on "<prefix>.tasks.<task_id>.<type>".
func (p *NATSPublisher) Publish(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	// Task IDs are generated UUIDs, but the subject grammar forbids dots
	// and wildcards, so normalize the token anyway.
	subject := fmt.Sprintf("%s.tasks.%s.%s", p.prefix, sanitize.SubjectToken(event.TaskID), event.Type)
	return p.conn.Publish(subject, payload)
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// NopPublisher discards every event. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) error { return nil }
func (NopPublisher) Close()              {}
