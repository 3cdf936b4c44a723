package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/model"
	"github.com/fyrsmithlabs/reviewd/internal/sanitize"
	"github.com/fyrsmithlabs/reviewd/internal/store"
	"github.com/fyrsmithlabs/reviewd/internal/task"
)

// CreateTaskRequest is the request body for POST /api/v1/tasks.
type CreateTaskRequest struct {
	AgentType model.AgentType `json:"agent_type"`
	Name      string          `json:"name,omitempty"`
	Input     model.TaskInput `json:"input"`
}

// CreateTaskResponse wraps the created task with the agent's duration
// estimate so callers can size their polling interval.
type CreateTaskResponse struct {
	*model.Task
	EstimatedDurationSeconds float64 `json:"estimated_duration_seconds"`
}

// handleCreateTask creates a pending task for the runner to pick up.
func (s *Server) handleCreateTask(c echo.Context) error {
	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid create task request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	created, err := s.manager.CreateTask(c.Request().Context(), task.CreateTaskRequest{
		AgentType: req.AgentType,
		Name:      req.Name,
		Input:     req.Input,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// CreateTask already resolved the agent, so the estimate cannot fail.
	estimate, _ := s.manager.EstimateDuration(created.AgentType, created.Input)
	return c.JSON(http.StatusCreated, CreateTaskResponse{
		Task:                     created,
		EstimatedDurationSeconds: estimate.Seconds(),
	})
}

// handleListTasks lists tasks in one lifecycle state (?status=pending).
func (s *Server) handleListTasks(c echo.Context) error {
	status := model.TaskStatus(c.QueryParam("status"))
	if status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status query parameter is required")
	}
	if !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
	}
	tasks, err := s.manager.ListTasksByStatus(c.Request().Context(), status)
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// handleGetTask returns one task with its current status and progress.
func (s *Server) handleGetTask(c echo.Context) error {
	t, err := s.manager.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// handleCancelTask cancels a pending or running task.
func (s *Server) handleCancelTask(c echo.Context) error {
	t, err := s.manager.CancelTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// handleTaskExecutions returns the task's execution ledger, oldest first.
func (s *Server) handleTaskExecutions(c echo.Context) error {
	taskID := c.Param("id")
	if _, err := s.manager.GetTask(c.Request().Context(), taskID); err != nil {
		return taskError(err)
	}
	execs, err := s.manager.TaskExecutions(c.Request().Context(), taskID)
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, execs)
}

// handleMatterTasks returns a matter's tasks, newest first.
func (s *Server) handleMatterTasks(c echo.Context) error {
	tasks, err := s.manager.ListTasksByMatter(c.Request().Context(), c.Param("id"))
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// IngestDocument is one document in an ingest request. ID is optional; an
// omitted ID gets a generated one.
type IngestDocument struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
	DocType  string `json:"doc_type,omitempty"`
}

// IngestRequest is the request body for POST /api/v1/documents.
type IngestRequest struct {
	MatterID  string           `json:"matter_id"`
	Documents []IngestDocument `json:"documents"`
}

// IngestResponse is the response body for POST /api/v1/documents.
type IngestResponse struct {
	MatterID    string   `json:"matter_id"`
	DocumentIDs []string `json:"document_ids"`
}

// handleIngestDocuments upserts a batch of documents into a matter's corpus.
func (s *Server) handleIngestDocuments(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.MatterID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "matter_id field is required")
	}
	if err := sanitize.ValidateMatterID(req.MatterID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}

	ctx := c.Request().Context()
	ids := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		if d.Filename == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "every document needs a filename")
		}
		filename, err := sanitize.SafeFilename(d.Filename)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := sanitize.ValidateDocumentID(d.ID); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		doc := &model.Document{
			ID:        id,
			MatterID:  req.MatterID,
			Filename:  filename,
			Text:      d.Text,
			DocType:   d.DocType,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.docs.PutDocument(ctx, doc); err != nil {
			s.logger.Error("document ingest failed",
				zap.String("matter_id", req.MatterID),
				zap.String("document_id", id),
				zap.Error(err),
			)
			return echo.NewHTTPError(http.StatusInternalServerError, "storing document failed")
		}
		ids = append(ids, id)
	}

	s.logger.Info("documents ingested",
		zap.String("matter_id", req.MatterID),
		zap.Int("count", len(ids)),
	)
	return c.JSON(http.StatusCreated, IngestResponse{MatterID: req.MatterID, DocumentIDs: ids})
}

// handleMatterDocuments lists a matter's corpus.
func (s *Server) handleMatterDocuments(c echo.Context) error {
	docs, err := s.docs.ListDocumentsByMatter(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing documents failed")
	}
	return c.JSON(http.StatusOK, docs)
}

// taskError maps lifecycle errors onto HTTP status codes.
func taskError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	case errors.Is(err, task.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
