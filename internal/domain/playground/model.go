package playground

import (
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/layout"
)

// Session is the persisted state of one mounted playground page.
type Session struct {
	ID            uuid.UUID                   `json:"id"`
	Config        evalconfig.EvaluationConfig `json:"config"`
	Nav           layout.NavState             `json:"nav"`
	ViewportWidth int                         `json:"viewportWidth"`
	LastRunID     *uuid.UUID                  `json:"lastRunId,omitempty"`
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

// SessionView is what clients see: the session plus derived shell state.
type SessionView struct {
	ID        uuid.UUID                   `json:"id"`
	Config    evalconfig.EvaluationConfig `json:"config"`
	Shell     layout.View                 `json:"shell"`
	LastRunID *uuid.UUID                  `json:"lastRunId,omitempty"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt"`
}

// RunStatus tracks the lifecycle of an evaluation run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunCanceled
}

// Run is one submission of a configuration snapshot.
type Run struct {
	ID          uuid.UUID                   `json:"id"`
	SessionID   uuid.UUID                   `json:"sessionId"`
	Config      evalconfig.EvaluationConfig `json:"config"`
	TestDataset []evaluator.QAPair          `json:"testDataset,omitempty"`
	Status      RunStatus                   `json:"status"`
	Results     []evaluator.QuestionResult  `json:"results"`
	Summary     *evaluator.Summary          `json:"summary,omitempty"`
	Error       string                      `json:"error,omitempty"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
	StartedAt   *time.Time                  `json:"startedAt,omitempty"`
	FinishedAt  *time.Time                  `json:"finishedAt,omitempty"`
}

// RunOutcome is the terminal state recorded by Finish.
type RunOutcome struct {
	Status     RunStatus
	Summary    *evaluator.Summary
	Error      string
	FinishedAt time.Time
}

// EventType labels run stream events.
type EventType string

const (
	EventStatus EventType = "status"
	EventResult EventType = "result"
	EventDone   EventType = "done"
)

// RunEvent is pushed to stream subscribers.
type RunEvent struct {
	Type    EventType                 `json:"type"`
	RunID   uuid.UUID                 `json:"runId"`
	Status  RunStatus                 `json:"status"`
	Result  *evaluator.QuestionResult `json:"result,omitempty"`
	Summary *evaluator.Summary        `json:"summary,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

// Upload is a file received from the editor surface.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// SubmitRequest carries optional inputs that are not part of the form.
type SubmitRequest struct {
	TestDataset []evaluator.QAPair `json:"testDataset"`
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}
