package playground

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
)

// SessionStore keeps sessions alive for a sliding TTL.
type SessionStore interface {
	Save(ctx context.Context, session Session, ttl time.Duration) error
	Get(ctx context.Context, id uuid.UUID) (Session, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ErrRunTransition is returned by RunRepository when a status change is not
// allowed from the run's current status.
var ErrRunTransition = errors.New("invalid run status transition")

// RunRepository persists runs and their incremental results.
type RunRepository interface {
	Create(ctx context.Context, run Run) error
	Get(ctx context.Context, id uuid.UUID) (Run, bool, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Run, error)
	// MarkRunning moves a pending run to running.
	MarkRunning(ctx context.Context, id uuid.UUID, at time.Time) error
	AppendResult(ctx context.Context, id uuid.UUID, result evaluator.QuestionResult) error
	// Finish records a terminal outcome for a run that is not terminal yet.
	Finish(ctx context.Context, id uuid.UUID, outcome RunOutcome) error
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
}

// ObjectStorage abstracts blob storage (R2/S3/local).
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// JobQueue enqueues processing tasks.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// FileValidator reports whether an upload can be turned into text.
type FileValidator interface {
	Supports(filename, mimeType string) bool
}
