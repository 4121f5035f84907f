package runrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/playground"
)

// MemoryRepository keeps runs in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[uuid.UUID]playground.Run
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[uuid.UUID]playground.Run)}
}

func (r *MemoryRepository) Create(_ context.Context, run playground.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[run.ID] = copyRun(run)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (playground.Run, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.data[id]
	if !ok {
		return playground.Run{}, false, nil
	}
	return copyRun(run), true, nil
}

func (r *MemoryRepository) ListBySession(_ context.Context, sessionID uuid.UUID) ([]playground.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]playground.Run, 0)
	for _, run := range r.data {
		if run.SessionID == sessionID {
			out = append(out, copyRun(run))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) MarkRunning(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.data[id]
	if !ok || run.Status != playground.RunPending {
		return playground.ErrRunTransition
	}
	run.Status = playground.RunRunning
	run.StartedAt = &at
	run.UpdatedAt = at
	r.data[id] = run
	return nil
}

func (r *MemoryRepository) AppendResult(_ context.Context, id uuid.UUID, result evaluator.QuestionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.data[id]
	if !ok || run.Status.Terminal() {
		return playground.ErrRunTransition
	}
	run.Results = append(run.Results, result)
	run.UpdatedAt = time.Now().UTC()
	r.data[id] = run
	return nil
}

func (r *MemoryRepository) Finish(_ context.Context, id uuid.UUID, outcome playground.RunOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.data[id]
	if !ok || run.Status.Terminal() {
		return playground.ErrRunTransition
	}
	finished := outcome.FinishedAt
	run.Status = outcome.Status
	run.Error = outcome.Error
	run.FinishedAt = &finished
	run.UpdatedAt = finished
	if outcome.Summary != nil {
		summary := *outcome.Summary
		run.Summary = &summary
	}
	r.data[id] = run
	return nil
}

func (r *MemoryRepository) DeleteBySession(_ context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, run := range r.data {
		if run.SessionID == sessionID {
			delete(r.data, id)
		}
	}
	return nil
}

func copyRun(run playground.Run) playground.Run {
	out := run
	out.Config = run.Config.Clone()
	out.TestDataset = append([]evaluator.QAPair(nil), run.TestDataset...)
	out.Results = append([]evaluator.QuestionResult{}, run.Results...)
	return out
}

var _ playground.RunRepository = (*MemoryRepository)(nil)
