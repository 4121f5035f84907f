package playground

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	apperrors "github.com/yanqian/evaluator-ai/pkg/errors"
)

// Submit snapshots the session's form and queues it for evaluation. The run is
// returned while still pending.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, req SubmitRequest) (Run, error) {
	dataset, err := cleanDataset(req.TestDataset)
	if err != nil {
		return Run{}, err
	}
	var run Run
	err = s.withSession(ctx, id, func(session *Session) (bool, error) {
		cfg := session.Config.Clone()
		if err := evalconfig.ValidateForSubmit(cfg, len(dataset) > 0); err != nil {
			if fields, ok := evalconfig.AsFieldErrors(err); ok {
				return false, apperrors.Wrap(apperrors.CodeInvalidField, "configuration cannot be submitted", fields)
			}
			return false, err
		}
		existing, err := s.runs.ListBySession(ctx, id)
		if err != nil {
			return false, apperrors.Wrap(apperrors.CodeStorage, "failed to list runs", err)
		}
		for _, r := range existing {
			if !r.Status.Terminal() {
				return false, apperrors.Wrap(apperrors.CodeConflict, "a run is already in progress", nil)
			}
		}
		now := s.now()
		run = Run{
			ID:          uuid.New(),
			SessionID:   id,
			Config:      cfg,
			TestDataset: dataset,
			Status:      RunPending,
			Results:     []evaluator.QuestionResult{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.runs.Create(ctx, run); err != nil {
			return false, apperrors.Wrap(apperrors.CodeStorage, "failed to create run", err)
		}
		runID := run.ID
		session.LastRunID = &runID
		return true, nil
	})
	if err != nil {
		return Run{}, err
	}
	if err := s.queue.Enqueue(ctx, JobEvaluateRun, map[string]any{"run_id": run.ID.String()}); err != nil {
		s.logger.Error("enqueue run failed", "run_id", run.ID, "error", err)
		s.finish(run, RunOutcome{Status: RunFailed, Error: "failed to queue the evaluation"}, time.Time{})
		return Run{}, apperrors.Wrap(apperrors.CodeBackend, "failed to queue the evaluation", err)
	}
	s.logger.Info("run submitted", "session_id", id, "run_id", run.ID, "model", run.Config.Model, "retriever", run.Config.Retriever)
	return run, nil
}

// HandleJob adapts queue deliveries to ExecuteRun.
func (s *Service) HandleJob(ctx context.Context, name string, payload map[string]any) {
	if name != JobEvaluateRun {
		s.logger.Warn("unknown job", "name", name)
		return
	}
	raw, _ := payload["run_id"].(string)
	runID, err := uuid.Parse(raw)
	if err != nil {
		s.logger.Warn("job payload missing run id", "payload", payload)
		return
	}
	if err := s.ExecuteRun(ctx, runID); err != nil {
		s.logger.Error("run execution failed", "run_id", runID, "error", err)
	}
}

// ExecuteRun evaluates a pending run. Results are persisted and published as
// they arrive; the run ends succeeded, failed or canceled.
func (s *Service) ExecuteRun(ctx context.Context, runID uuid.UUID) error {
	run, found, err := s.runs.Get(ctx, runID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to load run", err)
	}
	if !found {
		return apperrors.Wrap(apperrors.CodeNotFound, "run not found", nil)
	}
	if run.Status != RunPending {
		s.logger.Info("skip run", "run_id", runID, "status", run.Status)
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	if !s.inflight.add(run.SessionID, run.ID, cancel) {
		return nil
	}
	defer s.inflight.remove(run.ID)

	started := s.now()
	if err := s.runs.MarkRunning(runCtx, run.ID, started); err != nil {
		if errors.Is(err, ErrRunTransition) {
			return nil
		}
		s.finish(run, RunOutcome{Status: RunFailed, Error: "failed to start run"}, started)
		return apperrors.Wrap(apperrors.CodeStorage, "failed to mark run running", err)
	}
	s.broker.publish(RunEvent{Type: EventStatus, RunID: run.ID, Status: RunRunning})
	logger := s.logger.With("run_id", run.ID, "session_id", run.SessionID)
	logger.Info("run started")

	docs, err := s.loadDocuments(runCtx, run.Config.Files)
	if err != nil {
		s.finish(run, s.outcome(runCtx, nil, err), started)
		return err
	}

	summary, err := s.backend.Evaluate(runCtx, evaluator.Request{
		Config:      run.Config,
		Documents:   docs,
		TestDataset: run.TestDataset,
	}, func(result evaluator.QuestionResult) {
		if err := s.runs.AppendResult(context.WithoutCancel(runCtx), run.ID, result); err != nil {
			logger.Warn("persist result failed", "index", result.Index, "error", err)
		}
		res := result
		s.broker.publish(RunEvent{Type: EventResult, RunID: run.ID, Status: RunRunning, Result: &res})
	})
	outcome := s.outcome(runCtx, &summary, err)
	s.finish(run, outcome, started)
	logger.Info("run finished", "status", outcome.Status, "questions", summary.Questions, "error", outcome.Error)
	return nil
}

// CancelRun stops a pending or running run.
func (s *Service) CancelRun(ctx context.Context, sessionID, runID uuid.UUID) (Run, error) {
	run, err := s.GetRun(ctx, sessionID, runID)
	if err != nil {
		return Run{}, err
	}
	if run.Status.Terminal() {
		return Run{}, apperrors.Wrap(apperrors.CodeConflict, fmt.Sprintf("run already %s", run.Status), nil)
	}
	if s.inflight.cancel(runID) {
		s.logger.Info("run cancel requested", "run_id", runID)
		return s.awaitTerminal(ctx, sessionID, runID)
	}
	// Not picked up by a worker yet. A worker that starts in between is
	// canceled too and its outcome is discarded by the repository.
	s.finish(run, RunOutcome{Status: RunCanceled, Error: "canceled before start"}, time.Time{})
	s.inflight.cancel(runID)
	return s.GetRun(ctx, sessionID, runID)
}

// GetRun returns a run owned by the session.
func (s *Service) GetRun(ctx context.Context, sessionID, runID uuid.UUID) (Run, error) {
	run, found, err := s.runs.Get(ctx, runID)
	if err != nil {
		return Run{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load run", err)
	}
	if !found || run.SessionID != sessionID {
		return Run{}, apperrors.Wrap(apperrors.CodeNotFound, "run not found", nil)
	}
	return run, nil
}

// ListRuns returns the session's runs, newest first.
func (s *Service) ListRuns(ctx context.Context, sessionID uuid.UUID) ([]Run, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	runs, err := s.runs.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to list runs", err)
	}
	return runs, nil
}

// Shutdown cancels every in-flight run.
func (s *Service) Shutdown() {
	s.inflight.cancelAll()
}

func (s *Service) awaitTerminal(ctx context.Context, sessionID, runID uuid.UUID) (Run, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)
	for {
		run, err := s.GetRun(ctx, sessionID, runID)
		if err != nil || run.Status.Terminal() {
			return run, err
		}
		select {
		case <-ctx.Done():
			return run, nil
		case <-deadline:
			return run, nil
		case <-ticker.C:
		}
	}
}

func (s *Service) loadDocuments(ctx context.Context, files []evalconfig.FileRef) ([]evaluator.Document, error) {
	docs := make([]evaluator.Document, 0, len(files))
	for _, ref := range files {
		rc, err := s.storage.Get(ctx, ref.StorageKey)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to read "+ref.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to read "+ref.Name, err)
		}
		docs = append(docs, evaluator.Document{Name: ref.Name, MimeType: ref.MimeType, Data: data})
	}
	return docs, nil
}

func (s *Service) outcome(ctx context.Context, summary *evaluator.Summary, err error) RunOutcome {
	switch {
	case err == nil:
		return RunOutcome{Status: RunSucceeded, Summary: summary}
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return RunOutcome{Status: RunCanceled, Summary: summary, Error: "canceled"}
	default:
		return RunOutcome{Status: RunFailed, Summary: summary, Error: failureMessage(err)}
	}
}

// finish records the terminal state, publishes it and closes the stream.
func (s *Service) finish(run Run, outcome RunOutcome, started time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if outcome.FinishedAt.IsZero() {
		outcome.FinishedAt = s.now()
	}
	if outcome.Summary != nil && outcome.Summary.Questions == 0 && outcome.Status != RunSucceeded {
		outcome.Summary = nil
	}
	if err := s.runs.Finish(ctx, run.ID, outcome); err != nil {
		if errors.Is(err, ErrRunTransition) {
			return
		}
		s.logger.Error("record run outcome failed", "run_id", run.ID, "error", err)
	}
	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = outcome.FinishedAt.Sub(started)
	}
	s.metrics.RunFinished(string(outcome.Status), elapsed)
	s.broker.publish(RunEvent{
		Type:    EventDone,
		RunID:   run.ID,
		Status:  outcome.Status,
		Summary: outcome.Summary,
		Error:   outcome.Error,
	})
	s.broker.close(run.ID)
}

func failureMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if fields, ok := evalconfig.AsFieldErrors(err); ok {
		return "invalid configuration: " + fields.Error()
	}
	return "evaluation failed"
}

func cleanDataset(pairs []evaluator.QAPair) ([]evaluator.QAPair, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make([]evaluator.QAPair, 0, len(pairs))
	for i, pair := range pairs {
		q := strings.TrimSpace(pair.Question)
		a := strings.TrimSpace(pair.Answer)
		if q == "" || a == "" {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("testDataset[%d] needs a question and an answer", i), nil)
		}
		out = append(out, evaluator.QAPair{Question: q, Answer: a})
	}
	return out, nil
}

// inflightRuns tracks cancel funcs of runs executing in this process.
type inflightRuns struct {
	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	owners  map[uuid.UUID]uuid.UUID
}

func newInflightRuns() *inflightRuns {
	return &inflightRuns{
		cancels: make(map[uuid.UUID]context.CancelFunc),
		owners:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *inflightRuns) add(sessionID, runID uuid.UUID, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cancels[runID]; exists {
		return false
	}
	r.cancels[runID] = cancel
	r.owners[runID] = sessionID
	return true
}

func (r *inflightRuns) remove(runID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, runID)
	delete(r.owners, runID)
}

func (r *inflightRuns) cancel(runID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

func (r *inflightRuns) cancelSession(sessionID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for runID, owner := range r.owners {
		if owner == sessionID {
			r.cancels[runID]()
			n++
		}
	}
	return n
}

func (r *inflightRuns) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}
