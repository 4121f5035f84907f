package playground

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/pkg/metrics"
)

type memSessions struct {
	mu       sync.Mutex
	items    map[uuid.UUID]Session
	failSave bool
}

func newMemSessions() *memSessions {
	return &memSessions{items: make(map[uuid.UUID]Session)}
}

func (m *memSessions) Save(_ context.Context, session Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("session store unavailable")
	}
	m.items[session.ID] = session
	return nil
}

func (m *memSessions) Get(_ context.Context, id uuid.UUID) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.items[id]
	return session, ok, nil
}

func (m *memSessions) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// expire simulates the TTL lapsing.
func (m *memSessions) expire(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
}

type memRuns struct {
	mu    sync.Mutex
	items map[uuid.UUID]Run
}

func newMemRuns() *memRuns {
	return &memRuns{items: make(map[uuid.UUID]Run)}
}

func (m *memRuns) Create(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[run.ID] = run
	return nil
}

func (m *memRuns) Get(_ context.Context, id uuid.UUID) (Run, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.items[id]
	run.Results = append([]evaluator.QuestionResult(nil), run.Results...)
	return run, ok, nil
}

func (m *memRuns) ListBySession(_ context.Context, sessionID uuid.UUID) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Run
	for _, run := range m.items {
		if run.SessionID == sessionID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRuns) MarkRunning(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.items[id]
	if !ok || run.Status != RunPending {
		return ErrRunTransition
	}
	run.Status = RunRunning
	run.StartedAt = &at
	m.items[id] = run
	return nil
}

func (m *memRuns) AppendResult(_ context.Context, id uuid.UUID, result evaluator.QuestionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := m.items[id]
	run.Results = append(run.Results, result)
	m.items[id] = run
	return nil
}

func (m *memRuns) Finish(_ context.Context, id uuid.UUID, outcome RunOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.items[id]
	if !ok || run.Status.Terminal() {
		return ErrRunTransition
	}
	run.Status = outcome.Status
	run.Summary = outcome.Summary
	run.Error = outcome.Error
	run.FinishedAt = &outcome.FinishedAt
	m.items[id] = run
	return nil
}

func (m *memRuns) DeleteBySession(_ context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, run := range m.items {
		if run.SessionID == sessionID {
			delete(m.items, id)
		}
	}
	return nil
}

type memBlobs struct {
	mu    sync.Mutex
	items map[string][]byte
	fail  bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{items: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, key string, data []byte, mimeType string) (StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return StoredObject{}, errors.New("bucket unavailable")
	}
	m.items[key] = append([]byte(nil), data...)
	return StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (m *memBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.items[key]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memBlobs) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type testQueue struct {
	handler func(ctx context.Context, name string, payload map[string]any)
	async   bool
	wg      sync.WaitGroup
}

func (q *testQueue) Enqueue(ctx context.Context, name string, payload any) error {
	typed, _ := payload.(map[string]any)
	if !q.async {
		q.handler(ctx, name, typed)
		return nil
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.handler(context.WithoutCancel(ctx), name, typed)
	}()
	return nil
}

type stubBackend struct {
	results []evaluator.QuestionResult
	err     error
	block   bool
	started chan struct{}
	calls   int
	lastReq evaluator.Request
	mu      sync.Mutex
}

func (b *stubBackend) Evaluate(ctx context.Context, req evaluator.Request, emit func(evaluator.QuestionResult)) (evaluator.Summary, error) {
	b.mu.Lock()
	b.calls++
	b.lastReq = req
	b.mu.Unlock()
	if b.block {
		close(b.started)
		<-ctx.Done()
		return evaluator.Summary{}, ctx.Err()
	}
	for _, r := range b.results {
		emit(r)
	}
	if b.err != nil {
		return evaluator.Summary{}, b.err
	}
	return evaluator.Summarize(b.results, metrics.TokenUsage{}), nil
}

type extValidator struct{}

func (extValidator) Supports(filename, _ string) bool {
	return strings.HasSuffix(filename, ".txt") || strings.HasSuffix(filename, ".pdf")
}

type harness struct {
	svc      *Service
	sessions *memSessions
	runs     *memRuns
	blobs    *memBlobs
	queue    *testQueue
	backend  *stubBackend
}

func newHarness(backend *stubBackend, async bool) *harness {
	h := &harness{
		sessions: newMemSessions(),
		runs:     newMemRuns(),
		blobs:    newMemBlobs(),
		queue:    &testQueue{async: async},
		backend:  backend,
	}
	h.svc = NewService(Config{
		TokenSecret:        "test-secret",
		MaxFiles:           3,
		MaxFileBytes:       64,
		StreamPollInterval: 10 * time.Millisecond,
	}, h.sessions, h.runs, h.blobs, h.queue, backend, extValidator{}, nil, testLogger())
	h.queue.handler = h.svc.HandleJob
	return h
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleResults() []evaluator.QuestionResult {
	return []evaluator.QuestionResult{
		{Index: 0, Question: "q1", Answer: "a1", Result: "a1", AnswerScore: evaluator.Grade{Score: evaluator.ScoreCorrect}, RetrievalScore: evaluator.Grade{Score: evaluator.ScoreCorrect}},
		{Index: 1, Question: "q2", Answer: "a2", Result: "x", AnswerScore: evaluator.Grade{Score: evaluator.ScoreIncorrect}, RetrievalScore: evaluator.Grade{Score: evaluator.ScoreCorrect}},
	}
}
