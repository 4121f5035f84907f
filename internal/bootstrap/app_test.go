package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/playground"
	"github.com/yanqian/evaluator-ai/internal/infra/config"
	"github.com/yanqian/evaluator-ai/internal/infra/extract"
	"github.com/yanqian/evaluator-ai/internal/infra/queue"
	"github.com/yanqian/evaluator-ai/internal/infra/runrepo"
	"github.com/yanqian/evaluator-ai/internal/infra/scheduler"
	"github.com/yanqian/evaluator-ai/internal/infra/sessionstore"
	"github.com/yanqian/evaluator-ai/internal/infra/storage"
)

type noopBackend struct{}

func (noopBackend) Evaluate(ctx context.Context, req evaluator.Request, emit func(evaluator.QuestionResult)) (evaluator.Summary, error) {
	return evaluator.Summary{}, nil
}

func newTestApp(t *testing.T, schedule string) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.NewImmediateQueue(nil)
	svc := playground.NewService(playground.Config{TokenSecret: "secret"}, sessionstore.NewMemoryStore(), runrepo.NewMemoryRepository(), storage.NewMemoryStorage(), q, noopBackend{}, extract.New(), nil, logger)
	cfg := &config.Config{HTTP: config.HTTPConfig{Address: "127.0.0.1:0"}}
	server := &http.Server{Addr: cfg.HTTP.Address, Handler: http.NotFoundHandler()}
	return NewApp(cfg, logger, server, svc, q, scheduler.New(svc, schedule, logger))
}

func TestAppRunStopsOnContextCancel(t *testing.T) {
	app := newTestApp(t, "@every 1h")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
}

func TestAppRunRejectsBadSchedule(t *testing.T) {
	app := newTestApp(t, "not a schedule")
	err := app.Run(context.Background())
	require.Error(t, err)
}
