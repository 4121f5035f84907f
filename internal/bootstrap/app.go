package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/evaluator-ai/internal/domain/playground"
	"github.com/yanqian/evaluator-ai/internal/infra/config"
	"github.com/yanqian/evaluator-ai/internal/infra/queue"
	"github.com/yanqian/evaluator-ai/internal/infra/scheduler"
)

// App encapsulates the HTTP server lifecycle together with the job queue
// workers and the session sweeper.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	svc       *playground.Service
	jobs      queue.HandlerQueue
	scheduler *scheduler.Scheduler
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, svc *playground.Service, jobs queue.HandlerQueue, sched *scheduler.Scheduler) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With("component", "bootstrap"),
		server:    server,
		svc:       svc,
		jobs:      jobs,
		scheduler: sched,
	}
}

// Run starts the HTTP server and background workers and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	a.jobs.SetHandler(a.svc.HandleJob)
	if err := a.scheduler.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.shutdown()
	case err := <-errCh:
		_ = a.shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := a.server.Shutdown(shutdownCtx)
	a.scheduler.Stop(shutdownCtx)
	a.svc.Shutdown()
	a.jobs.Stop()
	return err
}
