//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/evaluator-ai/internal/bootstrap"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/playground"
	"github.com/yanqian/evaluator-ai/internal/infra/config"
	"github.com/yanqian/evaluator-ai/internal/infra/extract"
	"github.com/yanqian/evaluator-ai/internal/infra/splitter"
	httpiface "github.com/yanqian/evaluator-ai/internal/interface/http"
	"github.com/yanqian/evaluator-ai/pkg/logger"
	"github.com/yanqian/evaluator-ai/pkg/metrics"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewEvaluator,
		providePostgresPool,
		provideValkeyClient,
		provideTokenCounter,
		provideLLMProvider,
		provideEmbedderProvider,
		provideSplitterFactory,
		provideIndexFactory,
		provideExtractor,
		provideEvaluatorConfig,
		provideBackend,
		provideObjectStorage,
		provideSessionStore,
		provideRunRepository,
		provideJobQueue,
		providePlaygroundQueue,
		providePlaygroundConfig,
		provideScheduler,
		evaluator.NewService,
		playground.NewService,
		wire.Bind(new(evaluator.TextExtractor), new(*extract.Extractor)),
		wire.Bind(new(evaluator.TokenCounter), new(*splitter.TiktokenCounter)),
		wire.Bind(new(playground.FileValidator), new(*extract.Extractor)),
		wire.Bind(new(httpiface.PlaygroundService), new(*playground.Service)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
