package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/playground"
	"github.com/yanqian/evaluator-ai/internal/infra/config"
	"github.com/yanqian/evaluator-ai/internal/infra/embedder"
	"github.com/yanqian/evaluator-ai/internal/infra/extract"
	"github.com/yanqian/evaluator-ai/internal/infra/llm"
	"github.com/yanqian/evaluator-ai/internal/infra/llm/chatgpt"
	"github.com/yanqian/evaluator-ai/internal/infra/queue"
	"github.com/yanqian/evaluator-ai/internal/infra/remote"
	"github.com/yanqian/evaluator-ai/internal/infra/retriever"
	"github.com/yanqian/evaluator-ai/internal/infra/runrepo"
	"github.com/yanqian/evaluator-ai/internal/infra/scheduler"
	"github.com/yanqian/evaluator-ai/internal/infra/sessionstore"
	"github.com/yanqian/evaluator-ai/internal/infra/splitter"
	"github.com/yanqian/evaluator-ai/internal/infra/storage"
)

func providePostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory repositories")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repositories", "error", err)
		return nil
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repositories", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repositories", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres enabled")
	return pool
}

func provideValkeyClient(cfg *config.Config, logger *slog.Logger) valkey.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory", "error", err)
		return nil
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory", "error", err)
		client.Close()
		return nil
	}
	logger.Info("valkey enabled", "addr", cfg.Redis.Addr)
	return client
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Redis.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Redis.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Redis.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideTokenCounter(cfg *config.Config, logger *slog.Logger) *splitter.TiktokenCounter {
	return splitter.NewTiktokenCounter(cfg.Evaluator.TokenEncoding, logger)
}

// provideLLMProvider builds one chat client per configured model. Models
// without an API key answer through the echo model so the playground stays
// usable offline.
func provideLLMProvider(cfg *config.Config, logger *slog.Logger) evaluator.LLMProvider {
	models := make(map[evalconfig.Model]evaluator.LLM, len(cfg.LLM.Models))
	for name, m := range cfg.LLM.Models {
		apiKey := firstNonEmpty(m.APIKey, cfg.LLM.APIKey)
		if apiKey == "" {
			logger.Warn("llm api key not set, model answers with echo", "model", name)
			continue
		}
		client, err := chatgpt.NewClient(apiKey, firstNonEmpty(m.BaseURL, cfg.LLM.BaseURL), cfg.LLM.Timeout)
		if err != nil {
			logger.Error("failed to build llm client", "model", name, "error", err)
			continue
		}
		models[evalconfig.Model(name)] = llm.NewChatGPTLLM(client, m.Model, cfg.LLM.Temperature)
	}
	return llm.NewRouter(models, llm.EchoLLM{})
}

// provideEmbedderProvider uses remote embeddings where credentials exist and
// deterministic local vectors otherwise.
func provideEmbedderProvider(cfg *config.Config, tokens *splitter.TiktokenCounter, logger *slog.Logger) evaluator.EmbedderProvider {
	embedders := make(map[evalconfig.EmbeddingAlgorithm]evaluator.Embedder, len(cfg.Embedding.Algorithms))
	for name, m := range cfg.Embedding.Algorithms {
		if strings.TrimSpace(m.APIKey) == "" {
			logger.Info("embedding api key not set, using local vectors", "algorithm", name)
			continue
		}
		client, err := chatgpt.NewClient(m.APIKey, firstNonEmpty(m.BaseURL, cfg.LLM.BaseURL), cfg.LLM.Timeout)
		if err != nil {
			logger.Error("failed to build embedding client", "algorithm", name, "error", err)
			continue
		}
		embedders[evalconfig.EmbeddingAlgorithm(name)] = embedder.NewChatGPTEmbedder(client, m.Model, cfg.Embedding.BatchSize, tokens, logger)
	}
	return embedder.NewProvider(embedders, embedder.NewDeterministicEmbedder(cfg.Embedding.FallbackDim))
}

func provideSplitterFactory() evaluator.SplitterFactory {
	return splitter.NewFactory(nil)
}

func provideIndexFactory(pool *pgxpool.Pool, logger *slog.Logger) evaluator.IndexFactory {
	if pool == nil {
		return retriever.NewFactory(nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, retriever.ChunkSchema); err != nil {
		logger.Error("pgvector schema unavailable, using memory vector index", "error", err)
		return retriever.NewFactory(nil)
	}
	return retriever.NewFactory(pool)
}

func provideExtractor() *extract.Extractor {
	return extract.New()
}

func provideEvaluatorConfig(cfg *config.Config) evaluator.Config {
	return evaluator.Config{
		GenerationWindow: cfg.Evaluator.GenerationWindow,
		MaxPreviewChars:  cfg.Evaluator.MaxPreviewChars,
		ExtractWorkers:   cfg.Evaluator.ExtractWorkers,
	}
}

func provideBackend(cfg *config.Config, local *evaluator.Service, tokens *splitter.TiktokenCounter, logger *slog.Logger) evaluator.Backend {
	if cfg.Evaluator.Mode == config.EvaluatorModeRemote {
		logger.Info("using remote evaluator", "url", cfg.Evaluator.RemoteBaseURL)
		return remote.NewClient(cfg.Evaluator.RemoteBaseURL, cfg.Evaluator.RemoteTimeout, tokens, logger)
	}
	return local
}

func provideObjectStorage(cfg *config.Config, logger *slog.Logger) playground.ObjectStorage {
	r2 := cfg.Storage.R2
	if strings.TrimSpace(r2.Endpoint) == "" {
		logger.Info("r2 endpoint not set, using memory storage")
		return storage.NewMemoryStorage()
	}
	store, err := storage.NewR2Storage(r2.Endpoint, r2.AccessKey, r2.SecretKey, r2.Bucket, r2.Region, logger)
	if err != nil {
		logger.Error("failed to initialize r2 storage, using memory storage", "error", err)
		return storage.NewMemoryStorage()
	}
	return store
}

func provideSessionStore(cfg *config.Config, client valkey.Client, logger *slog.Logger) playground.SessionStore {
	if client == nil {
		return sessionstore.NewMemoryStore()
	}
	logger.Info("valkey session store enabled")
	return sessionstore.NewValkeyStore(client, cfg.Redis.SessionPrefix)
}

func provideRunRepository(pool *pgxpool.Pool, logger *slog.Logger) playground.RunRepository {
	if pool == nil {
		return runrepo.NewMemoryRepository()
	}
	repo := runrepo.NewPostgresRepository(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("run schema unavailable, using memory repository", "error", err)
		return runrepo.NewMemoryRepository()
	}
	logger.Info("postgres run repository enabled")
	return repo
}

func provideJobQueue(cfg *config.Config, client valkey.Client, logger *slog.Logger) queue.HandlerQueue {
	if client == nil {
		return queue.NewImmediateQueue(nil)
	}
	logger.Info("valkey job queue enabled", "key", cfg.Redis.QueueKey)
	return queue.NewValkeyQueue(client, cfg.Redis.QueueKey, cfg.Evaluator.ExtractWorkers, logger)
}

func providePlaygroundQueue(q queue.HandlerQueue) playground.JobQueue {
	return q
}

func providePlaygroundConfig(cfg *config.Config) playground.Config {
	return playground.Config{
		SessionTTL:         cfg.Playground.SessionTTL,
		TokenSecret:        cfg.Playground.TokenSecret,
		TokenTTL:           cfg.Playground.TokenTTL,
		MaxFiles:           cfg.Playground.MaxFiles,
		MaxFileBytes:       cfg.Playground.MaxFileBytes,
		NarrowViewportPx:   cfg.Playground.NarrowViewportPx,
		StreamPollInterval: cfg.Playground.StreamPoll,
	}
}

func provideScheduler(cfg *config.Config, svc *playground.Service, logger *slog.Logger) *scheduler.Scheduler {
	return scheduler.New(svc, cfg.Playground.SweepSchedule, logger)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
