package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Evaluator  EvaluatorConfig  `yaml:"evaluator"`
	Playground PlaygroundConfig `yaml:"playground"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains the chat completion settings. Models maps the names
// offered in the form to concrete endpoints; empty fields inherit the
// top-level values.
type LLMConfig struct {
	APIKey      string                 `yaml:"apiKey"`
	BaseURL     string                 `yaml:"baseUrl"`
	Temperature float32                `yaml:"temperature"`
	Timeout     time.Duration          `yaml:"timeout"`
	Models      map[string]ModelConfig `yaml:"models"`
}

// ModelConfig points a form model name at an OpenAI-compatible endpoint.
type ModelConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

// EmbeddingConfig maps embedding algorithm names to endpoints. Algorithms
// without an API key use deterministic local vectors of FallbackDim.
type EmbeddingConfig struct {
	Algorithms  map[string]ModelConfig `yaml:"algorithms"`
	FallbackDim int                    `yaml:"fallbackDim"`
	BatchSize   int                    `yaml:"batchSize"`
}

// EvaluatorConfig selects and tunes the evaluation backend.
type EvaluatorConfig struct {
	Mode             string        `yaml:"mode"`
	RemoteBaseURL    string        `yaml:"remoteBaseUrl"`
	RemoteTimeout    time.Duration `yaml:"remoteTimeout"`
	GenerationWindow int           `yaml:"generationWindow"`
	MaxPreviewChars  int           `yaml:"maxPreviewChars"`
	TokenEncoding    string        `yaml:"tokenEncoding"`
	ExtractWorkers   int           `yaml:"extractWorkers"`
}

// PlaygroundConfig bounds sessions and uploads.
type PlaygroundConfig struct {
	SessionTTL       time.Duration `yaml:"sessionTtl"`
	TokenSecret      string        `yaml:"tokenSecret"`
	TokenTTL         time.Duration `yaml:"tokenTtl"`
	MaxFiles         int           `yaml:"maxFiles"`
	MaxFileBytes     int64         `yaml:"maxFileBytes"`
	NarrowViewportPx int           `yaml:"narrowViewportPx"`
	SweepSchedule    string        `yaml:"sweepSchedule"`
	StreamPoll       time.Duration `yaml:"streamPoll"`
}

// StorageConfig selects blob storage.
type StorageConfig struct {
	R2 R2Config `yaml:"r2"`
}

// R2Config holds S3-compatible credentials. Storage falls back to memory when
// the endpoint is empty.
type R2Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// RedisConfig contains connection information for sessions and the job queue.
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	SessionPrefix string `yaml:"sessionPrefix"`
	QueueKey      string `yaml:"queueKey"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

const (
	EvaluatorModeLocal  = "local"
	EvaluatorModeRemote = "remote"
)

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("WENXIN_API_KEY"); v != "" {
		setModel(cfg.LLM.Models, "wenxin", func(m *ModelConfig) { m.APIKey = v })
	}
	if v := os.Getenv("WENXIN_BASE_URL"); v != "" {
		setModel(cfg.LLM.Models, "wenxin", func(m *ModelConfig) { m.BaseURL = v })
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		setModel(cfg.Embedding.Algorithms, "OpenAI", func(m *ModelConfig) { m.APIKey = v })
	}
	if v := os.Getenv("EVALUATOR_MODE"); v != "" {
		cfg.Evaluator.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("EVALUATOR_REMOTE_URL"); v != "" {
		cfg.Evaluator.RemoteBaseURL = v
	}
	if v := os.Getenv("PLAYGROUND_SESSION_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Playground.SessionTTL = parsed
		}
	}
	if v := os.Getenv("PLAYGROUND_TOKEN_SECRET"); v != "" {
		cfg.Playground.TokenSecret = v
	}
	if v := os.Getenv("PLAYGROUND_MAX_FILES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Playground.MaxFiles = parsed
		}
	}
	if v := os.Getenv("PLAYGROUND_MAX_FILE_BYTES"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Playground.MaxFileBytes = parsed
		}
	}
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("R2_ENDPOINT"); v != "" {
		cfg.Storage.R2.Endpoint = v
	}
	if v := os.Getenv("R2_ACCESS_KEY"); v != "" {
		cfg.Storage.R2.AccessKey = v
	}
	if v := os.Getenv("R2_SECRET_KEY"); v != "" {
		cfg.Storage.R2.SecretKey = v
	}
	if v := os.Getenv("R2_BUCKET"); v != "" {
		cfg.Storage.R2.Bucket = v
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
}

func setModel(models map[string]ModelConfig, name string, edit func(m *ModelConfig)) {
	m := models[name]
	edit(&m)
	models[name] = m
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   0,
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             40,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/stream",
					"/files",
					"/runs",
					"/cancel",
					"/nav/toggle",
				},
			},
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0,
			Timeout:     60 * time.Second,
			Models: map[string]ModelConfig{
				"wenxin":        {Model: "ernie-bot-turbo"},
				"gpt-3.5-turbo": {Model: "gpt-3.5-turbo"},
				"gpt-4":         {Model: "gpt-4"},
			},
		},
		Embedding: EmbeddingConfig{
			Algorithms: map[string]ModelConfig{
				"OpenAI":      {Model: "text-embedding-ada-002"},
				"HuggingFace": {Model: "sentence-transformers/all-MiniLM-L6-v2"},
			},
			FallbackDim: 256,
			BatchSize:   64,
		},
		Evaluator: EvaluatorConfig{
			Mode:             EvaluatorModeLocal,
			RemoteTimeout:    10 * time.Minute,
			GenerationWindow: 3000,
			MaxPreviewChars:  240,
			TokenEncoding:    "cl100k_base",
			ExtractWorkers:   4,
		},
		Playground: PlaygroundConfig{
			SessionTTL:       2 * time.Hour,
			TokenTTL:         24 * time.Hour,
			MaxFiles:         10,
			MaxFileBytes:     20 << 20,
			NarrowViewportPx: 390,
			SweepSchedule:    "@every 5m",
			StreamPoll:       2 * time.Second,
		},
		Storage: StorageConfig{
			R2: R2Config{
				Bucket: "evaluator-uploads",
				Region: "auto",
			},
		},
		Redis: RedisConfig{
			Enabled:       false,
			SessionPrefix: "evaluator:session",
			QueueKey:      "evaluator:jobs",
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
			MinConns: 0,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if len(c.LLM.Models) == 0 {
		return errors.New("llm.models cannot be empty")
	}
	for name, m := range c.LLM.Models {
		if strings.TrimSpace(m.Model) == "" {
			return fmt.Errorf("llm.models.%s.model cannot be empty", name)
		}
	}
	if c.Embedding.FallbackDim <= 0 {
		return errors.New("embedding.fallbackDim must be positive")
	}
	switch c.Evaluator.Mode {
	case EvaluatorModeLocal:
	case EvaluatorModeRemote:
		if strings.TrimSpace(c.Evaluator.RemoteBaseURL) == "" {
			return errors.New("evaluator.remoteBaseUrl cannot be empty in remote mode")
		}
	default:
		return fmt.Errorf("evaluator.mode must be %q or %q", EvaluatorModeLocal, EvaluatorModeRemote)
	}
	if c.Evaluator.GenerationWindow <= 0 {
		return errors.New("evaluator.generationWindow must be positive")
	}
	if c.Playground.SessionTTL <= 0 {
		return errors.New("playground.sessionTtl must be positive")
	}
	if c.Playground.MaxFiles <= 0 {
		return errors.New("playground.maxFiles must be positive")
	}
	if c.Playground.MaxFileBytes <= 0 {
		return errors.New("playground.maxFileBytes must be positive")
	}
	if c.Playground.NarrowViewportPx <= 0 {
		return errors.New("playground.narrowViewportPx must be positive")
	}
	if strings.TrimSpace(c.Playground.SweepSchedule) == "" {
		return errors.New("playground.sweepSchedule cannot be empty")
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("redis.addr cannot be empty when redis is enabled")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	return nil
}
