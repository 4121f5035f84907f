package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, EvaluatorModeLocal, cfg.Evaluator.Mode)
	require.Contains(t, cfg.LLM.Models, "gpt-3.5-turbo")
	require.Contains(t, cfg.Embedding.Algorithms, "OpenAI")
}

func TestLoadReadsFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  address: ":9090"
playground:
  sessionTtl: 30m
  maxFiles: 4
llm:
  models:
    gpt-4:
      model: gpt-4o
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PLAYGROUND_MAX_FILES", "6")
	t.Setenv("WENXIN_API_KEY", "wx-key")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Address)
	require.Equal(t, 30*time.Minute, cfg.Playground.SessionTTL)
	require.Equal(t, 6, cfg.Playground.MaxFiles)
	require.Equal(t, "gpt-4o", cfg.LLM.Models["gpt-4"].Model)
	require.Equal(t, "wx-key", cfg.LLM.Models["wenxin"].APIKey)
	require.True(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty address":        func(c *Config) { c.HTTP.Address = "" },
		"unknown mode":         func(c *Config) { c.Evaluator.Mode = "batch" },
		"remote without url":   func(c *Config) { c.Evaluator.Mode = EvaluatorModeRemote },
		"zero ttl":             func(c *Config) { c.Playground.SessionTTL = 0 },
		"redis without addr":   func(c *Config) { c.Redis.Enabled = true },
		"model without name":   func(c *Config) { c.LLM.Models["gpt-4"] = ModelConfig{} },
		"no sweep schedule":    func(c *Config) { c.Playground.SweepSchedule = " " },
		"rate limit burst":     func(c *Config) { c.HTTP.RateLimit.Burst = 0 },
		"retry without budget": func(c *Config) { c.HTTP.Retry.MaxAttempts = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
