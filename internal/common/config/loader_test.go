package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  name: rtl-testgen\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.Ollama.URL)
	assert.Equal(t, "deepseek-coder-v2", cfg.LLM.Model())
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 60*time.Second, GetDuration(cfg.LLM.Timeout))
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddress)
	assert.True(t, cfg.Analysis.Enabled)
	assert.True(t, cfg.Collector.Enabled)
	assert.Equal(t, "training_data/rtl_tests.jsonl", cfg.Collector.TrainingDataPath)
	assert.False(t, cfg.Database.Postgres.Enabled())
	assert.False(t, cfg.Database.Redis.Enabled())
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
}

func TestLoadFromFile_ZeroTemperatureIsKept(t *testing.T) {
	path := writeConfig(t, "llm:\n  temperature: 0\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.LLM.Temperature)
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("MODEL_NAME", "codellama:13b-instruct")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_BASE_URL", "http://vllm:8080/v1")
	t.Setenv("OPENAI_API_KEY", "secret")
	t.Setenv("REDIS_ADDRESS", "redis:6379")

	path := writeConfig(t, `
llm:
  provider: ollama
  max_retries: 5
analysis:
  enabled: false
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.Ollama.URL)
	assert.Equal(t, "codellama:13b-instruct", cfg.LLM.Ollama.Model)
	assert.Equal(t, "http://vllm:8080/v1", cfg.LLM.OpenAI.BaseURL)
	assert.Equal(t, "secret", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "deepseek-coder-v2-lite-instruct", cfg.LLM.Model())
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.False(t, cfg.Analysis.Enabled)
	assert.True(t, cfg.Database.Redis.Enabled())
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("TESTGEN_DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
database:
  postgres:
    host: localhost
    database: testgen
    user: testgen
    password: ${TESTGEN_DB_PASSWORD}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.True(t, cfg.Database.Postgres.Enabled())
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "dbname=testgen")
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "sslmode=disable")
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "unknown provider",
			content: "llm:\n  provider: bedrock\n",
			errMsg:  "llm.provider",
		},
		{
			name:    "postgres without user",
			content: "database:\n  postgres:\n    host: db\n    database: testgen\n",
			errMsg:  "database.postgres.user",
		},
		{
			name:    "temperature out of range",
			content: "llm:\n  temperature: 3.5\n",
			errMsg:  "llm.temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
