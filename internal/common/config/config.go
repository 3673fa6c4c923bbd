package config

import "fmt"

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Prompts   PromptsConfig   `mapstructure:"prompts"`
	Collector CollectorConfig `mapstructure:"collector"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	GRPCAddress     string `mapstructure:"grpc_address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type LLMConfig struct {
	Provider    string       `mapstructure:"provider"`
	Ollama      OllamaConfig `mapstructure:"ollama"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`
	Timeout     int          `mapstructure:"timeout"` // milliseconds
	MaxRetries  int          `mapstructure:"max_retries"`
	BackoffBase int          `mapstructure:"backoff_base"` // milliseconds
	Temperature float64      `mapstructure:"temperature"`
	MaxTokens   int          `mapstructure:"max_tokens"`
}

type OllamaConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

type OpenAIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// Model returns the model identifier of the selected provider.
func (l LLMConfig) Model() string {
	if l.Provider == ProviderOpenAI {
		return l.OpenAI.Model
	}
	return l.Ollama.Model
}

type AnalysisConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type PromptsConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

type CollectorConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	TrainingDataPath string `mapstructure:"training_data_path"`
	StatsTTL         int    `mapstructure:"stats_ttl"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// Enabled reports whether generation records should be written to Postgres.
func (p PostgresConfig) Enabled() bool {
	return p.Host != "" && p.Database != ""
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
