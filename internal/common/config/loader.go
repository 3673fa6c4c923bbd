package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml (optional), merges config.<APP_ENVIRONMENT>.yaml and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile reads a single YAML file and applies the same overrides as Load.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("analysis.enabled", true)
	v.SetDefault("collector.enabled", true)
	// Zero is a valid temperature, so the default cannot live in applyDefaults.
	v.SetDefault("llm.temperature", 0.2)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideFromEnv applies the documented variable names, which do not follow the
// section_key convention handled by the viper replacer.
func overrideFromEnv(cfg *Config) {
	set := func(dst *string, name string) {
		if val := os.Getenv(name); val != "" {
			*dst = val
		}
	}

	set(&cfg.LLM.Provider, "LLM_PROVIDER")
	set(&cfg.LLM.Ollama.URL, "OLLAMA_URL")
	set(&cfg.LLM.Ollama.Model, "MODEL_NAME")
	set(&cfg.LLM.OpenAI.BaseURL, "OPENAI_BASE_URL")
	set(&cfg.LLM.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&cfg.LLM.OpenAI.Model, "OPENAI_MODEL")
	set(&cfg.Collector.TrainingDataPath, "TRAINING_DATA_PATH")
	set(&cfg.Prompts.RegistryPath, "PROMPT_REGISTRY_PATH")
	set(&cfg.Database.Redis.Address, "REDIS_ADDRESS")
	set(&cfg.Database.Postgres.Host, "DB_HOST")
	set(&cfg.Database.Postgres.Database, "DB_NAME")
	set(&cfg.Database.Postgres.User, "DB_USER")
	set(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	set(&cfg.App.Environment, "APP_ENVIRONMENT")
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "rtl-testgen"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "1.0.0"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
	if cfg.Server.GRPCAddress == "" {
		cfg.Server.GRPCAddress = ":50051"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOllama
	}
	if cfg.LLM.Ollama.URL == "" {
		cfg.LLM.Ollama.URL = "http://localhost:11434"
	}
	if cfg.LLM.Ollama.Model == "" {
		cfg.LLM.Ollama.Model = "deepseek-coder-v2"
	}
	if cfg.LLM.OpenAI.BaseURL == "" {
		cfg.LLM.OpenAI.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.LLM.OpenAI.APIKey == "" {
		cfg.LLM.OpenAI.APIKey = "no-key-required"
	}
	if cfg.LLM.OpenAI.Model == "" {
		cfg.LLM.OpenAI.Model = "deepseek-coder-v2-lite-instruct"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60000
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.BackoffBase == 0 {
		cfg.LLM.BackoffBase = 1000
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}

	if cfg.Collector.TrainingDataPath == "" {
		cfg.Collector.TrainingDataPath = "training_data/rtl_tests.jsonl"
	}
	if cfg.Collector.StatsTTL == 0 {
		cfg.Collector.StatsTTL = 48 * 60 * 60 * 1000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.LLM.Provider {
	case ProviderOllama:
		if cfg.LLM.Ollama.URL == "" {
			return fmt.Errorf("llm.ollama.url is required")
		}
	case ProviderOpenAI:
		if cfg.LLM.OpenAI.BaseURL == "" {
			return fmt.Errorf("llm.openai.base_url is required")
		}
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderOllama, ProviderOpenAI, cfg.LLM.Provider)
	}

	if cfg.LLM.MaxRetries < 1 {
		return fmt.Errorf("llm.max_retries must be at least 1")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	if cfg.Database.Postgres.Enabled() && cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required when postgres is configured")
	}
	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
