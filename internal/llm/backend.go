// Package llm talks to locally hosted language model servers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rtl-testgen/internal/common/config"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/prompt"
)

var ErrBackendUnavailable = errors.New("llm backend unavailable")

// UnavailableError is returned when the backend could not be reached after all attempts.
type UnavailableError struct {
	Backend string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Backend, ErrBackendUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrBackendUnavailable }

func (e *UnavailableError) BackendName() string { return e.Backend }

// BackendError is a non-2xx answer from the backend.
type BackendError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Backend, e.StatusCode, e.Body)
}

func (e *BackendError) BackendName() string { return e.Backend }

func (e *BackendError) BackendStatus() (int, string) { return e.StatusCode, e.Body }

// Request is one completion call. Zero Temperature/MaxTokens fall back to the backend defaults.
type Request struct {
	Prompt      prompt.Prompt
	Model       string
	Temperature *float64
	MaxTokens   int
	Stop        []string
}

type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (*Stream, error)
	Name() string
	Model() string
	Ping(ctx context.Context) error
}

// Options are shared by both backend implementations.
type Options struct {
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	Temperature float64
	MaxTokens   int
}

func optionsFromConfig(cfg config.LLMConfig) Options {
	return Options{
		Model:       cfg.Model(),
		Timeout:     config.GetDuration(cfg.Timeout),
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: config.GetDuration(cfg.BackoffBase),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

func (o Options) temperature(req Request) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return o.Temperature
}

func (o Options) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return o.MaxTokens
}

func (o Options) model(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return o.Model
}

// New builds the backend selected by cfg.Provider.
func New(cfg config.LLMConfig, log logger.Logger) (Backend, error) {
	opts := optionsFromConfig(cfg)
	switch cfg.Provider {
	case config.ProviderOllama, "":
		return NewOllamaBackend(cfg.Ollama.URL, opts, log), nil
	case config.ProviderOpenAI:
		opts.Model = cfg.OpenAI.Model
		return NewOpenAIBackend(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, opts, log), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Float is a helper for Request.Temperature.
func Float(v float64) *float64 {
	return &v
}
