package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	commonhttp "rtl-testgen/internal/common/http"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/common/metrics"
)

const openaiName = "openai"

// OpenAIBackend calls an OpenAI-compatible /chat/completions endpoint (vLLM, llama.cpp, LM Studio).
type OpenAIBackend struct {
	client openai.Client
	opts   Options
	policy commonhttp.RetryPolicy
	logger logger.Logger
}

func NewOpenAIBackend(baseURL, apiKey string, opts Options, log logger.Logger, extra ...option.RequestOption) *OpenAIBackend {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	reqOpts = append(reqOpts, extra...)

	log = log.With(map[string]interface{}{"backend": openaiName})
	b := &OpenAIBackend{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
		logger: log,
	}
	b.policy = commonhttp.RetryPolicy{
		MaxAttempts: opts.MaxRetries,
		BaseDelay:   opts.BackoffBase,
		Retryable:   isRetryableOpenAIError,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Warn("Retrying chat completion", map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   err.Error(),
			})
		},
	}
	return b
}

func (b *OpenAIBackend) Name() string  { return openaiName }
func (b *OpenAIBackend) Model() string { return b.opts.Model }

func (b *OpenAIBackend) params(req Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(req.Prompt.System) != "" {
		messages = append(messages, openai.SystemMessage(req.Prompt.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt.User))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(b.opts.model(req)),
		Messages:    messages,
		Temperature: openai.Float(b.opts.temperature(req)),
	}
	if n := b.opts.maxTokens(req); n > 0 {
		params.MaxTokens = openai.Int(int64(n))
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	return params
}

func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	params := b.params(req)

	var content string
	err := commonhttp.Retry(ctx, b.policy, func(ctx context.Context, attempt int) error {
		callCtx := ctx
		if b.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
			defer cancel()
		}

		resp, err := b.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			return err
		}
		if len(resp.Choices) > 0 {
			content = resp.Choices[0].Message.Content
		}
		return nil
	})
	metrics.LLMCallDuration.WithLabelValues(openaiName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(openaiName, "complete", "error").Inc()
		return "", translateOpenAIError(err)
	}

	metrics.LLMCallsTotal.WithLabelValues(openaiName, "complete", "ok").Inc()
	b.logger.Debug("Chat completion received", map[string]interface{}{
		"model":      b.opts.model(req),
		"chars":      len(content),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return content, nil
}

func (b *OpenAIBackend) Stream(ctx context.Context, req Request) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	sse := b.client.Chat.Completions.NewStreaming(ctx, b.params(req))
	if err := sse.Err(); err != nil {
		cancel()
		_ = sse.Close()
		metrics.LLMCallsTotal.WithLabelValues(openaiName, "stream", "error").Inc()
		return nil, translateOpenAIError(err)
	}
	metrics.LLMCallsTotal.WithLabelValues(openaiName, "stream", "ok").Inc()

	next := func() (string, bool, error) {
		for sse.Next() {
			chunk := sse.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			return choice.Delta.Content, choice.FinishReason != "", nil
		}
		if err := sse.Err(); err != nil {
			return "", true, translateOpenAIError(err)
		}
		return "", true, nil
	}
	closeFn := func() error {
		cancel()
		return sse.Close()
	}
	return NewStream(next, closeFn), nil
}

func (b *OpenAIBackend) Ping(ctx context.Context) error {
	if _, err := b.client.Models.List(ctx); err != nil {
		return translateOpenAIError(err)
	}
	return nil
}

func isRetryableOpenAIError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func translateOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			body = http.StatusText(apiErr.StatusCode)
		}
		return &BackendError{Backend: openaiName, StatusCode: apiErr.StatusCode, Body: body}
	}
	return &UnavailableError{Backend: openaiName, Err: err}
}
