package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	commonhttp "rtl-testgen/internal/common/http"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/common/metrics"
)

const (
	ollamaName         = "ollama"
	ollamaGeneratePath = "/api/generate"
	ollamaTagsPath     = "/api/tags"
	maxStreamLine      = 1 << 20
)

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64  `json:"temperature"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// OllamaBackend calls an Ollama server's /api/generate endpoint.
type OllamaBackend struct {
	client *commonhttp.ServiceClient
	opts   Options
	logger logger.Logger
}

func NewOllamaBackend(baseURL string, opts Options, log logger.Logger) *OllamaBackend {
	log = log.With(map[string]interface{}{"backend": ollamaName})
	return &OllamaBackend{
		client: commonhttp.NewServiceClient(baseURL, opts.Timeout,
			commonhttp.WithMaxRetries(opts.MaxRetries),
			commonhttp.WithBackoffBase(opts.BackoffBase),
			commonhttp.WithLogger(log),
		),
		opts:   opts,
		logger: log,
	}
}

func (b *OllamaBackend) Name() string  { return ollamaName }
func (b *OllamaBackend) Model() string { return b.opts.Model }

func (b *OllamaBackend) payload(req Request, stream bool) ollamaGenerateRequest {
	return ollamaGenerateRequest{
		Model:  b.opts.model(req),
		Prompt: req.Prompt.Text(),
		Stream: stream,
		Options: ollamaOptions{
			Temperature: b.opts.temperature(req),
			NumPredict:  b.opts.maxTokens(req),
			Stop:        req.Stop,
		},
	}
}

func (b *OllamaBackend) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	var resp ollamaGenerateResponse
	err := b.client.Post(ctx, ollamaGeneratePath, b.payload(req, false), &resp)
	metrics.LLMCallDuration.WithLabelValues(ollamaName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(ollamaName, "complete", "error").Inc()
		return "", b.translate(err)
	}
	if resp.Error != "" {
		metrics.LLMCallsTotal.WithLabelValues(ollamaName, "complete", "error").Inc()
		return "", &BackendError{Backend: ollamaName, StatusCode: 200, Body: resp.Error}
	}

	metrics.LLMCallsTotal.WithLabelValues(ollamaName, "complete", "ok").Inc()
	b.logger.Debug("Ollama completion received", map[string]interface{}{
		"model":      b.opts.model(req),
		"chars":      len(resp.Response),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return resp.Response, nil
}

func (b *OllamaBackend) Stream(ctx context.Context, req Request) (*Stream, error) {
	body, err := b.client.OpenStream(ctx, ollamaGeneratePath, b.payload(req, true))
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(ollamaName, "stream", "error").Inc()
		return nil, b.translate(err)
	}
	metrics.LLMCallsTotal.WithLabelValues(ollamaName, "stream", "ok").Inc()
	return newOllamaStream(body), nil
}

// newOllamaStream reads newline-delimited JSON objects, skipping blank and undecodable lines.
func newOllamaStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	next := func() (string, bool, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var chunk ollamaGenerateResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				return "", true, &BackendError{Backend: ollamaName, StatusCode: 200, Body: chunk.Error}
			}
			return chunk.Response, chunk.Done, nil
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return "", true, &UnavailableError{Backend: ollamaName, Err: err}
		}
		return "", true, nil
	}
	return NewStream(next, body.Close)
}

func (b *OllamaBackend) Ping(ctx context.Context) error {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := b.client.Get(ctx, ollamaTagsPath, &tags); err != nil {
		return b.translate(err)
	}
	for _, m := range tags.Models {
		if m.Name == b.opts.Model || strings.HasPrefix(m.Name, b.opts.Model+":") {
			return nil
		}
	}
	b.logger.Warn("Configured model not pulled", map[string]interface{}{"model": b.opts.Model})
	return nil
}

func (b *OllamaBackend) translate(err error) error {
	return translateTransportError(ollamaName, err)
}

func translateTransportError(backend string, err error) error {
	var statusErr *commonhttp.StatusError
	if errors.As(err, &statusErr) {
		return &BackendError{Backend: backend, StatusCode: statusErr.StatusCode, Body: statusErr.Body}
	}
	var reqErr *commonhttp.RequestError
	if errors.As(err, &reqErr) {
		return &UnavailableError{Backend: backend, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UnavailableError{Backend: backend, Err: err}
	}
	return fmt.Errorf("%s: %w", backend, err)
}
