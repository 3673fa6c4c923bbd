// internal/services/synthesis/stream-generator/handler.go
package streamgenerator

import (
	"context"
	"io"
	"net/http"
	"strings"

	apperrors "rtl-testgen/internal/common/errors"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/common/metrics"
	"rtl-testgen/internal/llm"
	"rtl-testgen/internal/models"
	"rtl-testgen/internal/prompt"
)

const TaskType = "stream-generator"

type Handler struct {
	backend llm.Backend
	prompts *prompt.Builder
	logger  logger.Logger
}

func NewHandler(backend llm.Backend, prompts *prompt.Builder, log logger.Logger) *Handler {
	return &Handler{
		backend: backend,
		prompts: prompts,
		logger:  log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

// Open starts a generation. Nothing has been written to the caller yet, so errors can still
// be reported with a status code.
func (h *Handler) Open(ctx context.Context, req models.StreamRequest) (*llm.Stream, error) {
	if strings.TrimSpace(req.ComponentCode) == "" {
		return nil, apperrors.NewInvalidRequestError("component_code is required")
	}

	p := h.prompts.BuildStream(req.ComponentCode)
	stream, err := h.backend.Stream(ctx, llm.Request{
		Prompt:      p,
		Model:       req.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		h.logger.Error("Failed to open LLM stream", map[string]interface{}{
			"backend": h.backend.Name(),
			"error":   err.Error(),
		})
		return nil, err
	}
	return stream, nil
}

// Copy writes every fragment to w as it arrives, flushing after each one when w supports it.
// The stream is closed on return.
func (h *Handler) Copy(w io.Writer, stream *llm.Stream) (int64, error) {
	defer stream.Close()
	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	flusher, _ := w.(http.Flusher)
	var written int64
	for stream.Next() {
		n, err := io.WriteString(w, stream.Text())
		written += int64(n)
		if err != nil {
			return written, err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := stream.Err(); err != nil {
		h.logger.Warn("LLM stream ended with error", map[string]interface{}{
			"bytesWritten": written,
			"error":        err.Error(),
		})
		return written, err
	}

	h.logger.Info("Stream completed", map[string]interface{}{"bytesWritten": written})
	return written, nil
}
