// internal/services/synthesis/test-synthesizer/handler.go
package testsynthesizer

import (
	"context"
	"time"

	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/common/metrics"
	"rtl-testgen/internal/llm"
	"rtl-testgen/internal/models"
	"rtl-testgen/internal/prompt"
)

const TaskType = "test-synthesizer"

type Handler struct {
	backend llm.Backend
	prompts *prompt.Builder
	logger  logger.Logger
}

func NewHandler(backend llm.Backend, prompts *prompt.Builder, log logger.Logger) *Handler {
	return &Handler{
		backend: backend,
		prompts: prompts,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Synthesize renders the prompt, calls the backend and parses its answer. Backend errors are
// returned unchanged; a malformed answer is not an error.
func (h *Handler) Synthesize(ctx context.Context, req models.EnhancedGenerateRequest) (*models.GenerateResponse, ParseResult, error) {
	req.Normalize()
	start := time.Now()

	p := h.prompts.BuildSynthesis(req.ComponentPath, req.ComponentSource, req.Goals.Coverage, &req.ASTSummary)
	raw, err := h.backend.Complete(ctx, llm.Request{
		Prompt:      p,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		h.logger.Error("LLM synthesis failed", map[string]interface{}{
			"componentPath": req.ComponentPath,
			"backend":       h.backend.Name(),
			"error":         err.Error(),
		})
		return nil, ParseResult{}, err
	}

	componentName := req.ASTSummary.ComponentName
	result := ParseEnvelope(raw, componentName)
	metrics.EnvelopeParses.WithLabelValues("tests", string(result.Branch)).Inc()

	if componentName == "" {
		componentName = "Component"
	}
	resp := &models.GenerateResponse{
		Tests: result.Tests,
		Metadata: map[string]interface{}{
			"model":          h.backend.Model(),
			"backend":        h.backend.Name(),
			"component_name": componentName,
			"coverage":       string(req.Goals.Coverage),
			"hooks_count":    len(req.ASTSummary.HooksUsed),
			"events_count":   len(req.ASTSummary.EventHandlers),
			"parse_branch":   string(result.Branch),
		},
	}
	if result.Branch == BranchFallback {
		resp.Warnings = append(resp.Warnings, fallbackWarning)
		fields := result.Err.LogFields()
		fields["componentPath"] = req.ComponentPath
		h.logger.Warn("Falling back to raw LLM output", fields)
	}

	h.logger.Info("Tests synthesized", map[string]interface{}{
		"componentName": componentName,
		"testFiles":     len(result.Tests),
		"parseBranch":   string(result.Branch),
		"durationMs":    time.Since(start).Milliseconds(),
	})
	return resp, result, nil
}
