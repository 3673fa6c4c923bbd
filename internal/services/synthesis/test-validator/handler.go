// internal/services/synthesis/test-validator/handler.go
package testvalidator

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	apperrors "rtl-testgen/internal/common/errors"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/common/metrics"
	"rtl-testgen/internal/common/validation"
	"rtl-testgen/internal/llm"
	"rtl-testgen/internal/models"
	"rtl-testgen/internal/prompt"
)

const TaskType = "test-validator"

type Branch string

const (
	BranchFixesParsed   Branch = "fixes_parsed"
	BranchFixesFallback Branch = "fixes_fallback"
)

const (
	defaultConfidence    = 1.0
	outOfRangeConfidence = 0.5
	penaltyPerFix        = 0.1
)

// FixesResult carries Err, a MALFORMED_RESPONSE error, on the fallback branch.
type FixesResult struct {
	Branch Branch
	Fixes  []models.Fix
	Err    *apperrors.StandardError
}

func fixesFallback(cause error) FixesResult {
	return FixesResult{
		Branch: BranchFixesFallback,
		Fixes:  []models.Fix{},
		Err:    apperrors.NewMalformedResponseError("fixes", cause),
	}
}

type rawFix struct {
	File       string   `json:"file"`
	Patch      string   `json:"patch"`
	Reason     string   `json:"reason"`
	Confidence *float64 `json:"confidence"`
}

// ParseFixes never fails; anything but a valid {"fixes":[...]} document yields no fixes.
func ParseFixes(raw string) FixesResult {
	cleaned := llm.Clean(raw)

	result := validation.FixesEnvelopeSchema.ValidateBytes([]byte(cleaned))
	if !result.Valid {
		return fixesFallback(errors.New(result.Error()))
	}

	var env struct {
		Fixes []rawFix `json:"fixes"`
	}
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return fixesFallback(err)
	}

	fixes := make([]models.Fix, 0, len(env.Fixes))
	for _, f := range env.Fixes {
		fixes = append(fixes, models.Fix{
			File:       f.File,
			Patch:      f.Patch,
			Reason:     f.Reason,
			Confidence: normalizeConfidence(f.Confidence),
		})
	}
	return FixesResult{Branch: BranchFixesParsed, Fixes: fixes}
}

func normalizeConfidence(c *float64) float64 {
	if c == nil {
		return defaultConfidence
	}
	if *c < 0 || *c > 1 || math.IsNaN(*c) {
		return outOfRangeConfidence
	}
	return *c
}

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

func (h *Handler) Validate(ctx context.Context, req models.ValidateRequest) (*models.ValidateResponse, FixesResult, error) {
	p := h.prompts.BuildValidation(req.FilePath, req.Source)
	raw, err := h.backend.Complete(ctx, llm.Request{
		Prompt:      p,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		h.logger.Error("LLM validation failed", map[string]interface{}{
			"filePath": req.FilePath,
			"error":    err.Error(),
		})
		return nil, FixesResult{}, err
	}

	result := ParseFixes(raw)
	metrics.EnvelopeParses.WithLabelValues("fixes", string(result.Branch)).Inc()
	if result.Branch == BranchFixesFallback {
		fields := result.Err.LogFields()
		fields["filePath"] = req.FilePath
		h.logger.Warn("Discarding malformed fixes envelope", fields)
	}

	suggestions := make([]string, 0, len(result.Fixes))
	for _, f := range result.Fixes {
		if f.Reason != "" {
			suggestions = append(suggestions, f.Reason)
		}
	}

	h.logger.Info("Test file validated", map[string]interface{}{
		"filePath": req.FilePath,
		"fixes":    len(result.Fixes),
		"branch":   string(result.Branch),
	})

	return &models.ValidateResponse{
		Fixes:        result.Fixes,
		QualityScore: qualityScore(result.Fixes),
		Suggestions:  suggestions,
	}, result, nil
}

// qualityScore starts at 1 and loses a tenth per proposed fix, weighted by confidence.
func qualityScore(fixes []models.Fix) float64 {
	score := 1.0
	for _, f := range fixes {
		score -= penaltyPerFix * f.Confidence
	}
	if score < 0 {
		return 0
	}
	return math.Round(score*100) / 100
}
