package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "rtl-testgen/internal/common/errors"
	"rtl-testgen/internal/common/validation"
	"rtl-testgen/internal/models"
	testsynthesizer "rtl-testgen/internal/services/synthesis/test-synthesizer"
)

var errCollectorDisabled = errors.New("data collection is disabled")

// decodeBody validates the body against schema before decoding it into out.
func decodeBody(r *http.Request, schema *validation.Schema, out interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewInvalidRequestError(fmt.Sprintf("failed to read body: %v", err))
	}
	if result := schema.ValidateBytes(body); !result.Valid {
		return apperrors.NewInvalidRequestError(fmt.Sprintf("%s: %s", schema.Name(), result.Error()))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.NewInvalidRequestError(fmt.Sprintf("failed to decode %s: %v", schema.Name(), err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errHandler.WriteError(w, requestIDFrom(r.Context()), err)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := decodeBody(r, validation.GenerateRequestSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Normalize()

	enhanced := models.EnhancedGenerateRequest{GenerateRequest: req}
	if s.deps.AnalysisEnabled {
		analysis := s.deps.Analyzer.Analyze(req.ComponentPath, req.ComponentSource)
		enhanced.Context = analysis.Context
		enhanced.ASTSummary = analysis.ASTSummary
	}

	resp, result, err := s.deps.Synthesizer.Synthesize(r.Context(), enhanced)
	if err != nil {
		s.writeError(w, r, apperrors.FromBackendError("generate", err))
		return
	}

	s.collectGeneration(r.Context(), req, resp, result)
	writeJSON(w, http.StatusOK, resp)
}

// collectGeneration is best effort: failures are logged and never reach the caller.
func (s *Server) collectGeneration(ctx context.Context, req models.GenerateRequest, resp *models.GenerateResponse, result testsynthesizer.ParseResult) {
	if s.deps.Collector == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), collectTimeout)
	defer cancel()

	err := s.deps.Collector.CollectGeneration(ctx, models.GenerationRecord{
		RequestID:     requestIDFrom(ctx),
		ComponentPath: req.ComponentPath,
		Coverage:      req.Goals.Coverage,
		TestCount:     len(resp.Tests),
		ParseBranch:   string(result.Branch),
		Model:         s.deps.Backend.Model(),
	})
	if err != nil {
		s.logger.Warn("Generation record not collected", map[string]interface{}{
			"requestId": requestIDFrom(ctx),
			"error":     err.Error(),
		})
	}
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateRequest
	if err := decodeBody(r, validation.ValidateRequestSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, _, err := s.deps.Validator.Validate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, apperrors.FromBackendError("validate", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	if err := decodeBody(r, validation.AnalyzeRequestSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzer.Analyze(req.ComponentPath, req.ComponentSource))
}

// handleStream writes cleaned fragments as plain text. Errors after the first byte only end the body.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req models.StreamRequest
	if err := decodeBody(r, validation.StreamRequestSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	stream, err := s.deps.Streamer.Open(r.Context(), req)
	if err != nil {
		s.writeError(w, r, apperrors.FromBackendError("stream", err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	_, err = s.deps.Streamer.Copy(w, stream)
	if err != nil {
		s.logger.Warn("Stream terminated early", map[string]interface{}{
			"requestId": requestIDFrom(r.Context()),
			"error":     err.Error(),
		})
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest
	if err := decodeBody(r, validation.FeedbackRequestSchema, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Collector == nil {
		s.writeError(w, r, apperrors.NewCollectionFailedError("training_log", errCollectorDisabled))
		return
	}

	resp, err := s.deps.Collector.CollectFeedback(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDashboardStats always answers 200; unavailable stats are reported in the body.
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collector == nil {
		writeJSON(w, http.StatusOK, models.DashboardStats{Error: errCollectorDisabled.Error()})
		return
	}

	stats, err := s.deps.Collector.DashboardStats(r.Context())
	if err != nil {
		s.logger.Warn("Dashboard stats unavailable", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusOK, models.DashboardStats{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
