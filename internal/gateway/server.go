// Package gateway exposes the generation pipeline over HTTP.
package gateway

import (
	"net/http"
	"time"

	"rtl-testgen/internal/common/database"
	apperrors "rtl-testgen/internal/common/errors"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/common/observability"
	"rtl-testgen/internal/llm"
	staticanalysis "rtl-testgen/internal/services/analysis/static-analysis"
	datacollector "rtl-testgen/internal/services/collection/data-collector"
	streamgenerator "rtl-testgen/internal/services/synthesis/stream-generator"
	testsynthesizer "rtl-testgen/internal/services/synthesis/test-synthesizer"
	testvalidator "rtl-testgen/internal/services/synthesis/test-validator"
)

const (
	ServiceName        = "rtl-testgen-gateway"
	requestIDHeader    = "X-Request-ID"
	maxBodyBytes       = 1 << 20
	healthCheckTimeout = 3 * time.Second
	collectTimeout     = 2 * time.Second
)

// Deps holds everything the gateway calls into. Collector, Redis and Postgres may be nil.
type Deps struct {
	Version         string
	AnalysisEnabled bool
	Backend         llm.Backend
	Analyzer        *staticanalysis.Analyzer
	Synthesizer     *testsynthesizer.Handler
	Validator       *testvalidator.Handler
	Streamer        *streamgenerator.Handler
	Collector       *datacollector.Collector
	Redis           *database.RedisClient
	Postgres        *database.PostgresClient
	Observability   *observability.Observability
	Logger          logger.Logger
}

type Server struct {
	deps       Deps
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

func NewServer(deps Deps) *Server {
	log := deps.Logger.With(map[string]interface{}{"service": ServiceName})
	if deps.Observability == nil {
		deps.Observability = observability.NewNoop()
	}
	return &Server{
		deps:       deps,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
		now:        time.Now,
	}
}

// Handler returns the routed mux wrapped in the request-ID middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "POST /generate_test", "generate_test", s.handleStream)
	s.route(mux, "POST /v1/tests/generate", "generate", s.handleGenerate)
	s.route(mux, "POST /v1/tests/validate", "validate", s.handleValidate)
	s.route(mux, "POST /v1/analyze", "analyze", s.handleAnalyze)
	s.route(mux, "POST /v1/feedback/quality", "feedback", s.handleFeedback)
	s.route(mux, "GET /v1/dashboard/stats", "dashboard_stats", s.handleDashboardStats)
	s.route(mux, "GET /healthz", "healthz", s.handleHealth)
	s.route(mux, "GET /healthz/full", "healthz_full", s.handleHealthFull)
	mux.Handle("GET /metrics", metricsHandler())

	return withRequestID(mux)
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(name, h))
}
