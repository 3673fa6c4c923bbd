package gateway

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"rtl-testgen/internal/models"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	checkOK        = "ok"
	checkBackend   = "llm_backend"
	checkRedis     = "redis"
	checkPostgres  = "postgres"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    statusOK,
		Service:   ServiceName,
		Timestamp: s.now().UTC(),
		Version:   s.deps.Version,
	})
}

// handleHealthFull probes every dependency concurrently and answers 503 if any probe fails.
func (s *Server) handleHealthFull(w http.ResponseWriter, r *http.Request) {
	checks := map[string]func(context.Context) error{
		checkBackend: s.deps.Backend.Ping,
	}
	if s.deps.Redis != nil {
		checks[checkRedis] = s.deps.Redis.Ping
	}
	if s.deps.Postgres != nil {
		checks[checkPostgres] = s.deps.Postgres.Ping
	}

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(checks))
		g       errgroup.Group
	)
	for name, check := range checks {
		name, check := name, check
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			result := checkOK
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := models.HealthResponse{
		Status:    statusOK,
		Service:   ServiceName,
		Timestamp: s.now().UTC(),
		Version:   s.deps.Version,
		Checks:    results,
	}
	status := http.StatusOK
	for name, result := range results {
		if result != checkOK {
			resp.Status = statusDegraded
			status = http.StatusServiceUnavailable
			s.logger.Warn("Health check failed", map[string]interface{}{"check": name, "error": result})
		}
	}
	writeJSON(w, status, resp)
}
