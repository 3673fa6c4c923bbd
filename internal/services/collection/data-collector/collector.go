// internal/services/collection/data-collector/collector.go
package datacollector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rtl-testgen/internal/common/config"
	"rtl-testgen/internal/common/database"
	apperrors "rtl-testgen/internal/common/errors"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/common/metrics"
	"rtl-testgen/internal/models"
)

const TaskType = "data-collector"

const (
	feedbackInstruction  = "Generate React Testing Library tests for this component:\n"
	defaultQualityScore  = 5
	minutesSavedPerTest  = 15
	statsKeyPrefix       = "testgen:stats"
	defaultStatsTTL      = 48 * time.Hour
	sinkTrainingLog      = "training_log"
	sinkRedis            = "redis"
	sinkPostgres         = "postgres"
	statusCollected      = "collected"
	dateLayout           = "2006-01-02"
	generationRecordsDDL = `CREATE TABLE IF NOT EXISTS generation_records (
	id             BIGSERIAL PRIMARY KEY,
	request_id     TEXT NOT NULL,
	component_path TEXT NOT NULL,
	coverage       TEXT NOT NULL,
	test_count     INTEGER NOT NULL,
	parse_branch   TEXT NOT NULL,
	model          TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
)`
	generationRecordsIndex = `CREATE INDEX IF NOT EXISTS generation_records_created_at_idx
	ON generation_records (created_at)`
	insertGenerationRecord = `INSERT INTO generation_records
	(request_id, component_path, coverage, test_count, parse_branch, model, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

var ErrStatsUnavailable = errors.New("stats store not configured")

// Collector records accepted tests and generation counters. Redis and Postgres are optional.
type Collector struct {
	trainingDataPath string
	statsTTL         time.Duration
	redis            *database.RedisClient
	postgres         *database.PostgresClient
	logger           logger.Logger

	mu  sync.Mutex
	now func() time.Time
}

func NewCollector(cfg config.CollectorConfig, redis *database.RedisClient, postgres *database.PostgresClient, log logger.Logger) *Collector {
	ttl := config.GetDuration(cfg.StatsTTL)
	if ttl <= 0 {
		ttl = defaultStatsTTL
	}
	return &Collector{
		trainingDataPath: cfg.TrainingDataPath,
		statsTTL:         ttl,
		redis:            redis,
		postgres:         postgres,
		logger:           log.With(map[string]interface{}{"taskType": TaskType}),
		now:              time.Now,
	}
}

// EnsureSchema creates the generation_records table when Postgres is configured.
func (c *Collector) EnsureSchema(ctx context.Context) error {
	if c.postgres == nil {
		return nil
	}
	if err := c.postgres.Migrate(ctx, generationRecordsDDL, generationRecordsIndex); err != nil {
		return fmt.Errorf("failed to create generation_records: %w", err)
	}
	return nil
}

func (c *Collector) CollectFeedback(ctx context.Context, req models.FeedbackRequest) (*models.FeedbackResponse, error) {
	if strings.TrimSpace(req.ComponentSource) == "" || strings.TrimSpace(req.AcceptedTest) == "" {
		return nil, apperrors.NewInvalidRequestError("componentSource and acceptedTest are required")
	}

	score := req.Rating
	if score == 0 {
		score = defaultQualityScore
	}
	exampleContext := req.Context
	if exampleContext == nil {
		exampleContext = map[string]interface{}{}
	}

	now := c.now().UTC()
	example := models.TrainingExample{
		Instruction:  feedbackInstruction + req.ComponentSource,
		Output:       req.AcceptedTest,
		Context:      exampleContext,
		Timestamp:    now.Format(time.RFC3339),
		QualityScore: score,
	}

	if err := c.appendExample(example); err != nil {
		metrics.CollectionFailures.WithLabelValues(sinkTrainingLog).Inc()
		c.logger.Error("Failed to append training example", map[string]interface{}{
			"path":  c.trainingDataPath,
			"error": err.Error(),
		})
		return nil, apperrors.NewCollectionFailedError(sinkTrainingLog, err)
	}

	if c.redis != nil {
		deltas := map[string]int64{
			c.statsKey(now, "feedback"):    1,
			c.statsKey(now, "quality_sum"): int64(score),
		}
		if err := c.redis.IncrementWithTTL(ctx, deltas, c.statsTTL); err != nil {
			metrics.CollectionFailures.WithLabelValues(sinkRedis).Inc()
			c.logger.Warn("Failed to update feedback counters", map[string]interface{}{"error": err.Error()})
		}
	}

	feedbackID := uuid.New().String()
	c.logger.Info("Feedback collected", map[string]interface{}{
		"feedbackId":   feedbackID,
		"qualityScore": score,
	})

	return &models.FeedbackResponse{Status: statusCollected, FeedbackID: feedbackID}, nil
}

func (c *Collector) appendExample(example models.TrainingExample) error {
	if c.trainingDataPath == "" {
		return errors.New("training data path is not configured")
	}
	line, err := json.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal training example: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.trainingDataPath), 0o755); err != nil {
		return fmt.Errorf("failed to create training data directory: %w", err)
	}
	f, err := os.OpenFile(c.trainingDataPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open training data file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to write training example: %w", err)
	}
	return f.Close()
}

// CollectGeneration updates today's counters and stores rec. Every configured sink is
// attempted; failures are combined.
func (c *Collector) CollectGeneration(ctx context.Context, rec models.GenerationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now().UTC()
	}

	var errs []error
	if c.redis != nil {
		deltas := map[string]int64{
			c.statsKey(rec.CreatedAt, "tests"):       int64(rec.TestCount),
			c.statsKey(rec.CreatedAt, "generations"): 1,
		}
		if err := c.redis.IncrementWithTTL(ctx, deltas, c.statsTTL); err != nil {
			metrics.CollectionFailures.WithLabelValues(sinkRedis).Inc()
			errs = append(errs, err)
		}
	}

	if c.postgres != nil {
		_, err := c.postgres.Exec(ctx, insertGenerationRecord,
			rec.RequestID,
			rec.ComponentPath,
			string(rec.Coverage),
			rec.TestCount,
			rec.ParseBranch,
			rec.Model,
			rec.CreatedAt,
		)
		if err != nil {
			metrics.CollectionFailures.WithLabelValues(sinkPostgres).Inc()
			errs = append(errs, fmt.Errorf("failed to insert generation record: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return apperrors.NewCollectionFailedError("generation", err)
	}

	c.logger.Debug("Generation recorded", map[string]interface{}{
		"requestId": rec.RequestID,
		"testCount": rec.TestCount,
	})
	return nil
}

// DashboardStats reads today's counters.
func (c *Collector) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	if c.redis == nil {
		return models.DashboardStats{}, ErrStatsUnavailable
	}

	today := c.now().UTC()
	values := make(map[string]int64, 4)
	for _, field := range []string{"tests", "generations", "feedback", "quality_sum"} {
		n, err := c.redis.GetInt(ctx, c.statsKey(today, field))
		if err != nil {
			return models.DashboardStats{}, err
		}
		values[field] = n
	}

	stats := models.DashboardStats{
		TestsGeneratedToday: values["tests"],
		GenerationsToday:    values["generations"],
		FeedbackToday:       values["feedback"],
		TimeSavedHours:      float64(values["tests"]*minutesSavedPerTest) / 60,
	}
	if values["feedback"] > 0 {
		avg := float64(values["quality_sum"]) / float64(values["feedback"])
		stats.AverageQuality = math.Round(avg*100) / 100
	}
	return stats, nil
}

func (c *Collector) statsKey(day time.Time, field string) string {
	return fmt.Sprintf("%s:%s:%s", statsKeyPrefix, day.UTC().Format(dateLayout), field)
}
