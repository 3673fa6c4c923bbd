package datacollector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtl-testgen/internal/common/config"
	"rtl-testgen/internal/common/database"
	apperrors "rtl-testgen/internal/common/errors"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestCollector(t *testing.T, redis *database.RedisClient, postgres *database.PostgresClient) (*Collector, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "rtl_tests.jsonl")
	c := NewCollector(config.CollectorConfig{TrainingDataPath: path}, redis, postgres, logger.NewTestLogger(t))
	c.now = func() time.Time { return fixedNow }
	return c, path
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *database.RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func readExamples(t *testing.T, path string) []models.TrainingExample {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []models.TrainingExample
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ex models.TrainingExample
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ex))
		out = append(out, ex)
	}
	require.NoError(t, scanner.Err())
	return out
}

// ==========================
// Feedback Tests
// ==========================

func TestCollectFeedback_AppendsTrainingExample(t *testing.T) {
	mr, redis := newMiniredis(t)
	c, path := newTestCollector(t, redis, nil)

	resp, err := c.CollectFeedback(context.Background(), models.FeedbackRequest{
		ComponentSource: "export const A = () => null",
		AcceptedTest:    "it('renders')",
		Context:         map[string]interface{}{"coverage": "smoke"},
	})

	require.NoError(t, err)
	assert.Equal(t, "collected", resp.Status)
	assert.Len(t, resp.FeedbackID, 36)

	examples := readExamples(t, path)
	require.Len(t, examples, 1)
	assert.Equal(t, "Generate React Testing Library tests for this component:\nexport const A = () => null", examples[0].Instruction)
	assert.Equal(t, "it('renders')", examples[0].Output)
	assert.Equal(t, 5, examples[0].QualityScore)
	assert.Equal(t, "2026-03-14T09:30:00Z", examples[0].Timestamp)
	assert.Equal(t, "smoke", examples[0].Context["coverage"])

	feedback, err := mr.Get("testgen:stats:2026-03-14:feedback")
	require.NoError(t, err)
	assert.Equal(t, "1", feedback)
	quality, err := mr.Get("testgen:stats:2026-03-14:quality_sum")
	require.NoError(t, err)
	assert.Equal(t, "5", quality)
	assert.Equal(t, 48*time.Hour, mr.TTL("testgen:stats:2026-03-14:feedback"))
}

func TestCollectFeedback_RequiresSourceAndTest(t *testing.T) {
	c, path := newTestCollector(t, nil, nil)

	_, err := c.CollectFeedback(context.Background(), models.FeedbackRequest{ComponentSource: "x"})

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, stdErr.Code)
	assert.NoFileExists(t, path)
}

func TestCollectFeedback_ConcurrentAppends(t *testing.T) {
	c, path := newTestCollector(t, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			_, err := c.CollectFeedback(context.Background(), models.FeedbackRequest{
				ComponentSource: "src",
				AcceptedTest:    "test",
				Rating:          rating,
			})
			assert.NoError(t, err)
		}(i%5 + 1)
	}
	wg.Wait()

	assert.Len(t, readExamples(t, path), 20)
}

func TestCollectFeedback_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	c := NewCollector(config.CollectorConfig{TrainingDataPath: filepath.Join(blocker, "out.jsonl")}, nil, nil, logger.NewNoOpLogger())
	_, err := c.CollectFeedback(context.Background(), models.FeedbackRequest{ComponentSource: "a", AcceptedTest: "b"})

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeCollectionFailed, stdErr.Code)
}

// ==========================
// Generation Tests
// ==========================

func TestCollectGeneration_RedisAndPostgres(t *testing.T) {
	mr, redis := newMiniredis(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO generation_records`).
		WithArgs("ab12cd34", "src/Button.tsx", "smoke", 2, "parsed", "deepseek-coder-v2", fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, _ := newTestCollector(t, redis, database.NewPostgresFromDB(db))
	err = c.CollectGeneration(context.Background(), models.GenerationRecord{
		RequestID:     "ab12cd34",
		ComponentPath: "src/Button.tsx",
		Coverage:      models.CoverageSmoke,
		TestCount:     2,
		ParseBranch:   "parsed",
		Model:         "deepseek-coder-v2",
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	tests, err := mr.Get("testgen:stats:2026-03-14:tests")
	require.NoError(t, err)
	assert.Equal(t, "2", tests)

	stats, err := c.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TestsGeneratedToday)
	assert.Equal(t, int64(1), stats.GenerationsToday)
	assert.Equal(t, 0.5, stats.TimeSavedHours)
}

func TestCollectGeneration_JoinsSinkFailures(t *testing.T) {
	mr, redis := newMiniredis(t)
	mr.Close()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec(`INSERT INTO generation_records`).WillReturnError(errors.New("relation does not exist"))

	c, _ := newTestCollector(t, redis, database.NewPostgresFromDB(db))
	err = c.CollectGeneration(context.Background(), models.GenerationRecord{RequestID: "r", TestCount: 1})

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeCollectionFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "redis increment failed")
	assert.Contains(t, stdErr.Details, "relation does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectGeneration_NoSinks(t *testing.T) {
	c, _ := newTestCollector(t, nil, nil)
	assert.NoError(t, c.CollectGeneration(context.Background(), models.GenerationRecord{TestCount: 3}))
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS generation_records`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS generation_records_created_at_idx`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	c, _ := newTestCollector(t, nil, database.NewPostgresFromDB(db))
	require.NoError(t, c.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())

	bare, _ := newTestCollector(t, nil, nil)
	assert.NoError(t, bare.EnsureSchema(context.Background()))
}

// ==========================
// Dashboard Tests
// ==========================

func TestDashboardStats_AverageQuality(t *testing.T) {
	_, redis := newMiniredis(t)
	c, _ := newTestCollector(t, redis, nil)
	ctx := context.Background()

	for _, rating := range []int{5, 4, 4} {
		_, err := c.CollectFeedback(ctx, models.FeedbackRequest{ComponentSource: "s", AcceptedTest: "t", Rating: rating})
		require.NoError(t, err)
	}

	stats, err := c.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.FeedbackToday)
	assert.Equal(t, 4.33, stats.AverageQuality)
	assert.Zero(t, stats.TestsGeneratedToday)
}

func TestDashboardStats_RedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("testgen:stats:2026-03-14:tests").SetErr(errors.New("READONLY"))

	c, _ := newTestCollector(t, database.NewRedisFromClient(client), nil)
	_, err := c.DashboardStats(context.Background())

	assert.ErrorContains(t, err, "READONLY")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardStats_NotConfigured(t *testing.T) {
	c, _ := newTestCollector(t, nil, nil)
	_, err := c.DashboardStats(context.Background())
	assert.ErrorIs(t, err, ErrStatsUnavailable)
}
