package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct {
	Value string `json:"value"`
}

func newTestClient(url string, timeout time.Duration) *ServiceClient {
	return NewServiceClient(url, timeout, WithBackoffBase(time.Millisecond))
}

func TestPost_Success(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"value":"ok"}`))
	}))
	defer server.Close()

	var out echo
	err := newTestClient(server.URL, time.Second).Post(context.Background(), "/api/generate", echo{Value: "in"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestPost_TimeoutsExhaustAttempts(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	err := newTestClient(server.URL, 20*time.Millisecond).Post(context.Background(), "/slow", echo{}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestPost_ClientErrorIsNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	err := newTestClient(server.URL, time.Second).Post(context.Background(), "/api/generate", echo{}, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "model not found", statusErr.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestPost_ServerErrorThenSuccess(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"value":"recovered"}`))
	}))
	defer server.Close()

	var out echo
	err := newTestClient(server.URL, time.Second).Post(context.Background(), "/api/generate", echo{}, &out)

	require.NoError(t, err)
	assert.Equal(t, "recovered", out.Value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestPostWithRetries_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := newTestClient(url, time.Second).PostWithRetries(context.Background(), "/api/generate", echo{}, nil, 2)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, IsRetryable(err))
}

func TestGet_DecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"value":"healthy"}`))
	}))
	defer server.Close()

	var out echo
	require.NoError(t, newTestClient(server.URL+"/", time.Second).Get(context.Background(), "/healthz", &out))
	assert.Equal(t, "healthy", out.Value)
}

func TestOpenStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("line one\nline two\n"))
	}))
	defer server.Close()

	body, err := newTestClient(server.URL, time.Second).OpenStream(context.Background(), "/api/generate", echo{})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data))
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}

	err := Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return &StatusError{StatusCode: http.StatusServiceUnavailable}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))
}
