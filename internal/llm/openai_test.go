package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtl-testgen/internal/common/config"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/prompt"
)

func chatCompletionBody(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "deepseek-coder-v2-lite-instruct",
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]interface{}{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer no-key-required", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-coder-v2-lite-instruct", req["model"])
		messages := req["messages"].([]interface{})
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
		assert.Equal(t, "user", messages[1].(map[string]interface{})["role"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionBody(`{"tests":[{"filename":"A.test.tsx","code":"it()"}]}`)))
	}))
	defer server.Close()

	opts := testOptions()
	opts.Model = "deepseek-coder-v2-lite-instruct"
	b := NewOpenAIBackend(server.URL+"/v1", "no-key-required", opts, logger.NewTestLogger(t))

	out, err := b.Complete(context.Background(), Request{Prompt: prompt.Prompt{System: "sys", User: "usr"}})
	require.NoError(t, err)
	assert.Contains(t, out, "A.test.tsx")
	assert.Equal(t, "openai", b.Name())
}

func TestOpenAIComplete_RetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"loading model"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionBody("ok")))
	}))
	defer server.Close()

	b := NewOpenAIBackend(server.URL, "k", testOptions(), logger.NewNoOpLogger())
	out, err := b.Complete(context.Background(), Request{Prompt: prompt.Prompt{User: "usr"}})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestOpenAIComplete_ClientErrorNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"context length exceeded"}}`))
	}))
	defer server.Close()

	b := NewOpenAIBackend(server.URL, "k", testOptions(), logger.NewNoOpLogger())
	_, err := b.Complete(context.Background(), Request{Prompt: prompt.Prompt{User: "usr"}})

	var backendErr *BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, http.StatusBadRequest, backendErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestOpenAIComplete_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	b := NewOpenAIBackend(url, "k", testOptions(), logger.NewNoOpLogger())
	_, err := b.Complete(context.Background(), Request{Prompt: prompt.Prompt{User: "usr"}})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestOpenAIStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i, delta := range []string{"```tsx\n", "describe(", "'Button'", ")"} {
			finish := "null"
			if i == 3 {
				finish = `"stop"`
			}
			fmt.Fprintf(w, "data: {\"id\":\"c\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":%s}]}\n\n", delta, finish)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	b := NewOpenAIBackend(server.URL, "k", testOptions(), logger.NewNoOpLogger())
	stream, err := b.Stream(context.Background(), Request{Prompt: prompt.Prompt{User: "usr"}})
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, []string{"describe(", "'Button'", ")"}, collect(stream))
	assert.NoError(t, stream.Err())
}

func TestNew_SelectsProvider(t *testing.T) {
	cfg := config.LLMConfig{
		Provider:   config.ProviderOpenAI,
		OpenAI:     config.OpenAIConfig{BaseURL: "http://localhost:8080/v1", APIKey: "k", Model: "m"},
		MaxRetries: 3,
	}
	b, err := New(cfg, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())
	assert.Equal(t, "m", b.Model())

	cfg.Provider = config.ProviderOllama
	cfg.Ollama = config.OllamaConfig{URL: "http://localhost:11434", Model: "deepseek-coder-v2"}
	b, err = New(cfg, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, "ollama", b.Name())

	cfg.Provider = "bedrock"
	_, err = New(cfg, logger.NewNoOpLogger())
	assert.Error(t, err)
}
