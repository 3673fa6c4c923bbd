package testsynthesizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "rtl-testgen/internal/common/errors"
	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/llm"
	"rtl-testgen/internal/models"
	"rtl-testgen/internal/prompt"
)

type fakeBackend struct {
	response string
	err      error
	requests []llm.Request
}

func (f *fakeBackend) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func (f *fakeBackend) Stream(ctx context.Context, req llm.Request) (*llm.Stream, error) {
	return nil, errors.New("not supported")
}

func (f *fakeBackend) Name() string                   { return "fake" }
func (f *fakeBackend) Model() string                  { return "fake-model" }
func (f *fakeBackend) Ping(ctx context.Context) error { return nil }

func enhancedRequest() models.EnhancedGenerateRequest {
	return models.EnhancedGenerateRequest{
		GenerateRequest: models.GenerateRequest{
			ComponentPath:   "src/Button.tsx",
			ComponentSource: "export default function Button(){return <button onClick={handleClick}>Go</button>}",
		},
		ASTSummary: models.ASTSummary{
			ComponentName: "Button",
			HooksUsed:     []string{},
			JSXElements:   []string{"button"},
			EventHandlers: []string{"handleClick", "onClick"},
		},
	}
}

func TestParseEnvelope_Parsed(t *testing.T) {
	raw := `{"tests":[{"filename":"Button.test.tsx","code":"import { render } from '@testing-library/react';\n"},{"filename":"Button.a11y.test.tsx","code":"it()"}]}`

	result := ParseEnvelope(raw, "Button")

	assert.Equal(t, BranchParsed, result.Branch)
	require.Len(t, result.Tests, 2)
	assert.Equal(t, "Button.test.tsx", result.Tests[0].Filename)
	assert.Equal(t, "import { render } from '@testing-library/react';\n", result.Tests[0].Code)
	assert.Equal(t, "it()", result.Tests[1].Code)
	assert.Nil(t, result.Err)
}

func TestParseEnvelope_FencedJSON(t *testing.T) {
	result := ParseEnvelope("```json\n{\"tests\":[{\"filename\":\"A.test.tsx\",\"code\":\"x\"}]}\n```", "A")
	assert.Equal(t, BranchParsed, result.Branch)
	assert.Equal(t, "A.test.tsx", result.Tests[0].Filename)
}

func TestParseEnvelope_JSONWrappedInProse(t *testing.T) {
	result := ParseEnvelope("Here are your tests:\n{\"tests\":[{\"filename\":\"A.test.tsx\",\"code\":\"x\"}]}\nEnjoy!", "A")
	assert.Equal(t, BranchParsed, result.Branch)
	require.Len(t, result.Tests, 1)
}

func TestParseEnvelope_Fallback(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		componentName string
		wantFilename  string
		wantCode      string
	}{
		{
			name:          "plain code",
			raw:           "```tsx\ndescribe('Button', () => {})\n```",
			componentName: "Button",
			wantFilename:  "Button.test.tsx",
			wantCode:      "describe('Button', () => {})",
		},
		{
			name:         "schema mismatch",
			raw:          `{"files":[{"name":"x"}]}`,
			wantFilename: "Component.test.tsx",
			wantCode:     `{"files":[{"name":"x"}]}`,
		},
		{
			name:         "test entry without filename",
			raw:          `{"tests":[{"code":"it()"}]}`,
			wantFilename: "Component.test.tsx",
			wantCode:     `{"tests":[{"code":"it()"}]}`,
		},
		{
			name:         "empty answer",
			raw:          "",
			wantFilename: "Component.test.tsx",
			wantCode:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseEnvelope(tt.raw, tt.componentName)
			assert.Equal(t, BranchFallback, result.Branch)
			require.Len(t, result.Tests, 1)
			assert.Equal(t, tt.wantFilename, result.Tests[0].Filename)
			assert.Equal(t, tt.wantCode, result.Tests[0].Code)
			require.NotNil(t, result.Err)
			assert.Equal(t, apperrors.ErrCodeMalformedResponse, result.Err.Code)
		})
	}
}

func TestSynthesize_Parsed(t *testing.T) {
	backend := &fakeBackend{response: `{"tests":[{"filename":"Button.test.tsx","code":"it('clicks')"}]}`}
	h := NewHandler(backend, prompt.NewBuilder(nil), logger.NewTestLogger(t))

	resp, result, err := h.Synthesize(context.Background(), enhancedRequest())

	require.NoError(t, err)
	assert.Equal(t, BranchParsed, result.Branch)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, "parsed", resp.Metadata["parse_branch"])
	assert.Equal(t, "fake-model", resp.Metadata["model"])
	assert.Equal(t, "Button", resp.Metadata["component_name"])
	assert.Equal(t, "interactions", resp.Metadata["coverage"])
	assert.Equal(t, 2, resp.Metadata["events_count"])

	require.Len(t, backend.requests, 1)
	assert.Contains(t, backend.requests[0].Prompt.User, "Has event handlers: handleClick, onClick")
}

func TestSynthesize_FallbackAddsWarning(t *testing.T) {
	backend := &fakeBackend{response: "describe('Button', () => {})"}
	h := NewHandler(backend, prompt.NewBuilder(nil), logger.NewTestLogger(t))

	resp, result, err := h.Synthesize(context.Background(), enhancedRequest())

	require.NoError(t, err)
	assert.Equal(t, BranchFallback, result.Branch)
	require.Len(t, resp.Tests, 1)
	assert.Equal(t, "Button.test.tsx", resp.Tests[0].Filename)
	assert.Equal(t, []string{fallbackWarning}, resp.Warnings)
}

func TestSynthesize_FallbackLogsMalformedResponse(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	backend := &fakeBackend{response: `{"files":[]}`}
	h := NewHandler(backend, prompt.NewBuilder(nil), logger.NewZapAdapter(zap.New(core)))

	_, _, err := h.Synthesize(context.Background(), enhancedRequest())
	require.NoError(t, err)

	entries := logs.FilterMessage("Falling back to raw LLM output").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "MALFORMED_RESPONSE", fields["errorCode"])
	assert.Equal(t, "LLM", fields["errorCategory"])
	assert.Equal(t, "src/Button.tsx", fields["componentPath"])
	assert.NotEmpty(t, fields["details"])
}

func TestSynthesize_BackendError(t *testing.T) {
	cause := &llm.UnavailableError{Backend: "fake", Err: errors.New("connection refused")}
	h := NewHandler(&fakeBackend{err: cause}, prompt.NewBuilder(nil), logger.NewTestLogger(t))

	resp, _, err := h.Synthesize(context.Background(), enhancedRequest())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, llm.ErrBackendUnavailable)
}
