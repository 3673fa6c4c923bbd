package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "tsx fence",
			raw:  "```tsx\ndescribe('Button', () => {})\n```",
			want: "describe('Button', () => {})",
		},
		{
			name: "bare fence without closing",
			raw:  "```\nimport { render } from '@testing-library/react'",
			want: "import { render } from '@testing-library/react'",
		},
		{
			name: "reasoning block before fence",
			raw:  "<think>the user wants tests</think>\n```typescript\nit('works', () => {})\n```\n",
			want: "it('works', () => {})",
		},
		{
			name: "multi-line thinking block",
			raw:  "<thinking>\nstep one\nstep two\n</thinking>describe()",
			want: "describe()",
		},
		{
			name: "stray tags",
			raw:  "</think>describe()<think>",
			want: "describe()",
		},
		{
			name: "plain text passes through trimmed",
			raw:  "  describe('x', () => {})\n\n",
			want: "describe('x', () => {})",
		},
		{
			name: "inner fences are preserved",
			raw:  "describe('x', () => {\n  const s = `a`\n})",
			want: "describe('x', () => {\n  const s = `a`\n})",
		},
		{
			name: "json envelope in fence",
			raw:  "```json\n{\"tests\":[]}\n```",
			want: "{\"tests\":[]}",
		},
		{
			name: "capitalized jsx component is code",
			raw:  "```tsx\nrender(<Thinking>loading</Thinking>);\nexpect(screen.getByText('loading')).toBeInTheDocument();\n```",
			want: "render(<Thinking>loading</Thinking>);\nexpect(screen.getByText('loading')).toBeInTheDocument();",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw))
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"```tsx\n```tsx\ndescribe()\n```\n```",
		"<think>a</think>```\n<think>b</think>x\n```",
		"```js\n\n```",
		"text with ``` in the middle",
		"```tsx\ndescribe('Button', () => {})\n```",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

func TestCleanChunk(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     string
	}{
		{"plain fragment keeps whitespace", "  render(<Button />);\n", "  render(<Button />);\n"},
		{"fence only", "```tsx\n", ""},
		{"closing fence only", "```", ""},
		{"leading fence with code", "```tsx\nimport React", "import React"},
		{"reasoning tag", "<think>", ""},
		{"reasoning block inside", "a<think>hidden</think>b", "ab"},
		{"jsx component named Think", "<Think mode=\"fast\" />", "<Think mode=\"fast\" />"},
		{"empty", "", ""},
		{"whitespace only is content", "\n", "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanChunk(tt.fragment))
		})
	}
}
