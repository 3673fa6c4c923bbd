// Package prompt renders the instructions sent to the language model.
package prompt

import (
	"fmt"
	"strings"

	"rtl-testgen/internal/models"
	"rtl-testgen/pkg/registry"
)

// Prompt is a rendered prompt. Temperature and MaxTokens are per-kind hints; zero values
// leave the backend defaults in place.
type Prompt struct {
	Kind        string
	System      string
	User        string
	Temperature *float64
	MaxTokens   int
}

// Text joins both parts for completion-style backends.
func (p Prompt) Text() string {
	if strings.TrimSpace(p.System) == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}

const maxContextElements = 5

const synthesisSystem = "You are a senior React Testing Library engineer. " +
	"Generate Jest + RTL tests focusing on user-observable behavior, accessible queries, and userEvent. " +
	"Prefer getByRole and getByLabelText over querySelector or getByTestId. " +
	`Output strictly JSON: {"tests":[{"filename":"<name>","code":"<contents>"}]} with valid escaped newlines. ` +
	"Return JSON only, no markdown."

const streamInstruction = `You are a code generator for Jest and React Testing Library.
You must generate a TypeScript test file for the provided React component.
STRICT RULES:
- Output ONLY the valid TypeScript RTL+Jest code as it would appear in a .test.tsx file.
- NO markdown code fences.
- NO <think> tags, explanations, steps, context, or any non-code lines.
- NO bullet points, headers, or summary.
- Begin with the first import statement and end at the last closing bracket.
Now, generate the test file for this component:`

const validationSystem = "You are an RTL linter. Replace non-accessible selectors with accessible queries. " +
	`Output JSON: {"fixes":[{"file":"<path>","patch":"<full_file_contents>","reason":"<short>","confidence":<0..1>}]}. ` +
	`Return {"fixes":[]} when nothing needs to change.`

const singleFileSystem = "You are an expert React Testing Library developer. " +
	"Generate comprehensive unit tests for the given React component as a single test file."

var (
	validationTemperature = 0.0
	validationMaxTokens   = 800
	singleFileMaxTokens   = 1500
)

// Builder renders prompts, applying registry overrides when present.
type Builder struct {
	registry *registry.PromptRegistry
}

func NewBuilder(reg *registry.PromptRegistry) *Builder {
	return &Builder{registry: reg}
}

func (b *Builder) apply(p Prompt) Prompt {
	tmpl, ok := b.registry.Get(p.Kind)
	if !ok {
		return p
	}
	if strings.TrimSpace(tmpl.System) != "" {
		p.System = tmpl.System
	}
	if tmpl.Temperature != nil {
		p.Temperature = tmpl.Temperature
	}
	if tmpl.MaxTokens > 0 {
		p.MaxTokens = tmpl.MaxTokens
	}
	return p
}

// BuildSynthesis renders the main generation prompt. The source is embedded verbatim.
func (b *Builder) BuildSynthesis(componentPath, source string, coverage models.Coverage, summary *models.ASTSummary) Prompt {
	if coverage == "" {
		coverage = models.CoverageInteractions
	}

	name := "Component"
	if summary != nil && summary.ComponentName != "" {
		name = summary.ComponentName
	}

	var parts []string
	parts = append(parts, "Generate Jest + React Testing Library tests for this React component.")
	parts = append(parts, "\nCOMPONENT ANALYSIS:")
	parts = append(parts, fmt.Sprintf("- Name: %s", name))
	if componentPath != "" {
		parts = append(parts, fmt.Sprintf("- Path: %s", componentPath))
	}
	parts = append(parts, fmt.Sprintf("- Context: %s", contextFacts(summary)))
	parts = append(parts, fmt.Sprintf("- Coverage Level: %s (%s)", coverage, coverage.Description()))

	parts = append(parts, "\nCOMPONENT CODE:")
	parts = append(parts, "```tsx")
	parts = append(parts, source)
	parts = append(parts, "```")

	parts = append(parts, "\nREQUIREMENTS:")
	parts = append(parts, "- Use @testing-library/react and @testing-library/user-event")
	parts = append(parts, "- Focus on user behavior, not implementation details")
	parts = append(parts, "- Use accessible queries (getByRole, getByLabelText) when possible")
	parts = append(parts, "- Test user interactions if event handlers are present")
	parts = append(parts, "- Test hooks behavior if hooks are used")
	parts = append(parts, "- Import the component with the correct relative path")
	parts = append(parts, fmt.Sprintf("- Name the test file %s.test.tsx", name))

	parts = append(parts, "\nOUTPUT FORMAT:")
	parts = append(parts, "Return ONLY valid JSON in this exact format:")
	parts = append(parts, fmt.Sprintf(`{"tests": [{"filename": "%s.test.tsx", "code": "// Complete test file code here"}]}`, name))

	return b.apply(Prompt{
		Kind:   registry.KindSynthesis,
		System: synthesisSystem,
		User:   strings.Join(parts, "\n"),
	})
}

func contextFacts(summary *models.ASTSummary) string {
	if summary == nil {
		return "Simple component"
	}

	var facts []string
	if len(summary.HooksUsed) > 0 {
		facts = append(facts, "Uses hooks: "+strings.Join(summary.HooksUsed, ", "))
	}
	if len(summary.EventHandlers) > 0 {
		facts = append(facts, "Has event handlers: "+strings.Join(summary.EventHandlers, ", "))
	}
	if len(summary.JSXElements) > 0 {
		elements := summary.JSXElements
		if len(elements) > maxContextElements {
			elements = elements[:maxContextElements]
		}
		facts = append(facts, "Contains elements: "+strings.Join(elements, ", "))
	}

	if len(facts) == 0 {
		return "Simple component"
	}
	return strings.Join(facts, ". ")
}

// BuildStream renders the code-only prompt used by the streaming endpoint.
func (b *Builder) BuildStream(source string) Prompt {
	p := b.apply(Prompt{Kind: registry.KindStream, System: streamInstruction})
	// The instruction and the source travel as one block.
	return Prompt{
		Kind:        p.Kind,
		User:        p.System + "\n\n" + source,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

func (b *Builder) BuildValidation(filePath, source string) Prompt {
	return b.apply(Prompt{
		Kind:        registry.KindValidation,
		System:      validationSystem,
		User:        fmt.Sprintf("File: %s\n\nSource:\n```tsx\n%s\n```", filePath, source),
		Temperature: &validationTemperature,
		MaxTokens:   validationMaxTokens,
	})
}

func (b *Builder) BuildSingleFile(source, componentName string) Prompt {
	var parts []string
	parts = append(parts, fmt.Sprintf("Component Name: %s", componentName))
	parts = append(parts, "\nComponent Code:")
	parts = append(parts, "```tsx")
	parts = append(parts, source)
	parts = append(parts, "```")
	parts = append(parts, "\nGenerate a complete React Testing Library test file that includes:")
	parts = append(parts, "1. Proper imports (render, screen, userEvent, jest-dom)")
	parts = append(parts, "2. Test for component rendering")
	parts = append(parts, "3. Tests for props and their effects")
	parts = append(parts, "4. Tests for user interactions and events")
	parts = append(parts, "5. TypeScript types and proper assertions")
	parts = append(parts, "6. Use RTL best practices (getByRole, getByLabelText, etc.)")
	parts = append(parts, "\nGenerate ONLY the test code, properly formatted and ready to use:")

	return b.apply(Prompt{
		Kind:      registry.KindSingleFile,
		System:    singleFileSystem,
		User:      strings.Join(parts, "\n"),
		MaxTokens: singleFileMaxTokens,
	})
}
