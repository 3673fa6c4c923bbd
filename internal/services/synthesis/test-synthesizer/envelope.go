// internal/services/synthesis/test-synthesizer/envelope.go
package testsynthesizer

import (
	"encoding/json"
	"errors"
	"strings"

	apperrors "rtl-testgen/internal/common/errors"
	"rtl-testgen/internal/common/validation"
	"rtl-testgen/internal/llm"
	"rtl-testgen/internal/models"
)

type Branch string

const (
	BranchParsed   Branch = "parsed"
	BranchFallback Branch = "fallback"
)

const fallbackWarning = "LLM response was not a valid tests envelope; returned the raw output as a single test file"

// ParseResult records which branch produced Tests. Raw is the cleaned model output.
// Err is set on the fallback branch only and is never returned to callers.
type ParseResult struct {
	Branch Branch
	Tests  []models.TestFile
	Raw    string
	Err    *apperrors.StandardError
}

type envelope struct {
	Tests []models.TestFile `json:"tests"`
}

// ParseEnvelope never fails: anything that is not a valid {"tests":[...]} document becomes
// exactly one synthetic file holding the cleaned text.
func ParseEnvelope(raw, componentName string) ParseResult {
	cleaned := llm.Clean(raw)

	var reason string
	for _, candidate := range envelopeCandidates(cleaned) {
		result := validation.TestsEnvelopeSchema.ValidateBytes([]byte(candidate))
		if !result.Valid {
			if reason == "" {
				reason = result.Error()
			}
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(candidate), &env); err != nil {
			reason = err.Error()
			continue
		}
		if env.Tests == nil {
			env.Tests = []models.TestFile{}
		}
		return ParseResult{Branch: BranchParsed, Tests: env.Tests, Raw: cleaned}
	}

	return ParseResult{
		Branch: BranchFallback,
		Tests:  []models.TestFile{{Filename: fallbackFilename(componentName), Code: cleaned}},
		Raw:    cleaned,
		Err:    apperrors.NewMalformedResponseError("tests", errors.New(reason)),
	}
}

// envelopeCandidates yields the cleaned text and, when the model wrapped the JSON in prose,
// the outermost brace-delimited span.
func envelopeCandidates(cleaned string) []string {
	candidates := []string{cleaned}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if span := cleaned[start : end+1]; span != cleaned {
			candidates = append(candidates, span)
		}
	}
	return candidates
}

func fallbackFilename(componentName string) string {
	if strings.TrimSpace(componentName) == "" {
		return "Component.test.tsx"
	}
	return componentName + ".test.tsx"
}
