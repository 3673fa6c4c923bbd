// internal/models/generation.go
package models

type Coverage string

const (
	CoverageSmoke         Coverage = "smoke"
	CoverageInteractions  Coverage = "interactions"
	CoverageComprehensive Coverage = "comprehensive"
)

// Description explains the coverage level to the model.
func (c Coverage) Description() string {
	switch c {
	case CoverageSmoke:
		return "Basic rendering test"
	case CoverageComprehensive:
		return "Edge cases, error states, accessibility"
	default:
		return "User interactions and state changes"
	}
}

type Goals struct {
	Coverage Coverage `json:"coverage"`
}

type GenerateRequest struct {
	ComponentPath   string `json:"componentPath"`
	ComponentSource string `json:"componentSource"`
	Goals           Goals  `json:"goals"`
}

// Normalize fills in the default coverage level.
func (r *GenerateRequest) Normalize() {
	if r.Goals.Coverage == "" {
		r.Goals.Coverage = CoverageInteractions
	}
}

type EnhancedGenerateRequest struct {
	GenerateRequest
	Context    ComponentContext `json:"context"`
	ASTSummary ASTSummary       `json:"ast_summary"`
}

type TestFile struct {
	Filename    string `json:"filename"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

type GenerateResponse struct {
	Tests    []TestFile             `json:"tests"`
	Fixes    []Fix                  `json:"fixes,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type Fix struct {
	File       string  `json:"file"`
	Patch      string  `json:"patch"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

type ValidateRequest struct {
	FilePath string `json:"filePath"`
	Source   string `json:"source"`
}

type ValidateResponse struct {
	Fixes        []Fix    `json:"fixes"`
	QualityScore float64  `json:"quality_score"`
	Suggestions  []string `json:"suggestions"`
}

type StreamRequest struct {
	ComponentCode string `json:"component_code"`
	Model         string `json:"model,omitempty"`
}

// TestRequest and TestResponse carry the single-file GenerateTest RPC.
type TestRequest struct {
	ComponentCode string `json:"component_code"`
	ComponentName string `json:"component_name"`
}

type TestResponse struct {
	TestCode     string `json:"test_code"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message"`
}
