// pkg/registry/schema.go
package registry

// PromptRegistry overrides the built-in prompt wording per prompt kind.
type PromptRegistry struct {
	Version     string           `json:"version"`
	LastUpdated string           `json:"lastUpdated"`
	Prompts     []PromptTemplate `json:"prompts"`
}

type PromptTemplate struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	System      string   `json:"system"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Tags        []string `json:"tags"`
}
