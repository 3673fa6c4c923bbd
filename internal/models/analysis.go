// internal/models/analysis.go
package models

type ComponentContext struct {
	FileType    string   `json:"file_type"`
	IsComponent bool     `json:"is_component"`
	HasHooks    bool     `json:"has_hooks"`
	HasProps    bool     `json:"has_props"`
	Imports     []string `json:"imports"`
	Exports     []string `json:"exports"`
}

type ASTSummary struct {
	ComponentName  string   `json:"component_name,omitempty"`
	PropsInterface string   `json:"props_interface,omitempty"`
	HooksUsed      []string `json:"hooks_used"`
	JSXElements    []string `json:"jsx_elements"`
	EventHandlers  []string `json:"event_handlers"`
}

type AnalysisRequest struct {
	ComponentPath   string `json:"componentPath"`
	ComponentSource string `json:"componentSource"`
}

type AnalysisResponse struct {
	Context    ComponentContext `json:"context"`
	ASTSummary ASTSummary       `json:"ast_summary"`
}
