// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Known prompt kinds.
const (
	KindSynthesis  = "synthesis"
	KindStream     = "stream"
	KindValidation = "validation"
	KindSingleFile = "single_file"
)

var knownKinds = map[string]bool{
	KindSynthesis:  true,
	KindStream:     true,
	KindValidation: true,
	KindSingleFile: true,
}

// LoadRegistry reads a registry file. An empty path yields an empty registry.
func LoadRegistry(path string) (*PromptRegistry, error) {
	if strings.TrimSpace(path) == "" {
		return &PromptRegistry{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg PromptRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse prompt registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *PromptRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Prompts))
	for _, p := range r.Prompts {
		if !knownKinds[p.ID] {
			return fmt.Errorf("unknown prompt id %q", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate prompt id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
			return fmt.Errorf("prompt %q: temperature must be within [0, 2]", p.ID)
		}
	}
	return nil
}

// Get returns the template registered for kind. Nil registries are empty.
func (r *PromptRegistry) Get(kind string) (PromptTemplate, bool) {
	if r == nil {
		return PromptTemplate{}, false
	}
	for _, p := range r.Prompts {
		if p.ID == kind {
			return p, true
		}
	}
	return PromptTemplate{}, false
}

// Upsert replaces the template with the same ID or appends it, and bumps LastUpdated.
func (r *PromptRegistry) Upsert(tmpl PromptTemplate) {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	for i := range r.Prompts {
		if r.Prompts[i].ID == tmpl.ID {
			r.Prompts[i] = tmpl
			return
		}
	}
	r.Prompts = append(r.Prompts, tmpl)
}

// SaveRegistry validates reg and writes it as indented JSON, creating parent directories.
func SaveRegistry(reg *PromptRegistry, path string) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
