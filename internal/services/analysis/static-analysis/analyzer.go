// internal/services/analysis/static-analysis/analyzer.go
package staticanalysis

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"rtl-testgen/internal/common/logger"
	"rtl-testgen/internal/models"
)

const TaskType = "static-analysis"

var (
	componentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`function\s+[A-Z]\w*\s*\(`),
		regexp.MustCompile(`const\s+[A-Z]\w*\s*[:=]\s*\(`),
		regexp.MustCompile(`export\s+(?:default\s+)?function\s+[A-Z]\w*`),
		regexp.MustCompile(`export\s+(?:default\s+)?(?:const\s+)?[A-Z]\w*`),
	}

	propsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`function\s+\w+\s*\(\s*\{[^}]+\}`),
		regexp.MustCompile(`function\s+\w+\s*\(\s*props\s*:`),
		regexp.MustCompile(`const\s+\w+\s*=\s*\(\s*\{[^}]+\}`),
		regexp.MustCompile(`const\s+\w+\s*=\s*\(\s*props\s*:`),
	}

	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`export\s+default\s+function\s+(\w+)`),
		regexp.MustCompile(`function\s+([A-Z]\w*)\s*\(`),
		regexp.MustCompile(`const\s+([A-Z]\w*)\s*[:=]`),
		regexp.MustCompile(`export\s+default\s+(\w+)`),
	}

	hookPattern = regexp.MustCompile(`\b(useState|useEffect|useContext|useReducer|useCallback|useMemo|useRef|useImperativeHandle|useLayoutEffect|useDebugValue)\s*\(`)

	propsInterfacePattern = regexp.MustCompile(`(?s)interface\s+\w*Props\s*\{[^}]+\}`)
	propsTypePattern      = regexp.MustCompile(`(?s)type\s+\w*Props\s*=\s*\{[^}]+\}`)

	jsxPattern = regexp.MustCompile(`<(\w+)(?:\s|>|/)`)

	eventAttrPattern   = regexp.MustCompile(`\b(on[A-Z]\w*)\s*=`)
	handlerNamePattern = regexp.MustCompile(`\b(handle[A-Z]\w*)`)
)

var htmlElements = map[string]bool{
	"a": true, "button": true, "div": true, "form": true, "h1": true, "h2": true, "h3": true,
	"img": true, "input": true, "label": true, "li": true, "ol": true, "p": true, "select": true,
	"span": true, "table": true, "textarea": true, "ul": true,
}

// Analyzer extracts flat facts from component source. Every check is an independent pattern
// match; nothing is parsed.
type Analyzer struct {
	logger logger.Logger
}

func New(log logger.Logger) *Analyzer {
	return &Analyzer{
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (a *Analyzer) Analyze(componentPath, source string) models.AnalysisResponse {
	ctx := models.ComponentContext{
		FileType:    filepath.Ext(componentPath),
		IsComponent: matchAny(componentPatterns, source),
		HasHooks:    hookPattern.MatchString(source),
		HasProps:    matchAny(propsPatterns, source),
		Imports:     linesWithPrefix(source, "import ", "import type"),
		Exports:     linesWithPrefix(source, "export ", ""),
	}

	summary := models.ASTSummary{
		ComponentName:  componentName(source),
		PropsInterface: propsInterface(source),
		HooksUsed:      submatches(hookPattern, source, nil),
		JSXElements:    submatches(jsxPattern, source, isTrackedElement),
		EventHandlers:  eventHandlers(source),
	}

	a.logger.Debug("Component analyzed", map[string]interface{}{
		"componentPath": componentPath,
		"componentName": summary.ComponentName,
		"hasProps":      summary.PropsInterface != "",
		"hooks":         len(summary.HooksUsed),
		"events":        len(summary.EventHandlers),
	})

	return models.AnalysisResponse{Context: ctx, ASTSummary: summary}
}

func matchAny(patterns []*regexp.Regexp, source string) bool {
	for _, p := range patterns {
		if p.MatchString(source) {
			return true
		}
	}
	return false
}

// linesWithPrefix returns trimmed lines starting with prefix, in source order, without duplicates.
func linesWithPrefix(source, prefix, exclude string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		if exclude != "" && strings.HasPrefix(line, exclude) {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return out
}

func componentName(source string) string {
	for _, p := range namePatterns {
		m := p.FindStringSubmatch(source)
		if m == nil {
			continue
		}
		if name := m[1]; name != "" && name[0] >= 'A' && name[0] <= 'Z' {
			return name
		}
	}
	return ""
}

func propsInterface(source string) string {
	if m := propsInterfacePattern.FindString(source); m != "" {
		return m
	}
	return propsTypePattern.FindString(source)
}

func isTrackedElement(tag string) bool {
	return (tag[0] >= 'A' && tag[0] <= 'Z') || htmlElements[tag]
}

// submatches collects the first capture group of every match, deduplicated and sorted.
func submatches(p *regexp.Regexp, source string, keep func(string) bool) []string {
	set := map[string]bool{}
	for _, m := range p.FindAllStringSubmatch(source, -1) {
		if keep != nil && !keep(m[1]) {
			continue
		}
		set[m[1]] = true
	}
	return sortedKeys(set)
}

func eventHandlers(source string) []string {
	set := map[string]bool{}
	for _, name := range submatches(eventAttrPattern, source, nil) {
		set[name] = true
	}
	for _, name := range submatches(handlerNamePattern, source, nil) {
		set[name] = true
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
