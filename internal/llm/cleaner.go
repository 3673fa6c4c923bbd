package llm

import (
	"regexp"
	"strings"
)

// Reasoning tags are matched in lowercase only: <Thinking> is a JSX component.
var (
	leadingFence    = regexp.MustCompile("^```[A-Za-z0-9_+.-]*[ \t]*(?:\r?\n|$)")
	trailingFence   = regexp.MustCompile("(?:\r?\n)?```[ \t]*$")
	reasoningBlock  = regexp.MustCompile(`(?s)<(think|thinking)>.*?</(?:think|thinking)>`)
	reasoningTag    = regexp.MustCompile(`</?think(?:ing)?>`)
	fenceOnlyChunk  = regexp.MustCompile("^\\s*```[A-Za-z0-9_+.-]*\\s*$")
	chunkFencePrefx = regexp.MustCompile("^```[A-Za-z0-9_+.-]*[ \t]*(?:\r?\n)?")
)

// Clean strips a wrapping code fence and reasoning markup from a complete model answer.
// Clean(Clean(x)) == Clean(x).
func Clean(raw string) string {
	text := strings.TrimSpace(raw)
	for {
		next := cleanOnce(text)
		if next == text {
			return text
		}
		text = next
	}
}

func cleanOnce(text string) string {
	text = reasoningBlock.ReplaceAllString(text, "")
	text = reasoningTag.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if loc := leadingFence.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
		text = trailingFence.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// CleanChunk removes fence markers and reasoning tags from one streamed fragment.
// Whitespace inside the fragment is preserved; markup-only fragments become "".
func CleanChunk(fragment string) string {
	if fragment == "" || fenceOnlyChunk.MatchString(fragment) {
		return ""
	}
	out := reasoningBlock.ReplaceAllString(fragment, "")
	out = reasoningTag.ReplaceAllString(out, "")
	out = chunkFencePrefx.ReplaceAllString(out, "")
	if strings.TrimSpace(out) == "" && strings.TrimSpace(fragment) != "" {
		return ""
	}
	return out
}
