package llm

import (
	"regexp"
	"strings"
	"sync"
)

// Stream is a lazy, finite sequence of cleaned text fragments. It cannot be restarted.
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	err := s.Err()
//
// Close may be called at any time to stop early; it releases the backend connection.
type Stream struct {
	next      func() (fragment string, done bool, err error)
	closeFn   func() error
	filter    chunkFilter
	text      string
	err       error
	finished  bool
	closeOnce sync.Once
}

// NewStream wraps a fragment source. next reports done=true once the sequence ends.
func NewStream(next func() (string, bool, error), closeFn func() error) *Stream {
	return &Stream{next: next, closeFn: closeFn}
}

func (s *Stream) Next() bool {
	for !s.finished {
		fragment, done, err := s.next()
		if err != nil {
			s.err = err
			s.finish()
			return false
		}
		if cleaned := s.filter.apply(fragment); cleaned != "" {
			s.text = cleaned
			if done {
				s.finish()
			}
			return true
		}
		if done {
			s.finish()
		}
	}
	s.text = ""
	return false
}

func (s *Stream) Text() string {
	return s.text
}

func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.finished = true
		if s.closeFn != nil {
			err = s.closeFn()
		}
	})
	return err
}

func (s *Stream) finish() {
	s.finished = true
	_ = s.Close()
}

var (
	reasoningOpen  = regexp.MustCompile(`<think(?:ing)?>`)
	reasoningClose = regexp.MustCompile(`</think(?:ing)?>`)
	// An opening fence split from its language tag, e.g. "```" then "tsx".
	openFenceNoNewline = regexp.MustCompile("^\\s*```[A-Za-z0-9_+.-]*[ \t]*$")
	fenceInfo          = regexp.MustCompile("^[A-Za-z0-9_+.-]*[ \t]*(?:\r?\n)?")
)

// chunkFilter drops reasoning text that spans several fragments and an opening
// code fence whose line arrives in pieces.
type chunkFilter struct {
	inReasoning bool
	inFenceLine bool
	emitted     bool
}

func (f *chunkFilter) apply(fragment string) string {
	out := f.stripReasoning(fragment)
	if !f.emitted {
		out = f.stripOpeningFence(out)
	}
	out = CleanChunk(out)
	if out != "" {
		f.emitted = true
	}
	return out
}

func (f *chunkFilter) stripReasoning(fragment string) string {
	var out string
	rest := fragment
	for rest != "" {
		if f.inReasoning {
			loc := reasoningClose.FindStringIndex(rest)
			if loc == nil {
				return out
			}
			rest = rest[loc[1]:]
			f.inReasoning = false
			continue
		}
		loc := reasoningOpen.FindStringIndex(rest)
		if loc == nil {
			out += rest
			break
		}
		out += rest[:loc[0]]
		rest = rest[loc[1]:]
		f.inReasoning = true
	}
	return out
}

// stripOpeningFence runs until the first fragment is emitted. It swallows the rest of
// a fence line ("tsx", "\n") and whitespace that precedes the code.
func (f *chunkFilter) stripOpeningFence(text string) string {
	if f.inFenceLine {
		loc := fenceInfo.FindStringIndex(text)
		consumed, rest := text[:loc[1]], text[loc[1]:]
		if strings.Contains(consumed, "\n") || rest != "" {
			f.inFenceLine = false
		}
		text = rest
	} else if openFenceNoNewline.MatchString(text) {
		f.inFenceLine = true
		return ""
	}
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return text
}
