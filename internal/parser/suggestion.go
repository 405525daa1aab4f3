package parser

import (
	"regexp"
	"strings"
)

// ordinalPrefixRe matches a leading list marker such as "1." or "12.".
var ordinalPrefixRe = regexp.MustCompile(`^\d+\.`)

// CandidateSink receives suggestions one at a time, in order, without knowing
// how many will follow.
type CandidateSink interface {
	AddCandidate(text string)
}

// CandidateFunc adapts a function to CandidateSink.
type CandidateFunc func(text string)

func (f CandidateFunc) AddCandidate(text string) { f(text) }

// CleanSuggestion turns one line of a numbered answer into a candidate: the
// ordinal marker is dropped, whitespace trimmed, then one layer of backticks
// removed. The second result is false when nothing is left.
func CleanSuggestion(line string) (string, bool) {
	s := ordinalPrefixRe.ReplaceAllString(line, "")
	s = strings.TrimSpace(s)
	s = RemoveSurrounding(s, "`")
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// SuggestionExtractor pushes cleaned suggestions to a sink as soon as the line
// carrying them is complete.
type SuggestionExtractor struct {
	parser   LineParser
	sink     CandidateSink
	emitted  int
	finished bool
}

// NewSuggestionExtractor creates an extractor writing to sink.
func NewSuggestionExtractor(sink CandidateSink) *SuggestionExtractor {
	return &SuggestionExtractor{sink: sink}
}

// Feed processes one chunk and returns how many candidates it produced.
// Chunks fed after Finish are ignored.
func (e *SuggestionExtractor) Feed(chunk string) int {
	if e.finished {
		return 0
	}
	n := 0
	for _, line := range e.parser.Feed(chunk) {
		if e.emit(line) {
			n++
		}
	}
	return n
}

// Finish marks the true end of the stream and emits the trailing fragment as
// the last candidate. Only the first call has an effect, so a stream ending
// exactly on a line boundary never re-emits its last line.
func (e *SuggestionExtractor) Finish() int {
	if e.finished {
		return 0
	}
	e.finished = true
	if e.emit(e.parser.Flush()) {
		return 1
	}
	return 0
}

// Emitted returns the number of candidates pushed so far.
func (e *SuggestionExtractor) Emitted() int {
	return e.emitted
}

func (e *SuggestionExtractor) emit(line string) bool {
	s, ok := CleanSuggestion(line)
	if !ok {
		return false
	}
	e.sink.AddCandidate(s)
	e.emitted++
	return true
}
