package parser

import "strings"

// LineSeparator terminates a logical line in model output.
const LineSeparator = '\n'

// LineParser splits a chunked text stream into complete lines. Text after the
// last separator is held until a later Feed completes it or Flush releases it.
//
// The zero value is ready to use. A LineParser is not safe for concurrent use.
type LineParser struct {
	pending strings.Builder
}

// Feed appends chunk to the buffer and returns every line completed by it, in
// order, without their separators.
func (p *LineParser) Feed(chunk string) []string {
	if chunk == "" {
		return nil
	}

	var lines []string
	for {
		i := strings.IndexByte(chunk, LineSeparator)
		if i < 0 {
			break
		}
		p.pending.WriteString(chunk[:i])
		lines = append(lines, p.pending.String())
		p.pending.Reset()
		chunk = chunk[i+1:]
	}
	p.pending.WriteString(chunk)
	return lines
}

// Pending returns the incomplete trailing fragment without consuming it.
func (p *LineParser) Pending() string {
	return p.pending.String()
}

// Flush returns the trailing fragment as the final line, possibly empty, and
// resets the parser.
func (p *LineParser) Flush() string {
	rest := p.pending.String()
	p.pending.Reset()
	return rest
}
