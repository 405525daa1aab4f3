package parser

import "strings"

// CodeBlock is the content of a fenced block together with its info tag.
type CodeBlock struct {
	Language string
	Text     string
}

// ParseCode returns the first complete fenced block in text. Backtick and tilde
// fences of three or more characters are recognized; the closing fence must
// use the same character and be at least as long as the opening one. Lines
// between the fences are returned untouched.
func ParseCode(text string) (CodeBlock, bool) {
	lines := strings.Split(text, "\n")

	for i := 0; i < len(lines); i++ {
		marker, info, ok := openingFence(lines[i])
		if !ok {
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			if isClosingFence(lines[j], marker) {
				return CodeBlock{
					Language: infoTag(info),
					Text:     strings.Join(lines[i+1:j], "\n"),
				}, true
			}
		}
		// An unterminated fence swallows the rest of the text.
		return CodeBlock{}, false
	}
	return CodeBlock{}, false
}

func openingFence(line string) (marker, info string, ok bool) {
	trimmed := strings.TrimRight(strings.TrimLeft(line, " \t"), "\r")
	n := fenceLen(trimmed)
	if n < 3 {
		return "", "", false
	}
	marker = trimmed[:n]
	info = strings.TrimSpace(trimmed[n:])
	// Backtick info strings may not contain backticks.
	if marker[0] == '`' && strings.ContainsRune(info, '`') {
		return "", "", false
	}
	return marker, info, true
}

func isClosingFence(line, marker string) bool {
	trimmed := strings.TrimSpace(line)
	n := fenceLen(trimmed)
	return n >= len(marker) && n == len(trimmed) && trimmed[0] == marker[0]
}

func fenceLen(s string) int {
	if s == "" || (s[0] != '`' && s[0] != '~') {
		return 0
	}
	n := 0
	for n < len(s) && s[n] == s[0] {
		n++
	}
	return n
}

func infoTag(info string) string {
	if fields := strings.Fields(info); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
