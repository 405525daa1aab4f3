// Package parser decodes structured units (lines, list suggestions, fenced
// code blocks) out of model output while it is still streaming.
package parser

import "strings"

// RemoveSurrounding strips one layer of delim from both ends of s. The text is
// returned unchanged unless it both starts and ends with delim and is long
// enough for the two to not overlap.
func RemoveSurrounding(s, delim string) string {
	if delim == "" || len(s) < 2*len(delim) {
		return s
	}
	if strings.HasPrefix(s, delim) && strings.HasSuffix(s, delim) {
		return s[len(delim) : len(s)-len(delim)]
	}
	return s
}
