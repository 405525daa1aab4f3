package agent

import (
	"fmt"
	"strings"
)

// ResponseMode selects how a token stream is consumed and presented.
type ResponseMode int

const (
	// ModeDirect drains silently, then replaces a provisional message with the final text.
	ModeDirect ResponseMode = iota
	// ModeStreamed renders fragments into a live message as they arrive.
	ModeStreamed
	// ModeChunkedCapture replaces the input buffer with the raw final text.
	ModeChunkedCapture
	// ModeContinuous is declared but has no consumption strategy.
	ModeContinuous
	// ModeEmbeddedView forwards the final text to an embedded renderer.
	ModeEmbeddedView
	// ModeScriptExtraction streams like ModeStreamed and hands the whole text to the interpreter.
	ModeScriptExtraction
)

var modeNames = [...]string{
	ModeDirect:           "Direct",
	ModeStreamed:         "Streamed",
	ModeChunkedCapture:   "ChunkedCapture",
	ModeContinuous:       "Continuous",
	ModeEmbeddedView:     "EmbeddedView",
	ModeScriptExtraction: "ScriptExtraction",
}

// modeAliases maps lower-cased names, including the IDE plugin's
// historical names, to modes.
var modeAliases = map[string]ResponseMode{
	"direct":           ModeDirect,
	"streamed":         ModeStreamed,
	"stream":           ModeStreamed,
	"chunkedcapture":   ModeChunkedCapture,
	"textchunk":        ModeChunkedCapture,
	"continuous":       ModeContinuous,
	"flow":             ModeContinuous,
	"embeddedview":     ModeEmbeddedView,
	"webview":          ModeEmbeddedView,
	"scriptextraction": ModeScriptExtraction,
	"devins":           ModeScriptExtraction,
}

func (m ResponseMode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("ResponseMode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode resolves a mode name or alias, case-insensitively.
// An empty name yields ModeDirect.
func ParseMode(s string) (ResponseMode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return ModeDirect, nil
	}
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	if m, ok := modeAliases[key]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

func (m ResponseMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ResponseMode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

