// Package render holds the terminal styles and markdown rendering shared by
// the console and TUI sinks.
package render

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const defaultWidth = 80

// Palette entries adapt to light and dark terminals.
var (
	ColorUser      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"}
	ColorAssistant = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#C4B5FD"}
	ColorView      = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#6EE7B7"}
	ColorError     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#57534E", Dark: "#A8A29E"}
	colorBar       = lipgloss.AdaptiveColor{Light: "#E7E5E4", Dark: "#292524"}
	colorBarText   = lipgloss.AdaptiveColor{Light: "#292524", Dark: "#E7E5E4"}
	colorFrame     = lipgloss.AdaptiveColor{Light: "#D6D3D1", Dark: "#44403C"}
)

func bold(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

func framed(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c).Padding(0, 1)
}

var (
	UserStyle        = bold(ColorUser)
	AssistantStyle   = bold(ColorAssistant)
	ErrorStyle       = bold(ColorError)
	MutedStyle       = lipgloss.NewStyle().Foreground(ColorMuted)
	StatusBarStyle   = lipgloss.NewStyle().Background(colorBar).Foreground(colorBarText).Padding(0, 1)
	ViewBorderStyle  = framed(ColorView)
	InputBorderStyle = framed(colorFrame)
)

// renderers caches one glamour renderer per wrap width; building one parses
// a full style sheet.
var renderers sync.Map // int -> *glamour.TermRenderer (nil when construction failed)

func renderer(width int) *glamour.TermRenderer {
	if r, ok := renderers.Load(width); ok {
		return r.(*glamour.TermRenderer)
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width), glamour.WithEmoji()}
	if os.Getenv("GLAMOUR_STYLE") != "" {
		opts = append(opts, glamour.WithEnvironmentConfig())
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		r = nil
	}
	actual, _ := renderers.LoadOrStore(width, r)
	return actual.(*glamour.TermRenderer)
}

// Markdown renders content wrapped to width columns. Content that cannot be
// rendered is returned unchanged.
func Markdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	if width <= 0 {
		width = defaultWidth
	}
	r := renderer(width)
	if r == nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
