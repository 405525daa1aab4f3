package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the panel and blocks until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	sink := NewProgramSink(nil)
	p := tea.NewProgram(NewModel(opts, sink), tea.WithAltScreen(), tea.WithContext(ctx))
	sink.send = p.Send

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
