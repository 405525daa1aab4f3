// Package tui is the interactive chat panel: a scrolling transcript, an
// input box and a spinner standing in for the progress bar.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dohr-michael/autodev/clients/render"
	"github.com/dohr-michael/autodev/internal/agent"
)

// ChatFunc runs one chat turn, rendering into sink.
type ChatFunc func(ctx context.Context, prompt string, sink agent.MessageSink) (agent.Result, error)

// Options configure the panel.
type Options struct {
	Title  string // shown in the status bar, usually the agent name
	Chat   ChatFunc
	Prompt string // sent as the first turn when non-empty
}

type entry struct {
	id       int
	user     bool
	text     string
	markdown bool
	view     string // agent of an embedded view
	isView   bool
	isError  bool
}

// Model is the root bubbletea model.
type Model struct {
	opts Options
	sink *ProgramSink

	entries  []entry
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	busy     bool
	progress bool
	cancel   context.CancelFunc
	width    int
	height   int
}

// NewModel creates the panel. sink must deliver to the program running it.
func NewModel(opts Options, sink *ProgramSink) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask the agent..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.CharLimit = 0
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(render.ColorAssistant)

	vp := viewport.New(80, 20)
	vp.KeyMap = viewport.KeyMap{}

	return Model{
		opts:     opts,
		sink:     sink,
		viewport: vp,
		input:    ta,
		spinner:  sp,
	}
}

// Init focuses the input and sends the initial prompt, if any.
func (m Model) Init() tea.Cmd {
	if m.opts.Prompt == "" {
		return textarea.Blink
	}
	p := m.opts.Prompt
	return func() tea.Msg { return submitMsg{prompt: p} }
}

type submitMsg struct{ prompt string }

// Update processes all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.busy && m.cancel != nil {
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		case "esc":
			return m, tea.Quit
		case "pgup":
			m.viewport.PageUp()
			return m, nil
		case "pgdown":
			m.viewport.PageDown()
			return m, nil
		case "enter":
			if m.busy {
				return m, nil
			}
			prompt := strings.TrimSpace(m.input.Value())
			if prompt == "" {
				return m, nil
			}
			m.input.Reset()
			return m.start(prompt)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case submitMsg:
		return m.start(msg.prompt)

	case spinner.TickMsg:
		if !m.progress {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case addMessageMsg:
		m.entries = append(m.entries, entry{id: msg.id, user: msg.isUser, text: msg.text})
	case appendMsg:
		if e := m.find(msg.id); e != nil {
			e.text += msg.delta
		}
	case updateMsg:
		if e := m.find(msg.id); e != nil {
			e.text = msg.text
		}
	case rerenderMsg:
		if e := m.find(msg.id); e != nil {
			e.markdown = true
		}
	case removeLastMsg:
		if n := len(m.entries); n > 0 {
			m.entries = m.entries[:n-1]
		}
	case setInputMsg:
		m.input.SetValue(msg.text)
	case cursorStartMsg:
		for i := 0; i < m.input.LineCount(); i++ {
			m.input.CursorUp()
		}
		m.input.CursorStart()
	case hideProgressMsg:
		m.progress = false
	case updateUIMsg:
		m.viewport.GotoBottom()
	case embeddedViewMsg:
		m.entries = append(m.entries, entry{isView: true, view: msg.vc.Agent, text: msg.text})
	case turnDoneMsg:
		m.busy, m.progress, m.cancel = false, false, nil
		if msg.err != nil && !errors.Is(msg.err, agent.ErrCancelled) {
			m.entries = append(m.entries, entry{isError: true, text: msg.err.Error()})
		}
		m.input.Focus()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.refresh()
	return m, nil
}

func (m Model) start(prompt string) (tea.Model, tea.Cmd) {
	if m.opts.Chat == nil {
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.busy, m.progress, m.cancel = true, true, cancel

	chat, sink := m.opts.Chat, m.sink
	run := func() tea.Msg {
		defer cancel()
		res, err := chat(ctx, prompt, sink)
		return turnDoneMsg{res: res, err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

func (m *Model) find(id int) *entry {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].id == id && !m.entries[i].isView {
			return &m.entries[i]
		}
	}
	return nil
}

func (m *Model) layout() {
	inputHeight := m.input.Height() + 1
	statusHeight := 1
	vh := m.height - inputHeight - statusHeight - 1
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = vh
	m.input.SetWidth(m.width)
}

func (m *Model) refresh() {
	width := m.viewport.Width
	var parts []string
	for _, e := range m.entries {
		parts = append(parts, renderEntry(e, width))
	}
	m.viewport.SetContent(strings.Join(parts, "\n\n"))
	m.viewport.GotoBottom()
}

func renderEntry(e entry, width int) string {
	switch {
	case e.isError:
		return render.ErrorStyle.Render("error ›") + " " + e.text
	case e.isView:
		title := render.MutedStyle.Render("view · " + e.view)
		return title + "\n" + render.ViewBorderStyle.Render(e.text)
	case e.user:
		return render.UserStyle.Render("you ›") + " " + e.text
	case e.markdown:
		return render.AssistantStyle.Render("agent ›") + "\n" + render.Markdown(e.text, width)
	default:
		return render.AssistantStyle.Render("agent ›") + " " + e.text
	}
}

// View renders transcript, progress line, input and status bar.
func (m Model) View() string {
	progress := ""
	if m.progress {
		progress = m.spinner.View() + render.MutedStyle.Render(" thinking…")
	}
	state := "ready"
	if m.busy {
		state = "running · ctrl+c to cancel"
	}
	status := render.StatusBarStyle.Width(m.width).Render(fmt.Sprintf("%s · %s", m.opts.Title, state))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		progress,
		m.input.View(),
		status,
	)
}

// Transcript returns the plain text of every entry, oldest first.
func (m Model) Transcript() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.text)
	}
	return out
}
