package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dohr-michael/autodev/clients/console"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// newConsoleSink renders agent output on stdout, with cursor control and
// markdown only when stdout is a terminal.
func newConsoleSink() *console.Sink {
	tty := isTerminal(os.Stdout)
	width := 80
	if tty {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	return console.New(os.Stdout, console.Options{TTY: tty, Markdown: tty, Width: width})
}

// promptFrom joins the positional arguments, or reads stdin when there are
// none and stdin is not a terminal.
func promptFrom(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if isTerminal(os.Stdin) {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
