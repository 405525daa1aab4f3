package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/autodev/clients/tui"
	"github.com/dohr-michael/autodev/internal/agent"
	"github.com/dohr-michael/autodev/internal/config"
)

// NewChatCommand returns the chat subcommand.
func NewChatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Chat with an agent in this terminal",
		ArgsUsage: "[prompt]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "agent",
				Aliases: []string{"a"},
				Usage:   "Agent to address (empty = default agent)",
			},
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Session ID to resume (empty = new session)",
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Print one response instead of opening the chat panel",
			},
		},
		Action: runChat,
	}
}

func runChat(ctx context.Context, cmd *cli.Command) error {
	prompt, err := promptFrom(cmd.Args().Slice())
	if err != nil {
		return err
	}
	interactive := !cmd.Bool("plain") && isTerminal(os.Stdin) && isTerminal(os.Stdout)

	// The panel owns the screen; logs go to a file instead.
	logTo := os.Stderr
	if interactive {
		f, err := openChatLog()
		if err != nil {
			return err
		}
		defer f.Close()
		logTo = f
	}

	a, err := newApp(cmd, logTo)
	if err != nil {
		return err
	}
	defer a.Close()

	ac, err := a.agents.Resolve(cmd.String("agent"))
	if err != nil {
		return err
	}

	sessionID := cmd.String("session")
	if sessionID == "" {
		s, err := a.store.Create()
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		sessionID = s.ID
	}

	chat := func(ctx context.Context, prompt string, sink agent.MessageSink) (agent.Result, error) {
		return a.processor.HandleChat(ctx, agent.ChatRequest{
			Prompt:    prompt,
			Agent:     ac.Name,
			SessionID: sessionID,
		}, sink)
	}

	if interactive {
		return tui.Run(ctx, tui.Options{
			Title:  fmt.Sprintf("%s · %s · %s", ac.Name, ac.Mode, sessionID),
			Chat:   chat,
			Prompt: prompt,
		})
	}

	if prompt == "" {
		return fmt.Errorf("usage: autodev chat --plain <prompt>")
	}
	if _, err := chat(ctx, prompt, newConsoleSink()); err != nil {
		return err
	}
	if cmd.String("session") == "" {
		fmt.Fprintf(os.Stderr, "session: %s\n", sessionID)
	}
	return nil
}

func openChatLog() (*os.File, error) {
	dir := config.LogsPath()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "chat.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}
	return f, nil
}
