package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	wsclient "github.com/dohr-michael/autodev/clients/ws"
	"github.com/dohr-michael/autodev/internal/config"
	wsprotocol "github.com/dohr-michael/autodev/internal/gateway/ws"
)

// NewAskCommand returns the ask subcommand.
func NewAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a prompt to a running gateway and print the response",
		ArgsUsage: "<prompt>",
		Flags: []cli.Flag{
			gatewayFlag(),
			&cli.StringFlag{
				Name:    "agent",
				Aliases: []string{"a"},
				Usage:   "Agent to address (empty = default agent)",
			},
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Session ID to resume (empty = one session per connection)",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Response timeout in seconds",
				Value: 120,
			},
		},
		Action: runAsk,
	}
}

func gatewayFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "gateway",
		Usage: "Gateway WebSocket URL (default: from config)",
	}
}

// gatewayURL returns --gateway, or the WebSocket endpoint of the configured gateway.
func gatewayURL(cmd *cli.Command, cfg *config.Config) string {
	if u := cmd.String("gateway"); u != "" {
		return u
	}
	return "ws://" + net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port)) + "/api/ws"
}

func runAsk(ctx context.Context, cmd *cli.Command) error {
	prompt, err := promptFrom(cmd.Args().Slice())
	if err != nil {
		return err
	}
	if prompt == "" {
		return fmt.Errorf("usage: autodev ask <prompt>")
	}

	cfg, _ := loadConfig(cmd)
	setupLogging(cmd, cfg, os.Stderr)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cmd.Int("timeout"))*time.Second)
	defer cancel()

	client, err := wsclient.Dial(ctx, gatewayURL(cmd, cfg))
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer client.Close()

	_, err = client.Chat(ctx, wsprotocol.ChatParams{
		Agent:     cmd.String("agent"),
		Prompt:    prompt,
		SessionID: cmd.String("session"),
	}, newConsoleSink())
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timeout waiting for response")
	}
	return err
}
