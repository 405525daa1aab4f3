package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	wsclient "github.com/dohr-michael/autodev/clients/ws"
	wsprotocol "github.com/dohr-michael/autodev/internal/gateway/ws"
	"github.com/dohr-michael/autodev/internal/parser"
	"github.com/dohr-michael/autodev/internal/rename"
)

// NewRenameCommand returns the rename subcommand.
func NewRenameCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Suggest better names for an identifier",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "language",
				Aliases: []string{"l"},
				Usage:   "Language of the surrounding code",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "File holding the surrounding code (- = stdin)",
			},
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Ask a running gateway instead of calling the model directly",
			},
		},
		Action: runRename,
	}
}

func runRename(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: autodev rename <name> [--file code.go]")
	}
	code, err := readCode(cmd.String("file"))
	if err != nil {
		return err
	}

	emit := func(candidate string) { fmt.Fprintln(os.Stdout, candidate) }

	var n int
	if cmd.String("gateway") != "" {
		cfg, _ := loadConfig(cmd)
		setupLogging(cmd, cfg, os.Stderr)
		client, err := wsclient.Dial(ctx, gatewayURL(cmd, cfg))
		if err != nil {
			return fmt.Errorf("connect to gateway: %w", err)
		}
		defer client.Close()
		n, err = client.Rename(ctx, wsprotocol.RenameParams{
			Name:     name,
			Language: cmd.String("language"),
			Code:     code,
		}, emit)
		if err != nil {
			return err
		}
	} else {
		a, err := newApp(cmd, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()
		n, err = a.renamer.Suggest(ctx, rename.Request{
			Name:     name,
			Language: cmd.String("language"),
			Code:     code,
		}, parser.CandidateFunc(emit))
		if errors.Is(err, rename.ErrDisabled) {
			return fmt.Errorf("%w: set rename.enabled in %s", err, a.configPath)
		}
		if err != nil {
			return err
		}
	}

	if n == 0 {
		fmt.Fprintln(os.Stderr, "no suggestions")
	}
	return nil
}

func readCode(path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read code: %w", err)
	}
	return string(data), nil
}
