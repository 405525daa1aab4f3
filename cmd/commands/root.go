package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/autodev/internal/config"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "autodev",
		Usage:   "Chat with custom coding agents and run the scripts they write",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
				Sources: cli.EnvVars("AUTODEV_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("AUTODEV_DEBUG"),
			},
		},
		Commands: []*cli.Command{
			NewChatCommand(),
			NewAskCommand(),
			NewRenameCommand(),
			NewServeCommand(),
			NewAgentsCommand(),
			NewSessionsCommand(),
			NewStatusCommand(),
			NewMCPServeCommand(),
		},
	}
}
