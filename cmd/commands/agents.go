package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/autodev/internal/agent"
	"github.com/dohr-michael/autodev/internal/models"
)

// NewAgentsCommand returns the agents subcommand.
func NewAgentsCommand() *cli.Command {
	return &cli.Command{
		Name:   "agents",
		Usage:  "List the configured agents",
		Action: runAgents,
	}
}

func runAgents(_ context.Context, cmd *cli.Command) error {
	cfg, _ := loadConfig(cmd)
	setupLogging(cmd, cfg, os.Stderr)

	reg, err := agent.NewRegistryFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("load agents: %w", err)
	}
	list := reg.List()
	if len(list) == 0 {
		fmt.Printf("No agents configured; chat uses %q. Add YAML definitions to %s.\n", fallbackAgent, cfg.Agents.Dir)
		return nil
	}

	chatProvider := models.NewRegistry(cfg.Models).NameForRole(models.RoleChat)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODE\tPROVIDER\tLANGUAGE\tDESCRIPTION")
	for _, ac := range list {
		provider := ac.Provider
		if provider == "" {
			provider = chatProvider
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			ac.Name,
			ac.Mode,
			orDash(provider),
			orDash(ac.Language),
			orDash(ac.Description),
		)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
