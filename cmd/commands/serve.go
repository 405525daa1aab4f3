package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dohr-michael/autodev/internal/config"
	"github.com/dohr-michael/autodev/internal/gateway"
	"github.com/dohr-michael/autodev/internal/gateway/ws"
	"github.com/dohr-michael/autodev/internal/heartbeat"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"gateway"},
		Usage:   "Start the gateway server for IDE and remote clients",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	// CLI flags override config
	host, port := a.cfg.Gateway.Host, a.cfg.Gateway.Port
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	server := gateway.NewServer(gateway.ServerConfig{
		Bus:     a.bus,
		Store:   a.store,
		Agents:  a.agents,
		Tracker: a.tracker,
		Costs:   a.costs,
		Hub: ws.HubConfig{
			Chat:   a.processor,
			Rename: a.renamer,
		},
		Host: host,
		Port: port,
	})

	if err := os.MkdirAll(config.AutodevPath(), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	beat := heartbeat.NewWriter(config.HeartbeatPath(), net.JoinHostPort(host, strconv.Itoa(port)), Version)

	reloader := config.NewReloader(a.configPath, config.DotenvPath(), a.cfg)
	reloader.OnReload(a.reload)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error { return reloader.Watch(ctx) })
	g.Go(func() error { return beat.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	slog.Info("gateway started", "host", host, "port", port, "agents", len(a.agents.List()))
	return g.Wait()
}
