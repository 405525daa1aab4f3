package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"

	autodevmcp "github.com/dohr-michael/autodev/internal/mcp"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose agents and rename suggestions as MCP tools",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "tool",
				UsageText: "Only expose this tool (ask_agent or suggest_names)",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Serve streamable HTTP on this address instead of stdio",
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// Over stdio, stdout belongs to the protocol.
	a, err := newApp(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	if !cmd.Bool("debug") {
		a.level.Set(slog.LevelWarn)
	}

	server := autodevmcp.NewMCPServer(autodevmcp.Config{
		Chat:    a.processor,
		Rename:  a.renamer,
		Agents:  a.agentNames(),
		Version: Version,
		Filter:  cmd.StringArg("tool"),
	})

	addr := cmd.String("listen")
	if addr == "" {
		slog.Debug("mcp server on stdio", "agents", a.agentNames())
		return server.Run(ctx, &mcpsdk.StdioTransport{})
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return server }, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()
	fmt.Fprintf(os.Stderr, "mcp: streamable HTTP on %s\n", addr)
	if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
