package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dohr-michael/autodev/cmd/commands"
	"github.com/dohr-michael/autodev/internal/config"
)

func main() {
	if err := config.LoadDotenv(config.DotenvPath()); err != nil {
		slog.Warn("load .env", "path", config.DotenvPath(), "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := commands.NewRootCommand().Run(ctx, os.Args)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		os.Exit(130)
	default:
		slog.Error("autodev", "error", err)
		os.Exit(1)
	}
}
