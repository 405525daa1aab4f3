package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/autodev/internal/config"
	"github.com/dohr-michael/autodev/internal/gateway"
	"github.com/dohr-michael/autodev/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show gateway status and token usage",
		Action: runStatus,
	}
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	cfg, _ := loadConfig(cmd)
	setupLogging(cmd, cfg, os.Stderr)

	status, hb, err := heartbeat.Check(config.HeartbeatPath(), 2*heartbeat.DefaultInterval)
	if err != nil {
		return fmt.Errorf("check heartbeat: %w", err)
	}

	switch status {
	case heartbeat.StatusDead:
		if hb != nil {
			fmt.Printf("Gateway: CRASHED (PID %d gone, last heartbeat %s)\n",
				hb.PID, hb.Timestamp.Format(time.DateTime))
			return nil
		}
		fmt.Println("Gateway: NOT RUNNING")
		return nil
	case heartbeat.StatusStale:
		fmt.Printf("Gateway: STALE (PID %d, last heartbeat %s ago)\n",
			hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
		return nil
	}

	h, err := fetchHealth(ctx, hb.Addr)
	if err != nil {
		fmt.Printf("Gateway: UNREACHABLE (PID %d on %s): %v\n", hb.PID, hb.Addr, err)
		return nil
	}

	fmt.Printf("Gateway: %s (PID %d on %s, uptime %s, %d clients)\n",
		h.Status, hb.PID, hb.Addr, h.Uptime, h.Clients)

	providers := make([]string, 0, len(h.Usage))
	for name := range h.Usage {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	for _, name := range providers {
		u := h.Usage[name]
		fmt.Printf("  %-10s %d calls, %d errors, %d in / %d out, avg %s\n",
			name, u.Calls, u.Errors, u.Input, u.Output, u.MeanLatency().Round(time.Millisecond))
	}
	return nil
}

func fetchHealth(ctx context.Context, addr string) (gateway.Health, error) {
	var h gateway.Health

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/api/health", nil)
	if err != nil {
		return h, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return h, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return h, fmt.Errorf("health check: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return h, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}
