// Package heartbeat records gateway liveness in a file so local commands can
// find a running gateway and tell a crashed one from a stopped one.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"syscall"
	"time"
)

// Status is the liveness of the gateway as seen from its heartbeat file.
type Status string

const (
	StatusAlive Status = "alive"
	StatusStale Status = "stale"
	StatusDead  Status = "dead"
)

// DefaultInterval is how often Run refreshes the file.
const DefaultInterval = 30 * time.Second

// Heartbeat is the content of the heartbeat file.
type Heartbeat struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"` // host:port the gateway listens on
	Version   string    `json:"version,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// Uptime is the time between start and the last beat.
func (hb Heartbeat) Uptime() time.Duration {
	return hb.Timestamp.Sub(hb.StartedAt).Round(time.Second)
}

// Writer refreshes a heartbeat file while the gateway runs.
type Writer struct {
	path     string
	addr     string
	version  string
	interval time.Duration
	now      func() time.Time
}

// NewWriter creates a writer for the gateway listening on addr.
func NewWriter(path, addr, version string) *Writer {
	return &Writer{
		path:     path,
		addr:     addr,
		version:  version,
		interval: DefaultInterval,
		now:      time.Now,
	}
}

// Run writes the file immediately, then every interval until ctx is done,
// and removes it on return.
func (w *Writer) Run(ctx context.Context) error {
	started := w.now()
	if err := w.write(started); err != nil {
		return err
	}
	defer os.Remove(w.path)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.write(started); err != nil {
				slog.Warn("heartbeat write failed", "path", w.path, "error", err)
			}
		}
	}
}

func (w *Writer) write(started time.Time) error {
	data, err := json.MarshalIndent(Heartbeat{
		PID:       os.Getpid(),
		Addr:      w.addr,
		Version:   w.version,
		StartedAt: started,
		Timestamp: w.now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	// Atomic write: tmp + rename
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return os.Rename(tmp, w.path)
}

// Check reads the heartbeat file at path. A missing file means the gateway
// is not running. A beat older than maxAge is stale while its process still
// exists and dead once it is gone, in which case the last beat is returned
// so callers can report the crash.
func Check(path string, maxAge time.Duration) (Status, *Heartbeat, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return StatusDead, nil, nil
	}
	if err != nil {
		return StatusDead, nil, fmt.Errorf("read heartbeat: %w", err)
	}

	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return StatusDead, nil, fmt.Errorf("decode heartbeat %s: %w", path, err)
	}
	switch {
	case time.Since(hb.Timestamp) <= maxAge:
		return StatusAlive, &hb, nil
	case processExists(hb.PID):
		return StatusStale, &hb, nil
	default:
		return StatusDead, &hb, nil
	}
}

func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, os.ErrPermission)
}
