package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 300 * time.Millisecond

// Reloader holds the live configuration of a long-running process. A reload
// re-reads .env (overriding), re-parses the config file and hands the result
// to every listener. A failed reload keeps the previous config.
type Reloader struct {
	configPath string
	dotenvPath string
	debounce   time.Duration

	current   atomic.Pointer[Config]
	mu        sync.Mutex
	listeners []func(*Config)
}

func NewReloader(configPath, dotenvPath string, initial *Config) *Reloader {
	r := &Reloader{configPath: configPath, dotenvPath: dotenvPath, debounce: reloadDebounce}
	r.current.Store(initial)
	return r
}

// Current returns the last successfully loaded config.
func (r *Reloader) Current() *Config { return r.current.Load() }

// OnReload registers fn. Listeners run in registration order, on the
// reloading goroutine.
func (r *Reloader) OnReload(fn func(*Config)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Reloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ReloadDotenv(r.dotenvPath); err != nil {
		return fmt.Errorf("reload dotenv: %w", err)
	}
	cfg, err := Load(r.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	r.current.Store(cfg)
	for _, fn := range r.listeners {
		fn(cfg)
	}
	return nil
}

// Watch reloads on SIGHUP and whenever the config or .env file changes on
// disk, until ctx is done. Bursts of file events within the debounce window
// cause a single reload. If the file watcher cannot start, only SIGHUP is
// honoured.
func (r *Reloader) Watch(ctx context.Context) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	defer signal.Stop(sig)

	var (
		changes <-chan fsnotify.Event
		errs    <-chan error
	)
	if w, err := r.newWatcher(); err != nil {
		slog.Warn("config file watch disabled", "error", err)
	} else {
		defer w.Close()
		changes, errs = w.Events, w.Errors
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			r.reload("signal")
		case ev, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if !r.watches(ev.Name) || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("config file watch", "error", err)
		case <-fire:
			fire = nil
			r.reload("file change")
		}
	}
}

func (r *Reloader) reload(trigger string) {
	if err := r.Reload(); err != nil {
		slog.Warn("config reload failed, keeping previous", "trigger", trigger, "error", err)
		return
	}
	slog.Info("config reloaded", "trigger", trigger, "path", r.configPath)
}

// newWatcher watches the parent directories rather than the files, so
// editors that save by rename are still seen.
func (r *Reloader) newWatcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, p := range []string{r.configPath, r.dotenvPath} {
		if p == "" {
			continue
		}
		dir := filepath.Dir(filepath.Clean(p))
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := w.Add(dir); err != nil {
			slog.Debug("config watch: skip dir", "dir", dir, "error", err)
		}
	}
	return w, nil
}

func (r *Reloader) watches(name string) bool {
	name = filepath.Clean(name)
	return (r.configPath != "" && name == filepath.Clean(r.configPath)) ||
		(r.dotenvPath != "" && name == filepath.Clean(r.dotenvPath))
}
