// Package interpreter runs scripts extracted from agent responses through
// processors registered per script language.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dohr-michael/autodev/internal/config"
	"github.com/dohr-michael/autodev/internal/events"
)

// ErrNoProcessor is returned when no processor handles a script language.
var ErrNoProcessor = errors.New("no processor for script language")

// ScriptContext is the input of one script execution.
type ScriptContext struct {
	Agent     string `json:"agent"`
	Language  string `json:"language"`
	Script    string `json:"script"`
	SessionID string `json:"session_id,omitempty"`
}

// Processor executes a script and returns its output.
type Processor interface {
	Name() string
	Execute(ctx context.Context, sc ScriptContext) (string, error)
}

// Registry maps script languages (case-insensitive) to processors.
type Registry struct {
	mu         sync.RWMutex
	processors map[string][]Processor
	pub        events.Publisher
}

// NewRegistry creates an empty registry publishing results on bus (may be nil).
func NewRegistry(bus *events.Bus) *Registry {
	return &Registry{
		processors: make(map[string][]Processor),
		pub:        events.NewPublisher(bus, events.SourceInterpreter),
	}
}

// shellLanguages are fence tags always routed to the shell processor.
var shellLanguages = []string{"sh", "bash", "shell"}

// NewRegistryFromConfig registers the processors named in cfg.Processors
// under cfg.Language. Names are expected in the lower-case form config.Parse
// produces. "events" publishes scripts on the bus; "shell" runs them
// with the embedded POSIX shell, which also serves sh/bash fences.
func NewRegistryFromConfig(cfg config.InterpreterConfig, bus *events.Bus) (*Registry, error) {
	r := NewRegistry(bus)
	for _, name := range cfg.Processors {
		switch name {
		case "events":
			r.Register(cfg.Language, NewBusProcessor(bus))
		case "shell":
			sp := NewShellProcessor(ShellConfig{
				WorkDir:         cfg.WorkDir,
				Timeout:         cfg.Timeout.Duration(),
				AllowedCommands: cfg.AllowedCommands,
			})
			r.Register(cfg.Language, sp)
			for _, lang := range shellLanguages {
				if !strings.EqualFold(lang, cfg.Language) {
					r.Register(lang, sp)
				}
			}
		default:
			return nil, fmt.Errorf("unknown interpreter processor %q", name)
		}
	}
	return r, nil
}

// Register appends p to the processors for language.
func (r *Registry) Register(language string, p Processor) {
	key := strings.ToLower(language)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[key] = append(r.processors[key], p)
}

// Languages returns how many processors serve each language.
func (r *Registry) Languages() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.processors))
	for lang, ps := range r.processors {
		out[lang] = len(ps)
	}
	return out
}

// Execute runs every processor registered for sc.Language, in registration
// order. Processor failures are joined; the remaining processors still run.
func (r *Registry) Execute(ctx context.Context, sc ScriptContext) error {
	r.mu.RLock()
	procs := append([]Processor(nil), r.processors[strings.ToLower(sc.Language)]...)
	r.mu.RUnlock()

	if len(procs) == 0 {
		return fmt.Errorf("%w: %q", ErrNoProcessor, sc.Language)
	}
	if sc.SessionID != "" {
		ctx = events.ContextWithSessionID(ctx, sc.SessionID)
	}

	var errs []error
	for _, p := range procs {
		start := time.Now()
		out, err := p.Execute(ctx, sc)
		payload := events.ScriptExecutedPayload{
			Agent:     sc.Agent,
			Processor: p.Name(),
			Output:    out,
			Duration:  time.Since(start),
		}
		if err != nil {
			payload.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			slog.Warn("script processor failed", "processor", p.Name(), "agent", sc.Agent, "error", err)
		}
		r.pub.Publish(ctx, payload)
	}
	return errors.Join(errs...)
}
