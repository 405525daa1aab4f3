package storage

import (
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/dohr-michael/autodev/internal/events"
	"github.com/dohr-michael/autodev/internal/sessions"
)

// ProviderUsage aggregates the model calls made through one provider since
// the process started.
type ProviderUsage struct {
	Calls   int           `json:"calls"`
	Errors  int           `json:"errors,omitempty"`
	Input   int           `json:"input"`
	Output  int           `json:"output"`
	Latency time.Duration `json:"latency_ns"` // summed over successful calls
}

// MeanLatency is the average duration of a successful call.
func (u ProviderUsage) MeanLatency() time.Duration {
	if u.Calls == 0 {
		return 0
	}
	return u.Latency / time.Duration(u.Calls)
}

// CostTracker folds internal.llm.call events into provider totals and, for
// calls bound to a session, into that session's reported token usage.
type CostTracker struct {
	store       sessions.Store
	mu          sync.Mutex
	providers   map[string]ProviderUsage
	unsubscribe func()
}

// NewCostTracker subscribes to LLM call events on bus. With a nil store only
// provider totals are kept.
func NewCostTracker(bus *events.Bus, store sessions.Store) *CostTracker {
	t := &CostTracker{store: store, providers: map[string]ProviderUsage{}}
	t.unsubscribe = bus.Subscribe(t.observe, events.EventLLMCall)
	return t
}

func (t *CostTracker) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}

// Totals returns a copy of the per-provider counters.
func (t *CostTracker) Totals() map[string]ProviderUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.providers)
}

func (t *CostTracker) observe(e events.Event) {
	call, ok := events.GetLLMCallPayload(e)
	if !ok {
		return
	}
	switch call.Phase {
	case "response":
	case "error":
		t.bump(call.Provider, func(u *ProviderUsage) { u.Errors++ })
		return
	default:
		return
	}

	t.bump(call.Provider, func(u *ProviderUsage) {
		u.Calls++
		u.Input += call.TokensInput
		u.Output += call.TokensOutput
		u.Latency += call.Duration
	})

	if t.store == nil || e.SessionID == "" || call.TokensInput+call.TokensOutput == 0 {
		return
	}
	if _, err := t.store.Update(e.SessionID, func(s *sessions.Session) {
		s.TokenUsage.Input += call.TokensInput
		s.TokenUsage.Output += call.TokensOutput
	}); err != nil {
		slog.Error("record token usage", "session_id", e.SessionID, "error", err)
	}
}

func (t *CostTracker) bump(provider string, fn func(*ProviderUsage)) {
	if provider == "" {
		provider = "unknown"
	}
	t.mu.Lock()
	u := t.providers[provider]
	fn(&u)
	t.providers[provider] = u
	t.mu.Unlock()
}
