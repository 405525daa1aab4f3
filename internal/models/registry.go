package models

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/autodev/internal/config"
)

const fallbackContextWindow = 100000

// contextWindows is ordered so that the first matching prefix is the most
// specific one ("gpt-4o" before "gpt-4").
var contextWindows = []struct {
	prefix string
	tokens int
}{
	{"anthropic.claude", 200000},
	{"claude-", 200000},
	{"codestral", 256000},
	{"gemini-", 1048576},
	{"gpt-3.5-turbo", 16385},
	{"gpt-4-turbo", 128000},
	{"gpt-4o", 128000},
	{"gpt-4.1", 1047576},
	{"gpt-4", 8192},
	{"o1", 200000},
	{"o3", 200000},
	{"mistral-large", 128000},
	{"mistral-small", 128000},
	{"open-mistral-nemo", 128000},
	{"pixtral", 128000},
}

// Role selects which configured provider serves a request.
type Role string

const (
	RoleChat       Role = "chat"
	RoleCompletion Role = "completion"
)

var errNoDefault = errors.New("no default model configured")

type provider struct {
	cfg   config.ProviderConfig
	build func() (model.BaseChatModel, error)
}

// Registry hands out chat models by provider name. Configured providers are
// built on first use; a failed build is remembered and returned again.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]*provider
	chat       string
	completion string
}

// NewRegistry creates a model registry from config.
func NewRegistry(cfg config.ModelsConfig) *Registry {
	r := &Registry{
		providers:  make(map[string]*provider, len(cfg.Providers)),
		chat:       cfg.Default,
		completion: cfg.Completion,
	}
	for name, pc := range cfg.Providers {
		r.providers[name] = &provider{
			cfg: pc,
			build: sync.OnceValues(func() (model.BaseChatModel, error) {
				return CreateModel(context.Background(), pc)
			}),
		}
	}
	return r
}

// Register installs a ready model under name. The first registration
// becomes the default when none is configured.
func (r *Registry) Register(name string, m model.BaseChatModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &provider{build: func() (model.BaseChatModel, error) { return m, nil }}
	if r.chat == "" {
		r.chat = name
	}
}

// Names returns the provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.providers))
}

func (r *Registry) lookup(name string) (*provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Get returns the named model. ctx only bounds the wait; construction
// itself is not tied to the first caller's context.
func (r *Registry) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	p, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("model provider %q not found", name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := p.build()
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", name, err)
	}
	return m, nil
}

// Default returns the chat model.
func (r *Registry) Default(ctx context.Context) (model.BaseChatModel, error) {
	name := r.DefaultName()
	if name == "" {
		return nil, errNoDefault
	}
	return r.Get(ctx, name)
}

// ForRole returns the model serving role.
func (r *Registry) ForRole(ctx context.Context, role Role) (model.BaseChatModel, error) {
	name := r.NameForRole(role)
	if name == "" {
		return nil, errNoDefault
	}
	return r.Get(ctx, name)
}

// NameForRole returns the provider serving role. Completion falls back to
// the chat provider.
func (r *Registry) NameForRole(role Role) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if role == RoleCompletion && r.completion != "" {
		return r.completion
	}
	return r.chat
}

// DefaultName returns the chat provider name.
func (r *Registry) DefaultName() string { return r.NameForRole(RoleChat) }

// ContextWindow returns the context window of the named provider in
// tokens. Unknown and pre-built providers report fallbackContextWindow.
func (r *Registry) ContextWindow(name string) int {
	p, ok := r.lookup(name)
	if !ok {
		return fallbackContextWindow
	}
	return resolveContextWindow(p.cfg)
}

func resolveContextWindow(cfg config.ProviderConfig) int {
	if cfg.ContextWindow > 0 {
		return cfg.ContextWindow
	}
	for _, w := range contextWindows {
		if strings.HasPrefix(cfg.Model, w.prefix) {
			return w.tokens
		}
	}
	if cfg.Driver == "ollama" {
		return 8192
	}
	return fallbackContextWindow
}
