package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/autodev/internal/config"
)

// Registry holds the agents a chat turn can be routed to.
type Registry struct {
	mu          sync.RWMutex
	agents      map[string]AgentConfig
	defaultName string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]AgentConfig)}
}

// NewRegistryFromConfig registers inline definitions, then every YAML file
// under cfg.Agents.Dir. Invalid files are logged and skipped.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	r := NewRegistry()
	lang := cfg.Interpreter.Language

	for _, def := range cfg.Agents.Definitions {
		ac, err := FromDefinition(def, lang)
		if err != nil {
			return nil, err
		}
		r.Register(ac)
	}

	defs, err := LoadDefinitions(cfg.Agents.Dir)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		ac, err := FromDefinition(def, lang)
		if err != nil {
			slog.Warn("skip agent definition", "name", def.Name, "error", err)
			continue
		}
		r.Register(ac)
	}

	if cfg.Agents.Default != "" {
		if _, ok := r.Get(cfg.Agents.Default); !ok {
			return nil, fmt.Errorf("default agent %q: %w", cfg.Agents.Default, ErrUnknownAgent)
		}
		r.defaultName = cfg.Agents.Default
	}

	return r, nil
}

// LoadDefinitions reads agent definitions from dir/**/*.yaml and *.yml.
// A missing directory yields no definitions.
func LoadDefinitions(dir string) ([]config.AgentDefinition, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(dir, "**", "*.{yaml,yml}"))
	if err != nil {
		return nil, fmt.Errorf("glob agent definitions: %w", err)
	}
	sort.Strings(matches)

	var defs []config.AgentDefinition
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var def config.AgentDefinition
		if err := yaml.Unmarshal(data, &def); err != nil {
			slog.Warn("invalid agent definition", "path", path, "error", err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Register adds or replaces an agent. The first registered agent becomes
// the default unless one was configured.
func (r *Registry) Register(ac AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[ac.Name] = ac
	if r.defaultName == "" {
		r.defaultName = ac.Name
	}
}

// Reload registers the agents cfg declares over the current ones and
// switches to cfg's default agent when it names one. Agents cfg no longer
// declares are kept. It returns the number of agents cfg declares.
func (r *Registry) Reload(cfg *config.Config) (int, error) {
	fresh, err := NewRegistryFromConfig(cfg)
	if err != nil {
		return 0, err
	}
	declared := fresh.List()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ac := range declared {
		r.agents[ac.Name] = ac
	}
	if cfg.Agents.Default != "" {
		r.defaultName = cfg.Agents.Default
	}
	return len(declared), nil
}

// Get returns the named agent.
func (r *Registry) Get(name string) (AgentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ac, ok := r.agents[name]
	return ac, ok
}

// Resolve returns the named agent, or the default one when name is empty.
func (r *Registry) Resolve(name string) (AgentConfig, error) {
	if name == "" {
		r.mu.RLock()
		name = r.defaultName
		r.mu.RUnlock()
	}
	ac, ok := r.Get(name)
	if !ok {
		return AgentConfig{}, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return ac, nil
}

// List returns all agents sorted by name.
func (r *Registry) List() []AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentConfig, 0, len(r.agents))
	for _, ac := range r.agents {
		out = append(out, ac)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
