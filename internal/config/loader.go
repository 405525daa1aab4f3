package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// ${{ .Env.NAME }} inside any string of the config file.
var envRef = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Processor names are lower-cased by applyDefaults before validation.
var knownProcessors = []string{"events", "shell"}

// Load reads the JSONC file at path. See Parse.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse substitutes env references, decodes the JSONC document, fills
// defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	data = envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRef.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})

	var cfg Config
	if err := unmarshalJSONC(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func unmarshalJSONC(data []byte, v any) error {
	std, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := json.Unmarshal(std, v); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate reports every structural problem of c at once. References to
// providers are checked when models are built, since env-driven configs
// may name providers that only some deployments define.
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d out of range", c.Gateway.Port))
	}
	for name, p := range c.Models.Providers {
		if p.Driver == "" {
			errs = append(errs, fmt.Errorf("models.providers.%s: driver is required", name))
		}
	}
	seen := make(map[string]bool, len(c.Agents.Definitions))
	for i, def := range c.Agents.Definitions {
		switch {
		case def.Name == "":
			errs = append(errs, fmt.Errorf("agents.definitions[%d]: name is required", i))
		case seen[def.Name]:
			errs = append(errs, fmt.Errorf("agents.definitions[%d]: duplicate agent %q", i, def.Name))
		}
		seen[def.Name] = true
	}
	for _, p := range c.Interpreter.Processors {
		if !slices.Contains(knownProcessors, p) {
			errs = append(errs, fmt.Errorf("interpreter.processors: unknown processor %q", p))
		}
	}
	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.Gateway.Host, "127.0.0.1")
	setDefault(&cfg.Gateway.Port, 18421)
	setDefault(&cfg.Events.BufferSize, 1024)
	setDefault(&cfg.Events.LogDir, LogsPath())
	setDefault(&cfg.Agents.Dir, AgentsPath())
	setDefault(&cfg.Rename.Count, 5)
	setDefault(&cfg.Interpreter.Language, "DevIn")
	setDefault(&cfg.Interpreter.Timeout, Duration(30*time.Second))
	setDefault(&cfg.Log.Level, "info")
	if len(cfg.Interpreter.Processors) == 0 {
		cfg.Interpreter.Processors = []string{"events"}
	}
	for i, p := range cfg.Interpreter.Processors {
		cfg.Interpreter.Processors[i] = strings.ToLower(strings.TrimSpace(p))
	}
	// API keys are resolved by models.ResolveAuth when a provider is built.
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
