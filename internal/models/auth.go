package models

import (
	"fmt"
	"os"
	"strings"

	"github.com/dohr-michael/autodev/internal/config"
)

// AuthKind distinguishes between API key and Bearer token auth.
type AuthKind int

const (
	AuthAPIKey AuthKind = iota
	AuthBearerToken
)

// ResolvedAuth holds the resolved credentials and their kind.
type ResolvedAuth struct {
	Kind  AuthKind
	Value string
}

// keyEnv lists, per driver, the environment variables holding an API key,
// in lookup order.
var keyEnv = map[string][]string{
	"anthropic": {"ANTHROPIC_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"mistral":   {"MISTRAL_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// ResolveAuth resolves the credentials for a provider.
// Resolution order: token, then api_key (both accept ${VAR}), then the
// driver's key variables.
func ResolveAuth(cfg config.ProviderConfig) (ResolvedAuth, error) {
	if token := expandRef(cfg.Auth.Token); token != "" {
		return ResolvedAuth{Kind: AuthBearerToken, Value: token}, nil
	}
	if key := expandRef(cfg.Auth.APIKey); key != "" {
		return ResolvedAuth{Kind: AuthAPIKey, Value: key}, nil
	}

	envs, ok := keyEnv[strings.ToLower(cfg.Driver)]
	if !ok {
		return ResolvedAuth{}, fmt.Errorf("unknown driver %q: cannot resolve auth", cfg.Driver)
	}
	for _, env := range envs {
		if key := os.Getenv(env); key != "" {
			return ResolvedAuth{Kind: AuthAPIKey, Value: key}, nil
		}
	}
	return ResolvedAuth{}, fmt.Errorf("%s not set", envs[0])
}

// expandRef trims v and resolves a whole-value ${VAR} reference.
func expandRef(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}
