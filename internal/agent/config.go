package agent

import (
	"fmt"
	"strings"

	"github.com/dohr-michael/autodev/internal/config"
)

// DefaultLanguage is the fence tag treated as an embedded script when an
// agent does not declare one.
const DefaultLanguage = "DevIn"

// AgentConfig is the identity and response strategy of a custom agent.
// It carries no mutable state; per-invocation state lives on Session.
type AgentConfig struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Provider     string       `json:"provider,omitempty"`
	SystemPrompt string       `json:"system_prompt,omitempty"`
	Mode         ResponseMode `json:"mode"`
	Language     string       `json:"language"`
}

// FromDefinition validates a serialized definition. defaultLanguage is used
// when the definition leaves Language empty.
func FromDefinition(def config.AgentDefinition, defaultLanguage string) (AgentConfig, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return AgentConfig{}, fmt.Errorf("agent definition: missing name")
	}
	mode, err := ParseMode(def.ResponseMode)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("agent %q: %w", name, err)
	}
	lang := strings.TrimSpace(def.Language)
	if lang == "" {
		lang = defaultLanguage
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	return AgentConfig{
		Name:         name,
		Description:  def.Description,
		Provider:     def.Provider,
		SystemPrompt: def.SystemPrompt,
		Mode:         mode,
		Language:     lang,
	}, nil
}

// IsScriptLanguage reports whether a fence tag names the agent's embedded
// scripting language.
func (c AgentConfig) IsScriptLanguage(tag string) bool {
	return tag != "" && strings.EqualFold(tag, c.Language)
}
