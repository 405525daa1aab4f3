// Package config loads and hot-reloads the autodev configuration.
package config

import "time"

// Config is the root configuration for autodev.
type Config struct {
	Gateway     GatewayConfig     `json:"gateway"`
	Events      EventsConfig      `json:"events"`
	Models      ModelsConfig      `json:"models"`
	Agents      AgentsConfig      `json:"agents"`
	Rename      RenameConfig      `json:"rename"`
	Interpreter InterpreterConfig `json:"interpreter"`
	Log         LogConfig         `json:"log"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogDir     string `json:"log_dir,omitempty"` // JSONL event log (default: $AUTODEV_PATH/logs)
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default    string                    `json:"default"`
	Completion string                    `json:"completion,omitempty"` // provider for code-completion features (empty = default)
	Providers  map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "openai", "ollama", "claude", "gemini", "mistral"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`

	ContextWindow int `json:"context_window,omitempty"` // 0 = derive from model name
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key, ${VAR} or ${{ .Env.VAR }} template
	Token  string `json:"token,omitempty"`   // Bearer token
}

// AgentsConfig declares the custom agents a chat turn can be routed to.
type AgentsConfig struct {
	Dir         string            `json:"dir"`               // YAML definitions directory (default: $AUTODEV_PATH/agents)
	Default     string            `json:"default,omitempty"` // agent used when none is selected
	Definitions []AgentDefinition `json:"definitions,omitempty"`
}

// AgentDefinition is the serialized form of a custom agent.
type AgentDefinition struct {
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Provider     string `json:"provider,omitempty" yaml:"provider,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	ResponseMode string `json:"response_mode,omitempty" yaml:"response_mode,omitempty"`
	Language     string `json:"language,omitempty" yaml:"language,omitempty"`
}

// RenameConfig controls rename suggestions in the completion popup.
type RenameConfig struct {
	Enabled  bool   `json:"enabled"`
	Count    int    `json:"count"`
	Provider string `json:"provider,omitempty"` // overrides models.completion
}

// InterpreterConfig configures the secondary interpreter that runs scripts
// extracted from agent responses.
type InterpreterConfig struct {
	Language        string   `json:"language"`         // fence tag treated as embedded script (default: DevIn)
	Processors      []string `json:"processors"`       // "events", "shell"
	WorkDir         string   `json:"work_dir,omitempty"`
	Timeout         Duration `json:"timeout,omitempty"`
	AllowedCommands []string `json:"allowed_commands,omitempty"` // empty = all
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `json:"level"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
