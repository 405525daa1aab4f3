package agent

import (
	"fmt"
	"strings"
)

// ModelTier classifies LLM capabilities for prompt adaptation.
// Only TierSmall triggers the compact script instructions.
type ModelTier string

const (
	TierSmall  ModelTier = "small"  // < 16K context
	TierMedium ModelTier = "medium" // 16K-64K context
	TierLarge  ModelTier = "large"  // >= 64K context
)

// ResolveTier derives the tier from a context window size.
func ResolveTier(contextWindow int) ModelTier {
	switch {
	case contextWindow > 0 && contextWindow < 16_000:
		return TierSmall
	case contextWindow >= 16_000 && contextWindow < 64_000:
		return TierMedium
	default:
		return TierLarge
	}
}

const scriptOnlyInstructions = `## Output

Your whole answer is executed as %[1]s. Output only %[1]s commands, one per line.
Do not add prose or code fences.
Example:
/file:src/main.go
/commit`

const scriptOnlyInstructionsCompact = "Output only %[1]s commands, one per line, no prose, no fences."

// PromptContext holds the inputs of one system prompt.
type PromptContext struct {
	Agent        AgentConfig
	Tier         ModelTier
	MessageCount int // previous messages in the conversation
}

// PromptComposer builds the system prompt sent ahead of the user request.
type PromptComposer struct{}

// NewPromptComposer creates a new PromptComposer.
func NewPromptComposer() *PromptComposer {
	return &PromptComposer{}
}

// Compose returns "" when no layer applies.
func (pc *PromptComposer) Compose(pctx PromptContext) string {
	var sections []string

	if p := strings.TrimSpace(pctx.Agent.SystemPrompt); p != "" {
		sections = append(sections, p)
	}

	if pctx.Agent.Mode == ModeScriptExtraction {
		tmpl := scriptOnlyInstructions
		if pctx.Tier == TierSmall {
			tmpl = scriptOnlyInstructionsCompact
		}
		sections = append(sections, fmt.Sprintf(tmpl, pctx.Agent.Language))
	}

	if pctx.MessageCount > 0 {
		sections = append(sections, fmt.Sprintf("## Session Context\n\nResumed conversation, %d previous messages.", pctx.MessageCount))
	}

	if len(sections) == 0 {
		return ""
	}
	return strings.Join(sections, "\n\n")
}
