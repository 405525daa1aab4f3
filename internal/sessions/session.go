// Package sessions persists chat conversations so an agent can pick up
// where the previous turn left off.
package sessions

import (
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

const titleMaxRunes = 60

// TokenUsage counts tokens as reported by model providers.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Session holds metadata about a conversation.
type Session struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Agent         string     `json:"agent,omitempty"` // agent of the latest turn
	MessageCount  int        `json:"message_count"`
	TokenUsage    TokenUsage `json:"token_usage"`    // as reported by providers
	HistoryTokens int        `json:"history_tokens"` // estimate of the stored transcript
}

// Message is a single turn entry, serialized as one JSONL line.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Agent   string    `json:"agent,omitempty"`
	Ts      time.Time `json:"ts"`
}

// ToSchemaMessage converts a stored Message to an eino schema.Message.
func (m Message) ToSchemaMessage() *schema.Message {
	return &schema.Message{
		Role:    schema.RoleType(m.Role),
		Content: m.Content,
	}
}

// Store is the part of FileStore the gateway and the cost tracker rely on.
type Store interface {
	Create() (*Session, error)
	Get(id string) (*Session, error)
	List() ([]*Session, error)
	Update(id string, fn func(*Session)) (*Session, error)
	Delete(id string) error
	LoadMessages(id string) ([]Message, error)
}

// titleFrom derives a session title from the first line of its opening prompt.
func titleFrom(prompt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(prompt), "\n")
	r := []rune(line)
	if len(r) > titleMaxRunes {
		return string(r[:titleMaxRunes-1]) + "…"
	}
	return line
}
