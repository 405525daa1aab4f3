// Package mcp exposes agents and rename suggestions as MCP tools, so that
// MCP-capable editors can drive autodev without the gateway.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/autodev/internal/agent"
	"github.com/dohr-michael/autodev/internal/parser"
	"github.com/dohr-michael/autodev/internal/rename"
)

const (
	ToolAskAgent     = "ask_agent"
	ToolSuggestNames = "suggest_names"
)

// ChatHandler runs chat turns.
type ChatHandler interface {
	HandleChat(ctx context.Context, req agent.ChatRequest, sink agent.MessageSink) (agent.Result, error)
}

// Renamer produces rename suggestions.
type Renamer interface {
	Suggest(ctx context.Context, req rename.Request, sink parser.CandidateSink) (int, error)
}

// Config wires the MCP server. A tool whose handler is nil is not exposed.
type Config struct {
	Chat    ChatHandler
	Rename  Renamer
	Agents  []string // advertised as the enum of ask_agent's agent argument
	Version string
	Filter  string // expose only the tool with this name
}

type askArgs struct {
	Prompt    string `json:"prompt" jsonschema:"the question or instruction"`
	Agent     string `json:"agent,omitempty" jsonschema:"agent name, the default agent when empty"`
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation to continue"`
}

type suggestArgs struct {
	Name     string `json:"name" jsonschema:"current identifier"`
	Language string `json:"language,omitempty" jsonschema:"language of the code"`
	Code     string `json:"code,omitempty" jsonschema:"code using the identifier"`
}

// NewMCPServer creates an MCP server exposing the configured tools. Input
// schemas are inferred from the argument structs.
func NewMCPServer(cfg Config) *mcpsdk.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "autodev", Version: version}, nil)
	exposed := func(name string) bool { return cfg.Filter == "" || cfg.Filter == name }

	if cfg.Chat != nil && exposed(ToolAskAgent) {
		mcpsdk.AddTool(server, &mcpsdk.Tool{
			Name:        ToolAskAgent,
			Description: "Ask a custom agent and return its final answer. Embedded scripts are returned as a second content block.",
			InputSchema: askSchema(cfg.Agents),
		}, askAgent(cfg.Chat))
		slog.Debug("mcp tool registered", "tool", ToolAskAgent)
	}
	if cfg.Rename != nil && exposed(ToolSuggestNames) {
		mcpsdk.AddTool(server, &mcpsdk.Tool{
			Name:        ToolSuggestNames,
			Description: "Suggest better names for an identifier, one per line.",
		}, suggestNames(cfg.Rename))
		slog.Debug("mcp tool registered", "tool", ToolSuggestNames)
	}
	return server
}

// askSchema restricts the agent argument to the known agent names.
func askSchema(agents []string) *jsonschema.Schema {
	s, err := jsonschema.For[askArgs](nil)
	if err != nil {
		panic(fmt.Sprintf("ask_agent schema: %v", err))
	}
	if p := s.Properties["agent"]; p != nil && len(agents) > 0 {
		p.Enum = make([]any, len(agents))
		for i, a := range agents {
			p.Enum[i] = a
		}
	}
	return s
}

func toolError(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}
}

func askAgent(chat ChatHandler) mcpsdk.ToolHandlerFor[askArgs, any] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, args askArgs) (*mcpsdk.CallToolResult, any, error) {
		if strings.TrimSpace(args.Prompt) == "" {
			return toolError(fmt.Errorf("prompt is required")), nil, nil
		}
		res, err := chat.HandleChat(ctx, agent.ChatRequest{
			Prompt:    args.Prompt,
			Agent:     args.Agent,
			SessionID: args.SessionID,
		}, agent.DiscardSink{})
		if err != nil {
			slog.Debug("mcp tool error", "tool", ToolAskAgent, "error", err)
			return toolError(err), nil, nil
		}
		content := []mcpsdk.Content{&mcpsdk.TextContent{Text: res.FinalText}}
		if res.HasScript {
			content = append(content, &mcpsdk.TextContent{Text: res.Script})
		}
		return &mcpsdk.CallToolResult{Content: content}, nil, nil
	}
}

func suggestNames(r Renamer) mcpsdk.ToolHandlerFor[suggestArgs, any] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, args suggestArgs) (*mcpsdk.CallToolResult, any, error) {
		var names []string
		if _, err := r.Suggest(ctx, rename.Request(args), rename.Collect(&names)); err != nil {
			slog.Debug("mcp tool error", "tool", ToolSuggestNames, "error", err)
			return toolError(err), nil, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: strings.Join(names, "\n")}},
		}, nil, nil
	}
}
