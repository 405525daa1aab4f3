package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/autodev/internal/agent"
	"github.com/dohr-michael/autodev/internal/parser"
	"github.com/dohr-michael/autodev/internal/rename"
)

type fakeChat struct {
	res agent.Result
	err error
	got agent.ChatRequest
}

func (f *fakeChat) HandleChat(_ context.Context, req agent.ChatRequest, _ agent.MessageSink) (agent.Result, error) {
	f.got = req
	return f.res, f.err
}

type fakeRenamer []string

func (f fakeRenamer) Suggest(_ context.Context, _ rename.Request, sink parser.CandidateSink) (int, error) {
	for _, s := range f {
		sink.AddCandidate(s)
	}
	return len(f), nil
}

func connect(t *testing.T, cfg Config) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewMCPServer(cfg)
	clientT, serverT := mcpsdk.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func text(t *testing.T, res *mcpsdk.CallToolResult) []string {
	t.Helper()
	var out []string
	for _, c := range res.Content {
		tc, ok := c.(*mcpsdk.TextContent)
		if !ok {
			t.Fatalf("unexpected content %T", c)
		}
		out = append(out, tc.Text)
	}
	return out
}

func TestAskAgentSchema(t *testing.T) {
	cs := connect(t, Config{Chat: &fakeChat{}, Agents: []string{"coder", "reviewer"}})
	res, err := cs.ListTools(context.Background(), &mcpsdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(res.Tools) != 1 {
		t.Fatalf("got %d tools", len(res.Tools))
	}

	data, err := json.Marshal(res.Tools[0].InputSchema)
	if err != nil {
		t.Fatal(err)
	}
	var schema struct {
		Type       string `json:"type"`
		Properties map[string]struct {
			Type        string   `json:"type"`
			Description string   `json:"description"`
			Enum        []string `json:"enum"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatal(err)
	}

	if schema.Type != "object" || len(schema.Properties) != 3 {
		t.Fatalf("unexpected schema: %s", data)
	}
	if diff := cmp.Diff([]string{"prompt"}, schema.Required); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"coder", "reviewer"}, schema.Properties["agent"].Enum); diff != "" {
		t.Errorf("agent enum (-want +got):\n%s", diff)
	}
	if schema.Properties["prompt"].Description == "" {
		t.Error("prompt has no description")
	}
}

func TestAskAgent_UnknownAgentRejected(t *testing.T) {
	chat := &fakeChat{}
	cs := connect(t, Config{Chat: chat, Agents: []string{"coder"}})

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      ToolAskAgent,
		Arguments: map[string]any{"prompt": "hi", "agent": "ghost"},
	})
	if err == nil && !res.IsError {
		t.Fatal("agent outside the enum was accepted")
	}
	if chat.got.Prompt != "" {
		t.Error("handler ran for invalid arguments")
	}
}

func TestListTools(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"both", Config{Chat: &fakeChat{}, Rename: fakeRenamer{}}, []string{ToolAskAgent, ToolSuggestNames}},
		{"chat only", Config{Chat: &fakeChat{}}, []string{ToolAskAgent}},
		{"filtered", Config{Chat: &fakeChat{}, Rename: fakeRenamer{}, Filter: ToolSuggestNames}, []string{ToolSuggestNames}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := connect(t, tt.cfg)
			res, err := cs.ListTools(context.Background(), &mcpsdk.ListToolsParams{})
			if err != nil {
				t.Fatalf("ListTools: %v", err)
			}
			var got []string
			for _, tool := range res.Tools {
				got = append(got, tool.Name)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("tools mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAskAgent(t *testing.T) {
	chat := &fakeChat{res: agent.Result{FinalText: "done", Script: "/commit", HasScript: true}}
	cs := connect(t, Config{Chat: chat, Agents: []string{"coder"}})

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      ToolAskAgent,
		Arguments: map[string]any{"prompt": "ship it", "agent": "coder", "session_id": "s1"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %v", text(t, res))
	}
	if diff := cmp.Diff([]string{"done", "/commit"}, text(t, res)); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
	want := agent.ChatRequest{Prompt: "ship it", Agent: "coder", SessionID: "s1"}
	if chat.got != want {
		t.Errorf("request = %+v, want %+v", chat.got, want)
	}
}

func TestAskAgent_Errors(t *testing.T) {
	cs := connect(t, Config{Chat: &fakeChat{err: agent.ErrAgentBusy}})

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      ToolAskAgent,
		Arguments: map[string]any{"prompt": "hi"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError || text(t, res)[0] != agent.ErrAgentBusy.Error() {
		t.Fatalf("expected busy tool error, got %+v", res)
	}

	res, err = cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      ToolAskAgent,
		Arguments: map[string]any{"prompt": " "},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error for a blank prompt")
	}
}

func TestSuggestNames(t *testing.T) {
	cs := connect(t, Config{Rename: fakeRenamer{"userCount", "totalUsers"}})

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      ToolSuggestNames,
		Arguments: map[string]any{"name": "tmp"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if got := text(t, res); len(got) != 1 || got[0] != "userCount\ntotalUsers" {
		t.Fatalf("unexpected content: %v", got)
	}
}

