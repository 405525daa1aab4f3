package agent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dohr-michael/autodev/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFromDefinition(t *testing.T) {
	ac, err := FromDefinition(config.AgentDefinition{Name: " reviewer ", ResponseMode: "Stream"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if ac.Name != "reviewer" || ac.Mode != ModeStreamed || ac.Language != DefaultLanguage {
		t.Fatalf("unexpected config %+v", ac)
	}

	ac, err = FromDefinition(config.AgentDefinition{Name: "sh", Language: "bash"}, "DevIn")
	if err != nil || ac.Language != "bash" {
		t.Fatalf("explicit language must win: %+v, %v", ac, err)
	}

	if _, err := FromDefinition(config.AgentDefinition{}, ""); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, err := FromDefinition(config.AgentDefinition{Name: "x", ResponseMode: "bogus"}, ""); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("expected ErrUnsupportedMode, got %v", err)
	}
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "reviewer.yaml"), "name: reviewer\nresponse_mode: Streamed\nsystem_prompt: Review code.\n")
	writeFile(t, filepath.Join(dir, "team", "devins.yml"), "name: devins\nresponse_mode: DevIns\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: [unterminated")

	defs, err := LoadDefinitions(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d: %+v", len(defs), defs)
	}

	defs, err = LoadDefinitions(filepath.Join(dir, "missing"))
	if err != nil || defs != nil {
		t.Fatalf("missing dir: got (%v, %v)", defs, err)
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "view.yaml"), "name: view\nresponse_mode: WebView\n")

	cfg := config.Default()
	cfg.Agents.Dir = dir
	cfg.Agents.Default = "view"
	cfg.Agents.Definitions = []config.AgentDefinition{{Name: "inline", ResponseMode: "Direct"}}

	r, err := NewRegistryFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(r.List()); got != 2 {
		t.Fatalf("expected 2 agents, got %d", got)
	}
	ac, err := r.Resolve("")
	if err != nil || ac.Name != "view" || ac.Mode != ModeEmbeddedView {
		t.Fatalf("default agent: %+v, %v", ac, err)
	}
	if _, err := r.Resolve("nope"); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}

	cfg.Agents.Default = "ghost"
	if _, err := NewRegistryFromConfig(cfg); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent for missing default, got %v", err)
	}
}

func TestRegistryReload(t *testing.T) {
	cfg := config.Default()
	cfg.Agents.Dir = ""
	cfg.Agents.Definitions = []config.AgentDefinition{
		{Name: "coder", ResponseMode: "Stream"},
		{Name: "reviewer", ResponseMode: "Direct"},
	}
	r, err := NewRegistryFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if ac, _ := r.Resolve(""); ac.Name != "coder" {
		t.Fatalf("initial default = %q", ac.Name)
	}

	next := config.Default()
	next.Agents.Dir = ""
	next.Agents.Default = "reviewer"
	next.Agents.Definitions = []config.AgentDefinition{{Name: "reviewer", ResponseMode: "TextChunk"}}
	n, err := r.Reload(next)
	if err != nil || n != 1 {
		t.Fatalf("Reload = %d, %v", n, err)
	}
	ac, err := r.Resolve("")
	if err != nil || ac.Name != "reviewer" || ac.Mode != ModeChunkedCapture {
		t.Fatalf("default after reload: %+v, %v", ac, err)
	}
	if _, ok := r.Get("coder"); !ok {
		t.Error("agents missing from the new config must be kept")
	}

	next.Agents.Default = "ghost"
	if _, err := r.Reload(next); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
	if ac, _ := r.Resolve(""); ac.Name != "reviewer" {
		t.Errorf("failed reload changed the default to %q", ac.Name)
	}
}
