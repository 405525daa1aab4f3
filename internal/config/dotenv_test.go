package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDotenv(t *testing.T) {
	src := `# provider keys
ANTHROPIC_API_KEY=sk-ant-123
export OPENAI_API_KEY = sk-oai
MODEL="claude  sonnet"   
PROMPT="line1\nline2 \"quoted\""
RAW='no \n escapes # here'
HOST=localhost # trailing comment
not a pair
EMPTY=
`
	got, err := parseDotenv(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]string{
		{"ANTHROPIC_API_KEY", "sk-ant-123"},
		{"OPENAI_API_KEY", "sk-oai"},
		{"MODEL", "claude  sonnet"},
		{"PROMPT", "line1\nline2 \"quoted\""},
		{"RAW", `no \n escapes # here`},
		{"HOST", "localhost"},
		{"EMPTY", ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseDotenv (-want +got):\n%s", diff)
	}
}

func TestParseDotenv_BadKey(t *testing.T) {
	if _, err := parseDotenv(strings.NewReader("A B=c\n")); err == nil {
		t.Fatal("expected error for key with a space")
	}
}

func writeDotenv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDotenv_OverrideModes(t *testing.T) {
	path := writeDotenv(t, "AUTODEV_TEST_KEY=from-file\n")

	t.Setenv("AUTODEV_TEST_KEY", "from-env")
	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("AUTODEV_TEST_KEY"); got != "from-env" {
		t.Errorf("LoadDotenv replaced a set variable: %q", got)
	}

	if err := ReloadDotenv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("AUTODEV_TEST_KEY"); got != "from-file" {
		t.Errorf("ReloadDotenv kept stale value: %q", got)
	}
}

func TestDotenv_MissingFile(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing file: %v", err)
	}
}
