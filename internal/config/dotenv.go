package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadDotenv exports the variables of a .env file that the environment
// does not define yet. A missing file is not an error.
func LoadDotenv(path string) error {
	return applyDotenv(path, false)
}

// ReloadDotenv exports every variable of a .env file, replacing current
// values. Used on config reload so rotated keys take effect.
func ReloadDotenv(path string) error {
	return applyDotenv(path, true)
}

func applyDotenv(path string, override bool) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	vars, err := parseDotenv(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, kv := range vars {
		if _, set := os.LookupEnv(kv[0]); set && !override {
			continue
		}
		if err := os.Setenv(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// parseDotenv returns KEY=value pairs in file order. Blank lines, # comments
// and a leading "export" are ignored. Double-quoted values understand \n and
// \"; single-quoted values are literal; unquoted values end at " #".
func parseDotenv(r io.Reader) ([][2]string, error) {
	var out [][2]string
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "export "); ok {
			line = strings.TrimSpace(rest)
		}
		key, raw, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("line %d: invalid key %q", n, key)
		}
		out = append(out, [2]string{key, dotenvValue(strings.TrimSpace(raw))})
	}
	return out, sc.Err()
}

func dotenvValue(raw string) string {
	if len(raw) >= 2 {
		switch q := raw[0]; {
		case q == '\'' && raw[len(raw)-1] == '\'':
			return raw[1 : len(raw)-1]
		case q == '"' && raw[len(raw)-1] == '"':
			return strings.NewReplacer(`\n`, "\n", `\"`, `"`, `\\`, `\`).Replace(raw[1 : len(raw)-1])
		}
	}
	if i := strings.Index(raw, " #"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	return raw
}
