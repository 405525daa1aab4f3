package models

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONGuard(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        string
		wantErr     bool
	}{
		{"json", "application/json", 200, `{"model":"test"}`, false},
		{"ndjson stream", "application/x-ndjson", 200, `{"done":false}` + "\n", false},
		{"sse stream", "text/event-stream", 200, "data: {}\n\n", false},
		{"plain text proxy page", "text/plain", 200, "no available server", true},
		{"server error", "application/json", 503, `{"error":"service unavailable"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			req, _ := http.NewRequest("POST", srv.URL, nil)
			resp, err := newJSONGuard("mistral", nil).RoundTrip(req)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				defer resp.Body.Close()
				got, _ := io.ReadAll(resp.Body)
				if string(got) != tt.body {
					t.Errorf("body = %q, want %q", got, tt.body)
				}
				return
			}

			var unavail *ErrModelUnavailable
			if !errors.As(err, &unavail) {
				t.Fatalf("expected ErrModelUnavailable, got %T: %v", err, err)
			}
			if unavail.Provider != "mistral" {
				t.Errorf("provider = %q", unavail.Provider)
			}
			if !strings.Contains(tt.body, unavail.Body) || unavail.Body == "" {
				t.Errorf("body = %q, want a prefix of %q", unavail.Body, tt.body)
			}
		})
	}
}

func TestJSONGuard_ConnectionError(t *testing.T) {
	req, _ := http.NewRequest("POST", "http://127.0.0.1:1", nil) // nothing listening
	_, err := newJSONGuard("ollama", http.DefaultTransport).RoundTrip(req)

	var unavail *ErrModelUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrModelUnavailable, got %T: %v", err, err)
	}
	if unavail.Cause == nil {
		t.Error("expected non-nil Cause for connection error")
	}
}

func TestSamplingFrom(t *testing.T) {
	s := samplingFrom(map[string]any{
		"temperature": 0.2,
		"top_p":       0.9,
		"top_k":       40,
		"num_ctx":     8192.0,
		"stop":        []any{"\n\n", 3, "```"},
	})
	if s.Temperature == nil || *s.Temperature != float32(0.2) {
		t.Errorf("temperature = %v", s.Temperature)
	}
	if s.TopP == nil || *s.TopP != float32(0.9) {
		t.Errorf("top_p = %v", s.TopP)
	}
	if s.TopK == nil || *s.TopK != 40 {
		t.Errorf("top_k = %v", s.TopK)
	}
	if s.NumCtx != 8192 {
		t.Errorf("num_ctx = %d", s.NumCtx)
	}
	if len(s.Stop) != 2 || s.Stop[0] != "\n\n" || s.Stop[1] != "```" {
		t.Errorf("stop = %q", s.Stop)
	}

	empty := samplingFrom(nil)
	if empty.Temperature != nil || empty.TopP != nil || empty.TopK != nil || empty.Stop != nil {
		t.Errorf("nil options produced %+v", empty)
	}
	if one := samplingFrom(map[string]any{"stop": "END"}); len(one.Stop) != 1 || one.Stop[0] != "END" {
		t.Errorf("single stop = %q", one.Stop)
	}
}
