package models

import (
	"io"
	"net/http"
	"strings"
)

// jsonGuard fails requests whose response is an error status or not JSON,
// turning proxy pages like "no available server" into ErrModelUnavailable
// before a driver tries to decode them.
type jsonGuard struct {
	inner    http.RoundTripper
	provider string
}

func newJSONGuard(provider string, inner http.RoundTripper) *jsonGuard {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &jsonGuard{inner: inner, provider: provider}
}

func (g *jsonGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := g.inner.RoundTrip(req)
	if err != nil {
		return nil, &ErrModelUnavailable{Provider: g.provider, Cause: err}
	}

	if resp.StatusCode >= 400 || !jsonContent(resp.Header.Get("Content-Type")) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ErrModelUnavailable{
			Provider: g.provider,
			Body:     strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

// jsonContent accepts JSON, NDJSON and SSE streams. An absent header is
// given the benefit of the doubt.
func jsonContent(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "json") || strings.Contains(ct, "event-stream")
}
