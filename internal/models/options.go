package models

import (
	"time"

	"github.com/dohr-michael/autodev/internal/config"
)

// sampling holds the generation knobs read from ProviderConfig.Options.
// Nil pointers leave the provider's own default in place.
type sampling struct {
	Temperature *float32
	TopP        *float32
	TopK        *int
	NumCtx      int
	NumPredict  int
	Stop        []string
}

func samplingFrom(opts map[string]any) sampling {
	var s sampling
	if v, ok := number(opts["temperature"]); ok {
		t := float32(v)
		s.Temperature = &t
	}
	if v, ok := number(opts["top_p"]); ok {
		p := float32(v)
		s.TopP = &p
	}
	if v, ok := number(opts["top_k"]); ok {
		k := int(v)
		s.TopK = &k
	}
	if v, ok := number(opts["num_ctx"]); ok {
		s.NumCtx = int(v)
	}
	if v, ok := number(opts["num_predict"]); ok {
		s.NumPredict = int(v)
	}
	switch stop := opts["stop"].(type) {
	case string:
		s.Stop = []string{stop}
	case []any:
		for _, v := range stop {
			if str, ok := v.(string); ok {
				s.Stop = append(s.Stop, str)
			}
		}
	}
	return s
}

// number accepts JSON numbers and the ints a programmatic config may carry.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func timeoutOr(cfg config.ProviderConfig, def time.Duration) time.Duration {
	if d := cfg.Timeout.Duration(); d > 0 {
		return d
	}
	return def
}

func modelOr(cfg config.ProviderConfig, def string) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return def
}
