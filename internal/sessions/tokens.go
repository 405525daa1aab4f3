package sessions

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func getCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			slog.Warn("tiktoken codec unavailable, falling back to rune estimate", "error", err)
			return
		}
		codec = c
	})
	return codec
}

// EstimateTokens approximates how many tokens text costs. cl100k_base is
// close enough for the providers we drive; without it, four runes count as
// one token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if c := getCodec(); c != nil {
		if ids, _, err := c.Encode(text); err == nil {
			return len(ids)
		}
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
