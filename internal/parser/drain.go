package parser

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
)

type fragment struct {
	chunk string
	err   error
}

// Drain pulls fragments from stream in arrival order, hands each one to
// onChunk (which may be nil) and returns their concatenation. It returns as
// soon as ctx is done, even while the producer is silent, with ctx's error and
// whatever was assembled so far; nothing reaches onChunk after that. The
// stream is always closed.
func Drain(ctx context.Context, stream *schema.StreamReader[string], onChunk func(string)) (string, error) {
	defer stream.Close()

	frags := make(chan fragment)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			chunk, err := stream.Recv()
			select {
			case frags <- fragment{chunk, err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var sb strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		var f fragment
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case f = <-frags:
		}
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		if errors.Is(f.err, io.EOF) {
			return sb.String(), nil
		}
		if f.err != nil {
			return sb.String(), f.err
		}
		sb.WriteString(f.chunk)
		if onChunk != nil {
			onChunk(f.chunk)
		}
	}
}

// Consume drains stream through e and flushes it once the stream ends
// normally. A cancelled or failed stream is not flushed.
func Consume(ctx context.Context, stream *schema.StreamReader[string], e *SuggestionExtractor) error {
	if _, err := Drain(ctx, stream, func(chunk string) { e.Feed(chunk) }); err != nil {
		return err
	}
	e.Finish()
	return nil
}
