package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/go-cmp/cmp"
)

func TestDrain(t *testing.T) {
	stream := schema.StreamReaderFromArray([]string{"He", "llo", "\nworld"})

	var seen []string
	text, err := Drain(context.Background(), stream, func(c string) { seen = append(seen, c) })
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if text != "Hello\nworld" {
		t.Errorf("text = %q, want %q", text, "Hello\nworld")
	}
	if diff := cmp.Diff([]string{"He", "llo", "\nworld"}, seen); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestDrainStreamError(t *testing.T) {
	sr, sw := schema.Pipe[string](4)
	boom := errors.New("boom")
	go func() {
		defer sw.Close()
		sw.Send("partial", nil)
		sw.Send("", boom)
	}()

	text, err := Drain(context.Background(), sr, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if text != "partial" {
		t.Errorf("text = %q, want %q", text, "partial")
	}
}

func TestConsumeFlushesLastCandidate(t *testing.T) {
	var got []string
	e := NewSuggestionExtractor(CandidateFunc(func(s string) { got = append(got, s) }))

	stream := schema.StreamReaderFromArray([]string{"1. alpha\n2. be", "ta\n3. gamma"})
	if err := Consume(context.Background(), stream, e); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	if diff := cmp.Diff([]string{"alpha", "beta", "gamma"}, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestConsumeCancelledDoesNotFlush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	// Cancel as soon as the first candidate is delivered.
	e := NewSuggestionExtractor(CandidateFunc(func(s string) {
		got = append(got, s)
		cancel()
	}))

	sr, sw := schema.Pipe[string](1)
	go func() {
		defer sw.Close()
		sw.Send("1. first\n2. sec", nil)
	}()

	err := Consume(ctx, sr, e)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if diff := cmp.Diff([]string{"first"}, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestDrainCancelWhileProducerSilent(t *testing.T) {
	sr, sw := schema.Pipe[string](1)
	defer sw.Close()
	sw.Send("early", nil)

	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	done := make(chan struct{})
	var (
		text string
		err  error
	)
	go func() {
		defer close(done)
		text, err = Drain(ctx, sr, func(c string) { seen = append(seen, c) })
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Drain kept waiting on the stream after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if text != "early" {
		t.Errorf("text = %q, want %q", text, "early")
	}

	// A fragment produced after cancellation never reaches the callback.
	sw.Send("late", nil)
	if diff := cmp.Diff([]string{"early"}, seen); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
}
