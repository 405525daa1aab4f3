// Package rename streams better-name suggestions for an identifier into a
// completion popup while the model is still answering.
package rename

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/autodev/internal/config"
	"github.com/dohr-michael/autodev/internal/events"
	"github.com/dohr-michael/autodev/internal/models"
	"github.com/dohr-michael/autodev/internal/parser"
)

// ErrDisabled is returned when rename suggestions are turned off.
var ErrDisabled = errors.New("rename suggestions are disabled")

// Request identifies the element to rename.
type Request struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

// BuildPrompt returns the completion prompt asking for count names. It ends
// with "1." so the first line of the answer is the first candidate.
func BuildPrompt(req Request, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s is a badname. Please provide %d better options name for follow code: \n\n", req.Name, count)
	fmt.Fprintf(&sb, "```%s\n%s\n```\n\n1.", req.Language, req.Code)
	return sb.String()
}

// Suggester asks the completion model for names and forwards each
// candidate as soon as its line is complete.
type Suggester struct {
	cfg      config.RenameConfig
	models   *models.Registry
	pub      events.Publisher
	handlers []callbacks.Handler
}

// NewSuggester creates a Suggester. bus may be nil.
func NewSuggester(cfg config.RenameConfig, reg *models.Registry, bus *events.Bus, handlers ...callbacks.Handler) *Suggester {
	return &Suggester{
		cfg:      cfg,
		models:   reg,
		pub:      events.NewPublisher(bus, events.SourceRename),
		handlers: handlers,
	}
}

// Suggest streams candidates for req into sink and returns how many were
// emitted. Cancelling ctx stops reading; the pending partial line is then
// dropped rather than flushed.
func (s *Suggester) Suggest(ctx context.Context, req Request, sink parser.CandidateSink) (int, error) {
	if !s.cfg.Enabled {
		return 0, ErrDisabled
	}
	if strings.TrimSpace(req.Name) == "" {
		return 0, fmt.Errorf("rename: empty name")
	}

	provider := s.cfg.Provider
	if provider == "" {
		provider = s.models.NameForRole(models.RoleCompletion)
	}
	chatModel, err := s.models.Get(ctx, provider)
	if err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}

	if len(s.handlers) > 0 {
		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      provider,
			Component: components.ComponentOfChatModel,
		}, s.handlers...)
	}

	count := s.cfg.Count
	if count <= 0 {
		count = 5
	}
	out, err := chatModel.Stream(ctx, []*schema.Message{schema.UserMessage(BuildPrompt(req, count))})
	if err != nil {
		return 0, fmt.Errorf("rename: %w", models.HandleError(err))
	}

	idx := 0
	ex := parser.NewSuggestionExtractor(parser.CandidateFunc(func(c string) {
		idx++
		s.pub.Publish(ctx, events.SuggestionPayload{Name: req.Name, Candidate: c, Index: idx})
		sink.AddCandidate(c)
	}))
	if err := parser.Consume(ctx, models.TextStream(out), ex); err != nil {
		return ex.Emitted(), err
	}
	return ex.Emitted(), nil
}

// Collect returns a sink appending candidates to dst.
func Collect(dst *[]string) parser.CandidateSink {
	return parser.CandidateFunc(func(c string) { *dst = append(*dst, c) })
}
