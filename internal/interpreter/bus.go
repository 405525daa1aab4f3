package interpreter

import (
	"context"

	"github.com/dohr-michael/autodev/internal/events"
)

// BusProcessor publishes scripts as script.extracted events so that remote
// IDE clients can run them with their own interpreter.
type BusProcessor struct {
	pub events.Publisher
}

// NewBusProcessor creates a BusProcessor.
func NewBusProcessor(bus *events.Bus) *BusProcessor {
	return &BusProcessor{pub: events.NewPublisher(bus, events.SourceInterpreter)}
}

func (p *BusProcessor) Name() string { return "events" }

func (p *BusProcessor) Execute(ctx context.Context, sc ScriptContext) (string, error) {
	p.pub.Publish(ctx, events.ScriptPayload{
		Agent:    sc.Agent,
		Language: sc.Language,
		Script:   sc.Script,
	})
	return "", nil
}
