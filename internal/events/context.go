package events

import "context"

type sessionIDKey struct{}

// ContextWithSessionID returns a new context carrying the session ID.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext extracts the session ID from the context, or "" if absent.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Publisher publishes events scoped to the session carried by ctx.
type Publisher struct {
	bus    *Bus
	source EventSource
}

// NewPublisher returns a Publisher; a nil bus yields a no-op publisher.
func NewPublisher(bus *Bus, source EventSource) Publisher {
	return Publisher{bus: bus, source: source}
}

// Publish emits payload, tagging it with the session ID from ctx when present.
func (p Publisher) Publish(ctx context.Context, payload EventPayload) {
	if p.bus == nil {
		return
	}
	if sid := SessionIDFromContext(ctx); sid != "" {
		p.bus.Publish(NewTypedEventWithSession(p.source, payload, sid))
		return
	}
	p.bus.Publish(NewTypedEvent(p.source, payload))
}
