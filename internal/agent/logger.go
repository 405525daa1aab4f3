package agent

import "log/slog"

// Logger receives invocation-level failures. Implementations must not panic.
type Logger interface {
	Error(msg string)
}

// SlogLogger adapts a *slog.Logger; a nil logger uses slog.Default.
type SlogLogger struct {
	L *slog.Logger
}

func (s SlogLogger) Error(msg string) {
	l := s.L
	if l == nil {
		l = slog.Default()
	}
	l.Error(msg, "component", "agent")
}
