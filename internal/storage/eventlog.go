// Package storage holds the bus subscribers that persist what flows through
// a running instance.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dohr-michael/autodev/internal/events"
)

// globalLog receives events that carry no usable session id.
const globalLog = "_global"

// maxLineSize bounds a single JSONL record when reading a log back.
const maxLineSize = 4 << 20

// EventLogger appends every non-transient bus event to <dir>/<session>.jsonl.
// Writes are serialized so lines from concurrent sessions never interleave.
type EventLogger struct {
	dir         string
	mu          sync.Mutex
	ready       bool
	unsubscribe func()
}

// NewEventLogger subscribes to bus. An empty dir disables persistence.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	l := &EventLogger{dir: dir}
	if dir == "" {
		return l
	}
	l.unsubscribe = bus.Subscribe(l.record)
	return l
}

// Close stops recording. Events already delivered are on disk.
func (l *EventLogger) Close() {
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
}

func (l *EventLogger) record(e events.Event) {
	if events.Transient(e.Type) {
		return
	}
	if err := l.append(e); err != nil {
		slog.Warn("event log", "type", e.Type, "session", e.SessionID, "error", err)
	}
}

func (l *EventLogger) append(e events.Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.ID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ready {
		if err := os.MkdirAll(l.dir, 0o755); err != nil {
			return err
		}
		l.ready = true
	}

	f, err := os.OpenFile(LogPath(l.dir, e.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.Write(append(line, '\n'))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// LogPath returns the JSONL file events of sessionID are written to. Ids
// that could escape dir share the global log.
func LogPath(dir, sessionID string) string {
	name := sessionID
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		name = globalLog
	}
	return filepath.Join(dir, name+".jsonl")
}

// ReadEvents loads the recorded events of sessionID, oldest first, keeping
// only eventTypes when any are given. A session without a log yields no
// events and no error. Undecodable lines are skipped.
func ReadEvents(dir, sessionID string, eventTypes ...events.EventType) ([]events.Event, error) {
	f, err := os.Open(LogPath(dir, sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	keep := make(map[events.EventType]bool, len(eventTypes))
	for _, t := range eventTypes {
		keep[t] = true
	}

	var out []events.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for n := 1; sc.Scan(); n++ {
		var e events.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			slog.Debug("event log: skip line", "file", f.Name(), "line", n, "error", err)
			continue
		}
		if len(keep) > 0 && !keep[e.Type] {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
