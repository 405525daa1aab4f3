package sessions

import (
	"github.com/cloudwego/eino/schema"
)

// Recorder stores chat turns in a FileStore and replays them as model
// history. The zero window keeps every message.
type Recorder struct {
	store  *FileStore
	window int
}

// NewRecorder creates a Recorder replaying at most window messages.
func NewRecorder(store *FileStore, window int) *Recorder {
	return &Recorder{store: store, window: window}
}

// Load returns the stored conversation as schema messages. An unknown
// session has no history.
func (r *Recorder) Load(sessionID string) ([]*schema.Message, error) {
	msgs, err := r.store.LoadMessages(sessionID)
	if err != nil {
		return nil, err
	}
	if r.window > 0 && len(msgs) > r.window {
		msgs = msgs[len(msgs)-r.window:]
	}
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ToSchemaMessage())
	}
	return out, nil
}

// RecordTurn appends the user prompt and the agent reply, creating the
// session on first use.
func (r *Recorder) RecordTurn(sessionID, agentName, prompt, reply string) error {
	_, err := r.store.AppendTurn(sessionID, agentName, prompt, reply)
	return err
}
