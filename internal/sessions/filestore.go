package sessions

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

const (
	metaFile       = "meta.json"
	transcriptFile = "messages.jsonl"
)

// Client-supplied ids become directory names, so they are one path element.
var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var (
	ErrInvalidID = errors.New("invalid session id")
	// ErrNotFound matches os.ErrNotExist under errors.Is.
	ErrNotFound = fmt.Errorf("session %w", os.ErrNotExist)
)

// FileStore keeps each conversation in <root>/<id>/ as meta.json plus an
// append-only messages.jsonl. One mutex guards the whole tree; turns are
// short and rare compared to the model calls between them.
type FileStore struct {
	root string
	mu   sync.RWMutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (fs *FileStore) path(id, name string) string {
	return filepath.Join(fs.root, id, name)
}

// Create starts an empty conversation under a fresh "sess_xxxxxxxx" id.
func (fs *FileStore) Create() (*Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for {
		id := "sess_" + uuid.NewString()[:8]
		_, err := os.Stat(filepath.Join(fs.root, id))
		switch {
		case errors.Is(err, os.ErrNotExist):
			return fs.initLocked(id)
		case err != nil:
			return nil, fmt.Errorf("create session: %w", err)
		}
	}
}

func (fs *FileStore) Get(id string) (*Session, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.readMeta(id)
}

// List returns every readable session, most recently updated first.
// Directories with a missing or corrupt meta.json are skipped.
func (fs *FileStore) List() ([]*Session, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var out []*Session
	for _, e := range entries {
		if !e.IsDir() || checkID(e.Name()) != nil {
			continue
		}
		s, err := fs.readMeta(e.Name())
		if err != nil {
			slog.Debug("skip session", "id", e.Name(), "error", err)
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Session) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

// Update applies fn to the metadata of id, creating the session when it
// does not exist yet: gateway clients pick their own ids.
func (fs *FileStore) Update(id string, fn func(*Session)) (*Session, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, err := fs.openLocked(id)
	if err != nil {
		return nil, err
	}
	fn(s)
	s.UpdatedAt = time.Now()
	return s, fs.writeMeta(s)
}

// Delete removes a session and its transcript.
func (fs *FileStore) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := filepath.Join(fs.root, id)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return os.RemoveAll(dir)
}

// AppendTurn records a prompt and its reply as two transcript lines and
// updates the metadata: message count, latest agent, transcript token
// estimate, and a title taken from the first prompt.
func (fs *FileStore) AppendTurn(id, agentName, prompt, reply string) (*Session, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	s, err := fs.openLocked(id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	turn := []Message{
		{Role: string(schema.User), Content: prompt, Ts: now},
		{Role: string(schema.Assistant), Content: reply, Agent: agentName, Ts: now},
	}
	if err := fs.appendLines(id, turn); err != nil {
		return nil, err
	}

	s.MessageCount += len(turn)
	s.Agent = agentName
	s.HistoryTokens += EstimateTokens(prompt) + EstimateTokens(reply)
	if s.Title == "" {
		s.Title = titleFrom(prompt)
	}
	s.UpdatedAt = now
	return s, fs.writeMeta(s)
}

// LoadMessages returns the transcript of id, oldest first. Unreadable lines
// are dropped; a session without a transcript has no messages.
func (fs *FileStore) LoadMessages(id string) ([]Message, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	f, err := os.Open(fs.path(id, transcriptFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var msgs []Message
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 8<<20)
	for sc.Scan() {
		var m Message
		if len(sc.Bytes()) == 0 || json.Unmarshal(sc.Bytes(), &m) != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", id, err)
	}
	return msgs, nil
}

func (fs *FileStore) openLocked(id string) (*Session, error) {
	s, err := fs.readMeta(id)
	if errors.Is(err, os.ErrNotExist) {
		return fs.initLocked(id)
	}
	return s, err
}

func (fs *FileStore) initLocked(id string) (*Session, error) {
	if err := os.MkdirAll(filepath.Join(fs.root, id), 0o755); err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	now := time.Now()
	s := &Session{ID: id, CreatedAt: now, UpdatedAt: now}
	return s, fs.writeMeta(s)
}

func (fs *FileStore) appendLines(id string, msgs []Message) error {
	var buf []byte
	for _, m := range msgs {
		line, err := json.Marshal(m)
		if err != nil {
			return err
		}
		buf = append(append(buf, line...), '\n')
	}
	f, err := os.OpenFile(fs.path(id, transcriptFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript %s: %w", id, err)
	}
	_, werr := f.Write(buf)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

func (fs *FileStore) readMeta(id string) (*Session, error) {
	data, err := os.ReadFile(fs.path(id, metaFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session %s: corrupt %s: %w", id, metaFile, err)
	}
	return &s, nil
}

// writeMeta replaces meta.json atomically.
func (fs *FileStore) writeMeta(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Join(fs.root, s.ID), metaFile+".*")
	if err != nil {
		return fmt.Errorf("write meta %s: %w", s.ID, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), fs.path(s.ID, metaFile))
}
