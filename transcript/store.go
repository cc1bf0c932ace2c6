package transcript

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sita/core"
)

var ErrEmptyTurn = errors.New("transcript: turn text is empty")

// Store is the active session transcript: an in-memory list of turns mirrored line by line
// to a backing file. It is the only writer of that file.
type Store struct {
	mu        sync.RWMutex
	sessionID string
	path      string
	turns     []core.Turn
}

// NewStore binds an empty transcript to path. The file is not touched until the first append.
func NewStore(sessionID, path string) *Store {
	return &Store{sessionID: sessionID, path: path}
}

// OpenStore loads an existing transcript file.
func OpenStore(path string) (*Store, error) {
	s := &Store{}
	if err := s.Rebind(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Append records a turn and writes it through to disk before returning. When the disk
// write fails the turn is still kept in memory and a *core.PersistenceError is returned.
func (s *Store) Append(role core.Role, text string) (core.Turn, error) {
	if !role.Valid() {
		return core.Turn{}, fmt.Errorf("transcript: invalid role %q", role)
	}
	turn, ok := core.NewTurn(role, text)
	if !ok {
		return core.Turn{}, ErrEmptyTurn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turn)
	if err := appendLine(s.path, EncodeLine(turn)); err != nil {
		return turn, err
	}
	return turn, nil
}

// appendLine issues a single write of the complete line so a crash can only lose
// whole turns, then syncs.
func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &core.PersistenceError{Op: "open", Path: path, Err: err}
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return &core.PersistenceError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &core.PersistenceError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &core.PersistenceError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// ContextWindow returns a copy of the last min(maxTurns, Len()) turns in chronological order.
func (s *Store) ContextWindow(maxTurns int) []core.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if maxTurns <= 0 || len(s.turns) == 0 {
		return []core.Turn{}
	}
	start := len(s.turns) - maxTurns
	if start < 0 {
		start = 0
	}
	window := make([]core.Turn, len(s.turns)-start)
	copy(window, s.turns[start:])
	return window
}

// Rebind replaces the in-memory turns with the contents of path and redirects later appends there.
// Lines without a recognised role prefix are skipped.
func (s *Store) Rebind(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &core.NotFoundError{Resource: "session", Name: filepath.Base(path)}
		}
		return &core.PersistenceError{Op: "read", Path: path, Err: err}
	}
	turns := Parse(string(data))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = turns
	s.path = path
	s.sessionID = SessionIDFromPath(path)
	return nil
}

// CopyTo writes the backing file to dst. Appends wait until the copy is done.
func (s *Store) CopyTo(dst string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		// nothing appended yet
		return writeFile(dst, "")
	}
	if err != nil {
		return &core.PersistenceError{Op: "open", Path: s.path, Err: err}
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return &core.PersistenceError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return &core.PersistenceError{Op: "write", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &core.PersistenceError{Op: "close", Path: dst, Err: err}
	}
	return nil
}

// ReplaceFrom overwrites the backing file with the transcript at src and reloads it.
// The replacement goes through a temp file and a rename so readers never see half a file.
func (s *Store) ReplaceFrom(src string) ([]core.Turn, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &core.NotFoundError{Resource: "file", Name: src}
		}
		return nil, &core.PersistenceError{Op: "read", Path: src, Err: err}
	}
	turns := Parse(string(data))

	var b strings.Builder
	for _, turn := range turns {
		b.WriteString(EncodeLine(turn))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := writeFile(tmp, b.String()); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return nil, &core.PersistenceError{Op: "rename", Path: s.path, Err: err}
	}
	s.turns = turns

	out := make([]core.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func writeFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &core.PersistenceError{Op: "create", Path: path, Err: err}
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return &core.PersistenceError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &core.PersistenceError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &core.PersistenceError{Op: "close", Path: path, Err: err}
	}
	return nil
}

func (s *Store) Turns() []core.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}
