package runner

import (
	"sync"

	"sita/core"
)

// logSink forwards session log lines to whichever writer belongs to the active session.
type logSink struct {
	mu      sync.Mutex
	current core.LogWriter
}

func (s *logSink) Write(level, msg string, attrs map[string]interface{}) {
	s.mu.Lock()
	w := s.current
	s.mu.Unlock()
	if w != nil {
		w.Write(level, msg, attrs)
	}
}

// swap installs w and closes the previous writer.
func (s *logSink) swap(w core.LogWriter) {
	s.mu.Lock()
	prev := s.current
	s.current = w
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

func (s *logSink) Close() {
	s.swap(nil)
}
