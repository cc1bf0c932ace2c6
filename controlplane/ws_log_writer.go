package controlplane

import (
	"sync/atomic"
	"time"

	"sita/protocol"

	"golang.org/x/time/rate"
)

const (
	defaultLogRate  = 50 // entries per second
	defaultLogBurst = 200
)

// WSLogWriter implements core.LogWriter by sending log entries over the
// control plane WebSocket. Entries are tagged with whatever session is active
// when they are written. A chatty component cannot flood the socket: entries past
// the rate limit are dropped and the count rides on the next entry that gets through.
type WSLogWriter struct {
	client  *Client
	session func() string
	limiter *rate.Limiter
	dropped atomic.Int64
}

// NewWSLogWriter creates a LogWriter that routes logs to the control plane.
// session reports the active session id; it may be nil.
func NewWSLogWriter(client *Client, session func() string) *WSLogWriter {
	if session == nil {
		session = func() string { return "" }
	}
	return &WSLogWriter{
		client:  client,
		session: session,
		limiter: rate.NewLimiter(rate.Limit(defaultLogRate), defaultLogBurst),
	}
}

func (w *WSLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	if !w.limiter.Allow() {
		w.dropped.Add(1)
		return
	}
	clean := make(map[string]interface{}, len(attrs)+1)
	for k, v := range attrs {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		clean[k] = v
	}
	if n := w.dropped.Swap(0); n > 0 {
		clean["dropped_before"] = n
	}
	w.client.SendLog(w.session(), protocol.LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     clean,
	})
}

// Close signals the end of the log stream.
func (w *WSLogWriter) Close() {
	w.client.SendLogEnd(w.session())
}
