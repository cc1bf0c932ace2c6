package core

import (
	"context"
	"sync"
)

// CancellationToken is a one-shot stop flag shared between a command surface and a worker.
// Cancel may be called any number of times from any goroutine.
type CancellationToken struct {
	once sync.Once
	done chan struct{}
}

func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

func (t *CancellationToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

func (t *CancellationToken) IsCancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done is closed once Cancel has been called.
func (t *CancellationToken) Done() <-chan struct{} {
	return t.done
}

// Context derives a context that is cancelled with the token or the parent.
// The returned CancelFunc must be called to release the watcher goroutine.
func (t *CancellationToken) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
