package transport

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrOutboxClosed = errors.New("OUTBOX_CLOSED: connection is gone")

// Outbox holds at most one undelivered payload for a connection. A newer
// payload replaces the pending one, so a slow reader only ever receives the
// latest snapshot.
type Outbox struct {
	mu      sync.Mutex
	pending []byte
	has     bool

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func NewOutbox() *Outbox {
	return &Outbox{
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Put stores payload and reports whether an undelivered payload was dropped.
func (o *Outbox) Put(payload []byte) (replaced bool) {
	o.mu.Lock()
	replaced = o.has
	o.pending, o.has = payload, true
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return replaced
}

// Take blocks until a payload is available, the outbox is closed, or ctx is
// done.
func (o *Outbox) Take(ctx context.Context) ([]byte, error) {
	for {
		o.mu.Lock()
		if o.has {
			payload := o.pending
			o.pending, o.has = nil, false
			o.mu.Unlock()
			return payload, nil
		}
		o.mu.Unlock()

		select {
		case <-o.ready:
		case <-o.closed:
			return nil, ErrOutboxClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close wakes any waiting Take; once nothing is pending, Take fails with
// ErrOutboxClosed.
func (o *Outbox) Close() {
	o.closeOnce.Do(func() { close(o.closed) })
}
