package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Why: three snapshots queued back to back must collapse to the newest one;
// the reader never sees an intermediate state.
func TestOutboxKeepsOnlyLatest(t *testing.T) {
	assert := assert.New(t)
	outbox := NewOutbox()

	assert.False(outbox.Put([]byte("snapshot-1")))
	assert.True(outbox.Put([]byte("snapshot-2")))
	assert.True(outbox.Put([]byte("snapshot-3")))

	payload, err := outbox.Take(context.Background())
	assert.NoError(err)
	assert.Equal("snapshot-3", string(payload))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = outbox.Take(ctx)
	assert.ErrorIs(err, context.DeadlineExceeded, "nothing else is pending")
}

func TestOutboxWakesWaitingReader(t *testing.T) {
	outbox := NewOutbox()
	got := make(chan string, 1)

	go func() {
		payload, err := outbox.Take(context.Background())
		if err == nil {
			got <- string(payload)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	outbox.Put([]byte("late"))

	select {
	case payload := <-got:
		assert.Equal(t, "late", payload)
	case <-time.After(time.Second):
		t.Fatal("reader never woke up")
	}
}

func TestOutboxClose(t *testing.T) {
	outbox := NewOutbox()
	outbox.Close()
	outbox.Close()

	_, err := outbox.Take(context.Background())
	assert.ErrorIs(t, err, ErrOutboxClosed)
}
