// Package transport carries framed messages between the game server and its
// clients over TCP or websocket connections.
package transport

import (
	"net"
	"sync"

	"ohhell-server/internal/wire"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// Conn is an authenticated framed channel. Writes may come from several
// goroutines; reads must come from one.
type Conn struct {
	id  string
	raw net.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func NewConn(raw net.Conn) *Conn {
	return &Conn{
		id:     uuid.New().String(),
		raw:    raw,
		closed: make(chan struct{}),
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

// Send writes payload as one data frame.
func (c *Conn) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteFrame(c.raw, payload)
}

// SendControl writes a control frame carrying token.
func (c *Conn) SendControl(token string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteControl(c.raw, token)
}

// Receive blocks for the next frame, data or control.
func (c *Conn) Receive() (wire.Frame, error) {
	return wire.ReadFrame(c.raw)
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// Close shuts down both directions of the socket, then releases it. Safe to
// call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if hc, ok := c.raw.(halfCloser); ok {
			_ = hc.CloseRead()
			_ = hc.CloseWrite()
		}
		err = c.raw.Close()
	})
	return err
}

// Terminate tells the peer the session is over and closes the connection.
func (c *Conn) Terminate() error {
	if err := c.SendControl(wire.Terminate); err != nil {
		logger.WithError(err).WithField("conn", c.id).Debug("send terminate failed")
	}
	return c.Close()
}
