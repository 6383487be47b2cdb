package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"ohhell-server/internal/handshake"
	"ohhell-server/internal/protocol"
	"ohhell-server/internal/wire"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var ErrClientClosed = errors.New("CLIENT_CLOSED: connection to server is gone")

// Client is the player's side of a game connection. Run drives the socket;
// Receive and Send exchange payloads with it through bounded queues.
type Client struct {
	conn    *Conn
	health  *ConnectionHealth
	timeout time.Duration

	inbound  chan []byte
	outbound chan []byte

	done    chan struct{}
	errOnce sync.Once
	err     error
}

// ClientCfg configures a Client.
type ClientCfg func(*Client) error

func WithClientLivenessTimeout(timeout time.Duration) ClientCfg {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.New("liveness timeout must be positive")
		}
		c.timeout = timeout
		return nil
	}
}

// WithQueueSize bounds the inbound and outbound queues.
func WithQueueSize(n int) ClientCfg {
	return func(c *Client) error {
		if n < 1 {
			return errors.New("queue size must be positive")
		}
		c.inbound = make(chan []byte, n)
		c.outbound = make(chan []byte, n)
		return nil
	}
}

// Dial connects to a TCP game server.
func Dial(ctx context.Context, addr, password string, cfgs ...ClientCfg) (*Client, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s failed", addr)
	}
	return NewClient(raw, password, cfgs...)
}

// DialWebSocket connects to a game server's websocket endpoint. The framed
// protocol runs unchanged inside binary websocket messages.
func DialWebSocket(ctx context.Context, url, password string, cfgs ...ClientCfg) (*Client, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s failed", url)
	}
	return NewClient(websocket.NetConn(context.Background(), ws, websocket.MessageBinary), password, cfgs...)
}

// NewClient authenticates over raw when a password is given and wraps it.
func NewClient(raw net.Conn, password string, cfgs ...ClientCfg) (*Client, error) {
	c := &Client{
		health:   NewConnectionHealth(),
		timeout:  DefaultLivenessTimeout,
		inbound:  make(chan []byte, 8),
		outbound: make(chan []byte, 8),
		done:     make(chan struct{}),
	}
	for _, cfg := range cfgs {
		if err := cfg(c); err != nil {
			_ = raw.Close()
			return nil, errors.Wrap(err, "apply Client cfg failed")
		}
	}
	if password != "" {
		if err := handshake.Client(raw, password, c.timeout); err != nil {
			_ = raw.Close()
			return nil, errors.Wrap(err, "handshake failed")
		}
	}
	c.conn = NewConn(raw)
	return c, nil
}

// Run moves frames until the connection fails, the server terminates the
// session, or ctx is cancelled. It always closes the connection.
func (c *Client) Run(ctx context.Context) error {
	c.health.UpdateActivity(c.conn.ID())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-c.conn.Done():
		}
		return c.conn.Close()
	})
	g.Go(func() error {
		return c.read(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case payload := <-c.outbound:
				if err := c.conn.Send(payload); err != nil {
					return errors.Wrap(err, "send failed")
				}
			}
		}
	})
	g.Go(func() error {
		return keepAlive(gctx, c.conn, c.health, c.timeout)
	})

	err := g.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		err = ErrClientClosed
	}
	c.finish(err)
	return err
}

// read answers pings, stops on the terminate token and queues payloads for
// Receive.
func (c *Client) read(ctx context.Context) error {
	for {
		frame, err := c.conn.Receive()
		if err != nil {
			return errors.Wrap(err, "receive failed")
		}
		c.health.UpdateActivity(c.conn.ID())

		if frame.IsControl() {
			switch frame.Control {
			case wire.Ping:
				if err := c.conn.SendControl(wire.Pong); err != nil {
					return errors.Wrap(err, "pong failed")
				}
			case wire.Terminate:
				return ErrTerminated
			}
			continue
		}

		select {
		case c.inbound <- frame.Payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) finish(err error) {
	c.errOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Receive returns the next payload from the server. Payloads that arrived
// before the connection ended are still delivered.
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-c.inbound:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		select {
		case payload := <-c.inbound:
			return payload, nil
		default:
			return nil, c.err
		}
	}
}

// Send queues a command for the server.
func (c *Client) Send(ctx context.Context, cmd protocol.Command) error {
	select {
	case c.outbound <- []byte(cmd.Encode()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.err
	}
}

// Terminate sends the terminate token and closes the connection.
func (c *Client) Terminate() error {
	return c.conn.Terminate()
}

// Done is closed once Run has returned.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err is the reason Run stopped, or nil while it is running.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}
