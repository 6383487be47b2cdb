package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"ohhell-server/internal/handshake"
	"ohhell-server/internal/protocol"
	"ohhell-server/internal/wire"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultLivenessTimeout is how long a connection may stay silent before it
// is considered broken.
const DefaultLivenessTimeout = 10 * time.Second

var (
	ErrNotApproved      = errors.New("NOT_APPROVED: connection declined by operator")
	ErrTerminated       = errors.New("TERMINATED: peer ended the session")
	ErrLivenessTimeout  = errors.New("LIVENESS_TIMEOUT: no traffic within the timeout window")
	ErrHandlerRequested = errors.New("CLOSE_REQUESTED: session asked to drop the connection")
)

// Handler receives connection events and decoded commands. Calls for one
// slot never overlap.
type Handler interface {
	Connected(slot int)
	HandleClientMessage(slot int, cmd protocol.Command) protocol.Effect
	Disconnected(slot int)
}

// Approver decides whether a new connection from remote may proceed.
type Approver func(remote string) bool

// Server accepts game connections and moves frames between them and a
// Handler.
type Server struct {
	handler  Handler
	password string
	approve  Approver
	timeout  time.Duration
	slots    int

	connections *ConnectionManager
	health      *ConnectionHealth

	mu       sync.Mutex
	outboxes map[int]*Outbox
}

// Cfg configures a Server.
type Cfg func(*Server) error

// WithPassword requires the handshake on every connection.
func WithPassword(password string) Cfg {
	return func(s *Server) error {
		if password == "" {
			return nil
		}
		if err := handshake.ValidatePassword(password); err != nil {
			return err
		}
		s.password = password
		return nil
	}
}

// WithApprover asks approve before admitting each connection.
func WithApprover(approve Approver) Cfg {
	return func(s *Server) error {
		s.approve = approve
		return nil
	}
}

func WithLivenessTimeout(timeout time.Duration) Cfg {
	return func(s *Server) error {
		if timeout <= 0 {
			return errors.New("liveness timeout must be positive")
		}
		s.timeout = timeout
		return nil
	}
}

// WithSlots sets how many connections may be live at once.
func WithSlots(n int) Cfg {
	return func(s *Server) error {
		if n < 1 {
			return errors.New("slots must be positive")
		}
		s.slots = n
		return nil
	}
}

// NewServer creates a new Server with the given configuration.
func NewServer(handler Handler, cfgs ...Cfg) (*Server, error) {
	s := &Server{
		handler:  handler,
		timeout:  DefaultLivenessTimeout,
		slots:    6,
		health:   NewConnectionHealth(),
		outboxes: make(map[int]*Outbox),
	}
	for _, cfg := range cfgs {
		if err := cfg(s); err != nil {
			return nil, errors.Wrap(err, "apply Server cfg failed")
		}
	}
	s.connections = NewConnectionManager(s.slots)
	return s, nil
}

// Serve accepts connections from ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			raw, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return errors.Wrap(err, "accept failed")
			}
			go func() {
				if err := s.ServeConn(gctx, raw); err != nil {
					logger.WithError(err).WithField("remote", raw.RemoteAddr().String()).Info("connection ended")
				}
			}()
		}
	})
	err := g.Wait()
	s.Shutdown()
	return err
}

// ServeConn runs one connection to completion: approval, handshake, slot
// assignment, then the reader, writer and keep-alive until any of them
// fails.
func (s *Server) ServeConn(ctx context.Context, raw net.Conn) error {
	remote := raw.RemoteAddr().String()
	if s.approve != nil && !s.approve(remote) {
		_ = raw.Close()
		return ErrNotApproved
	}

	if s.password != "" {
		if err := handshake.Server(raw, s.password, s.timeout); err != nil {
			_ = raw.Close()
			return errors.Wrap(err, "handshake failed")
		}
	}

	conn := NewConn(raw)
	slot, err := s.connections.AddConnection(conn)
	if err != nil {
		_ = conn.Terminate()
		return err
	}
	fields := logrus.Fields{"conn": conn.ID(), "slot": slot, "remote": remote}
	logger.WithFields(fields).Info("connection admitted")

	outbox := NewOutbox()
	s.mu.Lock()
	s.outboxes[slot] = outbox
	s.mu.Unlock()
	s.health.UpdateActivity(conn.ID())

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		if s.outboxes[slot] == outbox {
			delete(s.outboxes, slot)
		}
		s.mu.Unlock()
		outbox.Close()
		s.health.RemoveConnection(conn.ID())
		// The slot stays reserved until the handler has seen the disconnect.
		s.handler.Disconnected(slot)
		s.connections.RemoveConnection(conn.ID())
		logger.WithFields(fields).Info("connection closed")
	}()

	s.handler.Connected(slot)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-conn.Done():
		}
		return conn.Close()
	})
	g.Go(func() error {
		return s.read(conn, slot)
	})
	g.Go(func() error {
		for {
			payload, err := outbox.Take(gctx)
			if err != nil {
				return err
			}
			if err := conn.Send(payload); err != nil {
				return errors.Wrap(err, "send failed")
			}
		}
	})
	g.Go(func() error {
		return keepAlive(gctx, conn, s.health, s.timeout)
	})
	return g.Wait()
}

// read handles one frame at a time. Pings are answered inline and every
// frame counts as activity. A payload that does not parse is a protocol
// error and ends the connection.
func (s *Server) read(conn *Conn, slot int) error {
	for {
		frame, err := conn.Receive()
		if err != nil {
			return errors.Wrap(err, "receive failed")
		}
		s.health.UpdateActivity(conn.ID())

		if frame.IsControl() {
			switch frame.Control {
			case wire.Ping:
				if err := conn.SendControl(wire.Pong); err != nil {
					return errors.Wrap(err, "pong failed")
				}
			case wire.Terminate:
				return ErrTerminated
			}
			continue
		}

		cmd, err := protocol.ParseCommand(string(frame.Payload))
		if err != nil {
			return err
		}
		if s.handler.HandleClientMessage(slot, cmd) == protocol.EffectClose {
			return ErrHandlerRequested
		}
	}
}

// Queue hands payload to the slot's writer, replacing any payload it has
// not sent yet. It returns false when the slot has no live connection.
func (s *Server) Queue(slot int, payload []byte) bool {
	s.mu.Lock()
	outbox, ok := s.outboxes[slot]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if outbox.Put(payload) {
		logger.WithField("slot", slot).Trace("replaced undelivered payload")
	}
	return true
}

// Drop terminates the connection holding slot.
func (s *Server) Drop(slot int) bool {
	conn := s.connections.GetConnectionBySlot(slot)
	if conn == nil {
		return false
	}
	_ = conn.Terminate()
	return true
}

// Connections returns the number of admitted connections.
func (s *Server) Connections() int {
	return s.connections.Count()
}

// Shutdown sends the terminate token on every connection and closes it.
func (s *Server) Shutdown() {
	for _, conn := range s.connections.All() {
		_ = conn.Terminate()
	}
}
