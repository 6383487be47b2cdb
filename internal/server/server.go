// Package server assembles a game server: the session machine, the framed
// TCP transport, the HTTP status and websocket endpoints and the optional
// event feed.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"ohhell-server/internal/config"
	"ohhell-server/internal/events"
	"ohhell-server/internal/session"
	"ohhell-server/internal/transport"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

var ErrNoApprover = errors.New("NO_APPROVER: manual approval is enabled but nobody can approve")

const (
	shutdownTimeout = 5 * time.Second
	// inboxPerSeat bounds queued session events per seat.
	inboxPerSeat = 32
)

type Server struct {
	cfg        config.Config
	engineCfgs []session.EngineCfg
	approve    transport.Approver
	publisher  events.Publisher
	limiter    *RateLimiter

	engine    *session.Engine
	machine   *session.Machine
	transport *transport.Server
	router    http.Handler

	connCtx context.Context
}

// Cfg configures a Server.
type Cfg func(*Server) error

// WithApprover asks approve about every new connection.
func WithApprover(approve transport.Approver) Cfg {
	return func(s *Server) error {
		s.approve = approve
		return nil
	}
}

// WithPublisher sends lifecycle events to p.
func WithPublisher(p events.Publisher) Cfg {
	return func(s *Server) error {
		s.publisher = p
		return nil
	}
}

// WithEngine passes options to the session engine.
func WithEngine(cfgs ...session.EngineCfg) Cfg {
	return func(s *Server) error {
		s.engineCfgs = append(s.engineCfgs, cfgs...)
		return nil
	}
}

// WithRateLimit bounds HTTP requests per client address.
func WithRateLimit(maxRequests int, window time.Duration) Cfg {
	return func(s *Server) error {
		if maxRequests < 1 || window <= 0 {
			return errors.New("rate limit must be positive")
		}
		s.limiter = NewRateLimiter(maxRequests, window)
		return nil
	}
}

func New(c config.Config, cfgs ...Cfg) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	bidding, err := session.ParseBiddingSystem(c.Bidding)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       c,
		publisher: events.Nop{},
		limiter:   NewRateLimiter(20, time.Second),
	}
	for _, cfg := range cfgs {
		if err := cfg(s); err != nil {
			return nil, errors.Wrap(err, "apply Server cfg failed")
		}
	}
	if c.ManualApproval && s.approve == nil {
		return nil, ErrNoApprover
	}

	s.engine, err = session.NewEngine(c.Players, bidding, s.engineCfgs...)
	if err != nil {
		return nil, errors.Wrap(err, "new engine failed")
	}
	s.machine, err = session.NewMachine(s.engine,
		session.WithObserver(s.observe),
		session.WithInboxSize(inboxPerSeat*c.Players),
	)
	if err != nil {
		return nil, errors.Wrap(err, "new machine failed")
	}

	tcfgs := []transport.Cfg{
		transport.WithSlots(c.Players),
		transport.WithLivenessTimeout(c.LivenessTimeout),
		transport.WithPassword(c.Password),
	}
	if c.ManualApproval {
		tcfgs = append(tcfgs, transport.WithApprover(s.approve))
	}
	s.transport, err = transport.NewServer(s.machine, tcfgs...)
	if err != nil {
		return nil, errors.Wrap(err, "new transport failed")
	}
	s.machine.SetExporter(s.transport)
	s.router = s.routes()
	return s, nil
}

func (s *Server) observe(b session.Bump, st session.Status) {
	logger.WithFields(logrus.Fields{
		"trigger": b.Trigger,
		"value":   b.Value,
		"phase":   st.Phase,
	}).Info("trigger")
	if err := s.publisher.Publish(events.NewEvent(b, st)); err != nil {
		logger.WithError(err).Warn("publish event failed")
	}
}

// Handler serves the HTTP endpoints.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Status() session.Status {
	return s.machine.Status()
}

// Run listens on the configured addresses until the tournament ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s failed", s.cfg.Addr)
	}
	var httpLn net.Listener
	if s.cfg.HTTPAddr != "" {
		httpLn, err = net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return errors.Wrapf(err, "listen on %s failed", s.cfg.HTTPAddr)
		}
	}
	return s.Serve(ctx, ln, httpLn)
}

// Serve runs the session on the given listeners. httpLn may be nil. It
// returns nil when the tournament finishes or ctx is cancelled, and
// session.ErrPlayerLeft when a game is abandoned.
func (s *Server) Serve(ctx context.Context, ln, httpLn net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	s.connCtx = gctx

	logger.WithFields(logrus.Fields{
		"addr":    ln.Addr().String(),
		"players": s.cfg.Players,
		"bidding": s.cfg.Bidding,
		"secured": s.cfg.Password != "",
	}).Info("game server listening")

	g.Go(func() error {
		if err := s.machine.Run(gctx); err != nil {
			return err
		}
		cancel()
		return nil
	})
	g.Go(func() error {
		return s.transport.Serve(gctx, ln)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.limiter.Cleanup()
			}
		}
	})

	if httpLn != nil {
		httpServer := &http.Server{
			Handler:      s.router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		logger.WithField("addr", httpLn.Addr().String()).Info("http listening")
		g.Go(func() error {
			if err := httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "http server failed")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			// Hijacked websocket connections are closed by the transport.
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if cerr := s.publisher.Close(); cerr != nil {
		logger.WithError(cerr).Warn("close event publisher failed")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
