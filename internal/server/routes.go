package server

import (
	"context"
	"net"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// routes serves the JSON endpoints through gin and the websocket endpoint
// from a plain mux. websocket.Accept hijacks the connection after writing
// the upgrade headers, which gin's response writer refuses once anything
// has been written through it.
func (s *Server) routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), ginLogger(), s.limiter.Middleware())
	r.GET("/health", s.healthHandler)
	r.GET("/status", s.statusHandler)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.websocketHandler)
	mux.Handle("/", r)
	return mux
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.transport.Connections(),
		"players":     s.cfg.Players,
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.machine.Status())
}

// websocketHandler carries the framed game protocol inside binary websocket
// messages, so browser clients join the same table as TCP clients.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !s.limiter.Allow(remote) {
		http.Error(w, "RATE_LIMITED: too many requests", http.StatusTooManyRequests)
		return
	}

	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.WithError(err).WithField("remote", remote).Warn("websocket accept failed")
		return
	}

	ctx := s.connCtx
	if ctx == nil {
		ctx = r.Context()
	}
	conn := websocket.NetConn(context.Background(), socket, websocket.MessageBinary)
	if err := s.transport.ServeConn(ctx, conn); err != nil {
		logger.WithError(err).WithField("remote", remote).Info("websocket connection ended")
	}
}
