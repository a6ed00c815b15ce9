// Package simulator runs the analyzer simulation: a TCP server speaking the
// LIS1-A link protocol on every accepted connection, a sink forwarding
// received messages to an OpenELIS bridge, an outbound push engine, and an
// HTTP control surface with health, template, push, and metrics endpoints.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/lis1"
	"github.com/openlis/astmsim/logger"
	"github.com/openlis/astmsim/template"
)

// Server defaults.
const (
	DefaultListenAddr  = ":5000"
	DefaultMaxSessions = 10
)

// Server accepts analyzer-link connections and runs one LIS1-A session per
// connection, all answering field queries from the same template.
type Server struct {
	tpl     *template.Template
	addr    string
	maxSess int

	sessionOpts []lis1.SessionOption
	sessionCfg  *lis1.SessionConfig
	handler     lis1.MessageHandler
	sink        *Sink

	ln       net.Listener
	taskMgr  *TaskManager
	sessions *xsync.MapOf[uint64, *lis1.Session]
	nextID   atomic.Uint64
	active   atomic.Int64
	started  atomic.Bool
	startAt  time.Time

	metrics *lis1.SessionMetrics
	logger  logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithListenAddr sets the TCP listen address, ":5000" by default.
func WithListenAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithMaxSessions bounds concurrent analyzer-link sessions. Connections
// beyond the bound are closed immediately after accept.
func WithMaxSessions(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxSess = n
		}
	}
}

// WithSessionOptions passes additional options to every session's
// configuration, typically timeouts and the response delay.
func WithSessionOptions(opts ...lis1.SessionOption) ServerOption {
	return func(s *Server) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// WithSink forwards every finalized inbound message to sink.
func WithSink(sink *Sink) ServerOption {
	return func(s *Server) { s.sink = sink }
}

// WithMessageHandler adds a handler invoked with every finalized inbound
// message, before sink delivery. The handler is shared by all sessions and
// must be safe for concurrent use.
func WithMessageHandler(h lis1.MessageHandler) ServerOption {
	return func(s *Server) { s.handler = h }
}

// WithServerLogger sets the server's logger.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server simulating the analyzer described by tpl.
func NewServer(tpl *template.Template, opts ...ServerOption) (*Server, error) {
	if tpl == nil {
		return nil, errors.New("simulator: template must not be nil")
	}

	s := &Server{
		tpl:      tpl,
		addr:     DefaultListenAddr,
		maxSess:  DefaultMaxSessions,
		sessions: xsync.NewMapOf[uint64, *lis1.Session](),
		metrics:  &lis1.SessionMetrics{},
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	sessionOpts := append([]lis1.SessionOption{},
		lis1.WithLogger(s.logger),
		lis1.WithMetrics(s.metrics),
		lis1.WithMessageHandler(s.dispatch),
		lis1.WithQueryResponder(s.respond),
	)
	sessionOpts = append(sessionOpts, s.sessionOpts...)

	cfg, err := lis1.NewSessionConfig(sessionOpts...)
	if err != nil {
		return nil, err
	}
	s.sessionCfg = cfg

	return s, nil
}

// Start binds the listener and launches the accept loop and, when a sink is
// configured, its forwarder. It returns once the server is accepting.
func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("simulator: server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("simulator: listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.startAt = time.Now()
	s.taskMgr = NewTaskManager(ctx, s.logger)

	if s.sink != nil {
		if err := s.sink.Attach(s.taskMgr.Context(), s.taskMgr); err != nil {
			_ = ln.Close()
			s.started.Store(false)

			return err
		}
	}

	if err := s.taskMgr.Start("acceptLoop", s.acceptTask); err != nil {
		_ = ln.Close()
		s.started.Store(false)

		return err
	}

	s.logger.Info("simulator: listening",
		"addr", ln.Addr().String(),
		"analyzer", s.tpl.Analyzer.Name,
		"type", s.tpl.Type(),
		"max_sessions", s.maxSess)

	return nil
}

// Shutdown stops accepting, closes every live session, and waits for all
// server goroutines to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}

	s.logger.Info("simulator: shutting down")

	_ = s.ln.Close()
	s.sessions.Range(func(_ uint64, sess *lis1.Session) bool {
		_ = sess.Close()
		return true
	})
	s.taskMgr.Stop()

	done := make(chan struct{})
	go func() {
		s.taskMgr.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("simulator: shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("simulator: shutdown wait: %w", ctx.Err())
	}
}

// Addr returns the bound listen address, useful when the configured address
// carries port 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}

	return s.ln.Addr().String()
}

// ActiveSessions returns the number of live analyzer-link sessions.
func (s *Server) ActiveSessions() int64 {
	return s.active.Load()
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	if s.startAt.IsZero() {
		return 0
	}

	return time.Since(s.startAt)
}

// Metrics returns the session counters shared by every session.
func (s *Server) Metrics() *lis1.SessionMetrics {
	return s.metrics
}

// Template returns the analyzer template the server simulates.
func (s *Server) Template() *template.Template {
	return s.tpl
}

// acceptTask accepts one connection per call. It returns false once the
// listener closes.
func (s *Server) acceptTask() bool {
	conn, err := s.ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return false
		}
		s.logger.Error("simulator: accept failed", "error", err)

		return true
	}

	if s.active.Load() >= int64(s.maxSess) {
		s.logger.Warn("simulator: session limit reached, rejecting connection",
			"remote", conn.RemoteAddr().String(), "limit", s.maxSess)
		_ = conn.Close()

		return true
	}

	id := s.nextID.Add(1)
	sess := lis1.NewSession(conn, s.sessionCfg)
	s.sessions.Store(id, sess)
	s.active.Add(1)

	name := fmt.Sprintf("session-%d", id)
	err = s.taskMgr.Start(name, func() bool {
		s.serveSession(id, sess)
		return false
	})
	if err != nil {
		s.sessions.Delete(id)
		s.active.Add(-1)
		_ = sess.Close()
		s.logger.Error("simulator: session task start failed", "id", id, "error", err)
	}

	return true
}

// serveSession drives one session to completion and unregisters it.
func (s *Server) serveSession(id uint64, sess *lis1.Session) {
	defer func() {
		s.sessions.Delete(id)
		s.active.Add(-1)
	}()

	s.logger.Info("simulator: session opened",
		"id", id, "remote", sess.RemoteAddr(), "active", s.active.Load())

	err := sess.Serve(s.taskMgr.Context())
	switch {
	case err == nil:
		s.logger.Info("simulator: session closed", "id", id)
	case errors.Is(err, context.Canceled), errors.Is(err, lis1.ErrSessionClosed):
		s.logger.Debug("simulator: session stopped", "id", id)
	default:
		s.logger.Warn("simulator: session ended with error", "id", id, "error", err)
	}
}

// dispatch fans a finalized inbound message out to the configured handler
// and the sink.
func (s *Server) dispatch(msg *astm.Message) {
	if s.handler != nil {
		s.handler(msg)
	}
	if s.sink != nil {
		s.sink.Handle(msg)
	}
}

// respond builds the field query answer from the server's template.
func (s *Server) respond() *astm.Message {
	return generator.QueryResponse(s.tpl)
}
