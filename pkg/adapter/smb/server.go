// Package smb serves the SMB2 protocol core over TCP.
//
// Server owns the listener and the connection goroutines. Everything
// protocol-specific lives in internal/adapter/smb; this package only moves
// frames between sockets and the handler.
package smb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/handlers"
	"github.com/marmos91/dittosmb/internal/logger"
)

// ErrServerStopped is returned by Serve when Stop was called before it.
var ErrServerStopped = errors.New("smb: server stopped")

// Server accepts SMB2 connections and runs one goroutine per connection.
//
// Thread safety: all exported methods are safe for concurrent use. Stop is
// idempotent.
type Server struct {
	config  Config
	handler *handlers.Handler
	metrics *Metrics

	listener   net.Listener
	listenerMu sync.RWMutex
	ready      chan struct{}
	readyOnce  sync.Once

	// shutdown is closed once Stop or context cancellation begins shutdown.
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// requestCtx is the parent of every connection context. Cancelling it
	// aborts in-flight requests.
	requestCtx     context.Context
	cancelRequests context.CancelFunc

	connSemaphore chan struct{}
	activeConns   sync.WaitGroup
	connCount     atomic.Int32
	nextConnID    atomic.Uint64

	// conns maps connection ID to *connection for forced closure.
	conns sync.Map
}

// NewServer returns a stopped server. m may be nil.
func NewServer(cfg Config, h *handlers.Handler, m *Metrics) *Server {
	cfg.applyDefaults()

	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}
	logger.Debug("SMB connection limit", "max_connections", cfg.MaxConnections)

	requestCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:         cfg,
		handler:        h,
		metrics:        m,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		requestCtx:     requestCtx,
		cancelRequests: cancel,
		connSemaphore:  sem,
	}
}

// Serve listens on the configured address and serves until ctx is
// cancelled or Stop is called.
//
// Returns nil on graceful shutdown, or an error if the listener cannot be
// created or connections had to be force-closed.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.markReady()
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves connections accepted from ln. The server takes
// ownership of ln and closes it on shutdown.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	select {
	case <-s.shutdown:
		_ = ln.Close()
		s.markReady()
		return ErrServerStopped
	default:
	}

	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()
	s.markReady()

	logger.Info("SMB server listening", "address", ln.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("SMB shutdown signal received", logger.KeyError, ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics()
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := ln.Accept()
		if err != nil {
			s.release()
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			logger.Debug("Error accepting SMB connection", logger.KeyError, err)
			continue
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", logger.KeyError, err)
			}
		}

		s.startConnection(tcpConn)
	}
}

// startConnection tracks conn and serves it on its own goroutine.
func (s *Server) startConnection(nc net.Conn) {
	id := s.nextConnID.Add(1)
	c := newConnection(s, id, nc)

	s.activeConns.Add(1)
	active := s.connCount.Add(1)
	s.conns.Store(id, c)
	s.metrics.connectionAccepted(active)

	logger.Debug("SMB connection accepted",
		logger.KeyClient, c.remoteAddr, logger.KeyConnectionID, id, "active", active)

	go func() {
		defer func() {
			s.conns.Delete(id)
			remaining := s.connCount.Add(-1)
			s.metrics.connectionClosed(remaining)
			s.activeConns.Done()
			s.release()
			logger.Debug("SMB connection closed",
				logger.KeyClient, c.remoteAddr, logger.KeyConnectionID, id, "active", remaining)
		}()
		c.serve(s.requestCtx)
	}()
}

func (s *Server) release() {
	if s.connSemaphore != nil {
		<-s.connSemaphore
	}
}

func (s *Server) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// initiateShutdown stops accepting, interrupts blocked reads and cancels
// in-flight requests. Only the first call has an effect.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("SMB shutdown initiated")
		close(s.shutdown)

		s.listenerMu.RLock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Debug("Error closing SMB listener", logger.KeyError, err)
			}
		}
		s.listenerMu.RUnlock()

		s.interruptBlockingReads()
		s.cancelRequests()
	})
}

// interruptBlockingReads sets a short read deadline on every connection so
// idle readers notice the shutdown.
func (s *Server) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)
	s.conns.Range(func(_, v any) bool {
		c := v.(*connection)
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			logger.Debug("Error setting shutdown deadline",
				logger.KeyClient, c.remoteAddr, logger.KeyError, err)
		}
		return true
	})
}

// gracefulShutdown waits up to the shutdown timeout for connections to
// finish, then force-closes the rest.
func (s *Server) gracefulShutdown() error {
	logger.Info("SMB graceful shutdown: waiting for active connections",
		"active", s.connCount.Load(), "timeout", s.config.Timeouts.Shutdown)

	select {
	case <-s.connectionsDone():
		logger.Info("SMB graceful shutdown complete")
		return nil
	case <-time.After(s.config.Timeouts.Shutdown):
		remaining := s.connCount.Load()
		logger.Warn("SMB shutdown timeout exceeded, forcing closure",
			"active", remaining, "timeout", s.config.Timeouts.Shutdown)
		s.forceCloseConnections()
		return fmt.Errorf("smb shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *Server) connectionsDone() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	return done
}

func (s *Server) forceCloseConnections() {
	closed := 0
	s.conns.Range(func(_, v any) bool {
		c := v.(*connection)
		if err := c.conn.Close(); err == nil {
			closed++
			s.metrics.connectionForceClosed()
		}
		return true
	})
	if closed > 0 {
		logger.Info("Force-closed SMB connections", logger.KeyCount, closed)
	}
}

// Stop begins shutdown and waits until every connection has exited or ctx
// is done.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	select {
	case <-s.connectionsDone():
		return nil
	case <-ctx.Done():
		logger.Warn("SMB shutdown context cancelled",
			"active", s.connCount.Load(), logger.KeyError, ctx.Err())
		s.forceCloseConnections()
		return ctx.Err()
	}
}

// logMetrics logs a connection summary every MetricsLogInterval.
func (s *Server) logMetrics() {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("SMB metrics",
				"active_connections", s.connCount.Load(),
				"active_sessions", s.handler.ActiveSessions(),
				"open_files", s.handler.Opens.Len(),
				"pending_notifications", s.handler.Notify.Pending())
		}
	}
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	return int(s.connCount.Load())
}

// Addr returns the listening address. It blocks until Serve has created
// the listener, and returns "" if that failed.
func (s *Server) Addr() string {
	<-s.ready

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Listening reports whether the server has a listener and has not begun
// shutting down. It never blocks.
func (s *Server) Listening() bool {
	select {
	case <-s.shutdown:
		return false
	default:
	}
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	return s.listener != nil
}

// Handler returns the protocol handler the server dispatches to.
func (s *Server) Handler() *handlers.Handler {
	return s.handler
}
