package smb

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"time"

	smb "github.com/marmos91/dittosmb/internal/adapter/smb"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/handlers"
	"github.com/marmos91/dittosmb/internal/logger"
)

// closeTimeout bounds the cleanup of sessions and handles after a
// connection ends.
const closeTimeout = 30 * time.Second

// errConnectionClosed is returned by SendAsync after the connection ended.
var errConnectionClosed = errors.New("connection closed")

// connection serves one client. Requests are processed in arrival order
// on the connection goroutine; only change-notify completions write from
// other goroutines, through SendAsync.
type connection struct {
	server     *Server
	id         uint64
	conn       net.Conn
	remoteAddr string
	state      *handlers.ConnectionState
	writeMu    smb.LockedWriter
}

func newConnection(s *Server, id uint64, nc net.Conn) *connection {
	c := &connection{
		server:     s,
		id:         id,
		conn:       nc,
		remoteAddr: nc.RemoteAddr().String(),
	}
	c.state = handlers.NewConnectionState(id, c.remoteAddr, nc,
		logger.With(logger.KeyClient, c.remoteAddr, logger.KeyConnectionID, id))
	c.state.Async = c
	return c
}

// serve runs the read, dispatch, write loop until the client leaves, a
// transport or protocol error occurs, or ctx is cancelled.
func (c *connection) serve(ctx context.Context) {
	defer c.finish()

	ctx = logger.WithContext(ctx, logger.NewLogContext(c.remoteAddr))
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	cfg := c.server.config
	for {
		if ctx.Err() != nil {
			logger.Debug("SMB connection closed by shutdown", logger.KeyClient, c.remoteAddr)
			return
		}

		frame, err := smb.ReadFrame(ctx, c.conn, cfg.MaxMessageSize, c.readTimeout())
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.handleFrame(ctx, frame) {
			return
		}
	}
}

// readTimeout is the deadline for the next frame. Waiting for a request
// counts as idle time when an idle timeout is set.
func (c *connection) readTimeout() time.Duration {
	if t := c.server.config.Timeouts.Idle; t > 0 {
		return t
	}
	return c.server.config.Timeouts.Read
}

// handleFrame dispatches one frame and writes the response. It returns
// false when the connection must close.
func (c *connection) handleFrame(ctx context.Context, frame []byte) bool {
	res, err := smb.ProcessFrame(ctx, c.server.handler, c.state, frame, c.server.metrics)
	if err != nil {
		if errors.Is(err, handlers.ErrProtocolViolation) {
			c.server.metrics.protocolViolation()
			logger.Info("SMB protocol violation, closing connection",
				logger.KeyClient, c.remoteAddr, logger.KeyError, err)
		} else {
			logger.Debug("Error processing SMB frame",
				logger.KeyClient, c.remoteAddr, logger.KeyError, err)
		}
		return false
	}

	if res.Payload != nil {
		if err := smb.WriteFrame(c.conn, &c.writeMu, c.server.config.Timeouts.Write, res.Payload); err != nil {
			logger.Debug("Error writing SMB response",
				logger.KeyClient, c.remoteAddr, logger.KeyError, err)
			return false
		}
	}
	for _, fn := range res.AfterSend {
		fn()
	}
	return !c.state.Closed()
}

// SendAsync writes an async completion. It is called from store watcher
// goroutines and shares the write lock with the request loop.
func (c *connection) SendAsync(resp *handlers.Response) error {
	if c.state.Closed() {
		return errConnectionClosed
	}
	resp.Header.NextCommand = 0
	return smb.WriteFrame(c.conn, &c.writeMu, c.server.config.Timeouts.Write, resp.Bytes())
}

func (c *connection) logReadError(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("SMB connection closed by client", logger.KeyClient, c.remoteAddr)
	case errors.Is(err, smb.ErrSMB1):
		logger.Info("SMB1 request rejected, closing connection", logger.KeyClient, c.remoteAddr)
	case errors.Is(err, context.Canceled):
		logger.Debug("SMB connection cancelled", logger.KeyClient, c.remoteAddr)
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Debug("SMB connection timed out", logger.KeyClient, c.remoteAddr, logger.KeyError, err)
	default:
		logger.Debug("Error reading SMB frame", logger.KeyClient, c.remoteAddr, logger.KeyError, err)
	}
}

// finish recovers a panic, closes the socket and releases every session,
// tree, handle and pending notification the connection owned.
func (c *connection) finish() {
	if r := recover(); r != nil {
		logger.Error("Panic in SMB connection handler",
			logger.KeyClient, c.remoteAddr,
			logger.KeyError, r,
			"stack", string(debug.Stack()))
	}

	_ = c.state.Close()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	c.server.handler.CloseConnection(ctx, c.state)
}
