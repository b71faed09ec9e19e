package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped fields that the *Ctx helpers prepend
// to every record.
type LogContext struct {
	TraceID    string
	SpanID     string
	Command    string // SMB2 command name
	ClientAddr string
	SessionID  uint64
	TreeID     uint32
	MessageID  uint64
	Share      string
	StartTime  time.Time
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext stored in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a client connection.
func NewLogContext(clientAddr string) *LogContext {
	return &LogContext{
		ClientAddr: clientAddr,
		StartTime:  time.Now(),
	}
}

// Clone returns a shallow copy.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithRequest returns a copy scoped to one SMB2 request.
func (lc *LogContext) WithRequest(command string, messageID, sessionID uint64, treeID uint32) *LogContext {
	c := lc.Clone()
	if c == nil {
		c = &LogContext{}
	}
	c.Command = command
	c.MessageID = messageID
	c.SessionID = sessionID
	c.TreeID = treeID
	c.StartTime = time.Now()
	return c
}

// WithShare returns a copy with the share set.
func (lc *LogContext) WithShare(share string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Share = share
	}
	return c
}

// WithTrace returns a copy with trace identifiers set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
