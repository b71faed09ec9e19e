package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys. Use these consistently so log lines can be queried
// across connections and sessions.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Protocol
	KeyCommand   = "command"    // SMB2 command name: CREATE, READ, ...
	KeyMessageID = "message_id" // SMB2 MessageId
	KeyAsyncID   = "async_id"   // SMB2 AsyncId of a pending operation
	KeyStatus    = "status"     // NT status, rendered by name
	KeyDialect   = "dialect"
	KeyCredits   = "credits"

	// Session and tree
	KeySessionID = "session_id"
	KeyTreeID    = "tree_id"
	KeyFileID    = "file_id" // persistent part of an SMB2 FileId
	KeyShare     = "share"
	KeyUsername  = "username"
	KeyDomain    = "domain"
	KeyGuest     = "guest"

	// Connection
	KeyClient       = "client" // remote address
	KeyConnectionID = "connection_id"

	// Files
	KeyPath         = "path"
	KeyNewPath      = "new_path"
	KeyOffset       = "offset"
	KeyCount        = "count"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyInfoClass    = "info_class"

	// Misc
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyBackend    = "backend"
)

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr  { return slog.String(KeySpanID, id) }

// Command returns the command-name attribute.
func Command(name string) slog.Attr { return slog.String(KeyCommand, name) }

func MessageID(id uint64) slog.Attr { return slog.Uint64(KeyMessageID, id) }
func AsyncID(id uint64) slog.Attr   { return slog.Uint64(KeyAsyncID, id) }

// Status renders any value with a String method (NT status codes) under the status key.
func Status(s fmt.Stringer) slog.Attr { return slog.String(KeyStatus, s.String()) }

func SessionID(id uint64) slog.Attr { return slog.Uint64(KeySessionID, id) }
func TreeID(id uint32) slog.Attr    { return slog.Uint64(KeyTreeID, uint64(id)) }

// FileID formats a persistent file ID as hex, the way packet captures show it.
func FileID(id uint64) slog.Attr { return slog.String(KeyFileID, fmt.Sprintf("0x%016x", id)) }

func Share(name string) slog.Attr    { return slog.String(KeyShare, name) }
func Username(name string) slog.Attr { return slog.String(KeyUsername, name) }
func Client(addr string) slog.Attr   { return slog.String(KeyClient, addr) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func NewPath(p string) slog.Attr     { return slog.String(KeyNewPath, p) }
func Offset(off uint64) slog.Attr    { return slog.Uint64(KeyOffset, off) }
func Count(c uint32) slog.Attr       { return slog.Uint64(KeyCount, uint64(c)) }
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns an error attribute; a nil error yields an empty attribute that handlers skip.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
