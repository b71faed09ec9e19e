package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for SMB spans.
const (
	AttrClientAddr   = "client.address"
	AttrSMBCommand   = "smb.command"
	AttrSMBMessageID = "smb.message_id"
	AttrSMBSessionID = "smb.session_id"
	AttrSMBTreeID    = "smb.tree_id"
	AttrSMBStatus    = "smb.status"
	AttrSMBRelated   = "smb.related"
	AttrSMBShare     = "smb.share"
)

// spanSMBPrefix prefixes the command name in span names.
const spanSMBPrefix = "smb."

func ClientAddr(addr string) attribute.KeyValue { return attribute.String(AttrClientAddr, addr) }

func SMBCommand(name string) attribute.KeyValue { return attribute.String(AttrSMBCommand, name) }

func SMBMessageID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrSMBMessageID, int64(id))
}

func SMBSessionID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrSMBSessionID, int64(id))
}

func SMBTreeID(id uint32) attribute.KeyValue { return attribute.Int64(AttrSMBTreeID, int64(id)) }

func SMBShare(name string) attribute.KeyValue { return attribute.String(AttrSMBShare, name) }

// CommandSpan describes one dispatched SMB2 command.
type CommandSpan struct {
	Command   string
	MessageID uint64
	SessionID uint64
	TreeID    uint32
	Related   bool
}

// StartCommandSpan starts a span named "smb.<COMMAND>".
func StartCommandSpan(ctx context.Context, c CommandSpan) (context.Context, trace.Span) {
	return StartSpan(ctx, spanSMBPrefix+c.Command,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			SMBCommand(c.Command),
			SMBMessageID(c.MessageID),
			SMBSessionID(c.SessionID),
			SMBTreeID(c.TreeID),
			attribute.Bool(AttrSMBRelated, c.Related),
		))
}

// EndCommandSpan records the NT status on span and ends it. Statuses the
// caller flags as failures mark the span as an error.
func EndCommandSpan(span trace.Span, status string, failed bool) {
	span.SetAttributes(attribute.String(AttrSMBStatus, status))
	if failed {
		span.SetStatus(codes.Error, status)
	}
	span.End()
}
