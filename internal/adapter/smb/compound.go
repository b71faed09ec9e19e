package smb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/handlers"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/internal/telemetry"
)

// compoundAlignment is the boundary every chained response but the last is
// padded to [MS-SMB2] 3.3.4.1.3.
const compoundAlignment = 8

// CommandObserver receives the outcome of every dispatched command.
type CommandObserver interface {
	ObserveCommand(cmd types.Command, status types.Status, elapsed time.Duration)
}

// FrameResult is the outcome of one request frame.
type FrameResult struct {
	// Payload is the response frame, nil when nothing is to be sent (a
	// lone CANCEL).
	Payload []byte

	// AfterSend holds the callbacks to run once Payload is on the wire.
	AfterSend []func()

	// Commands is the number of requests dispatched.
	Commands int
}

// ProcessFrame dispatches every command of one request frame in order and
// joins the responses into a single compound response.
//
// **Related operations:**
//
// A request flagged RELATED_OPERATIONS inherits the SessionId and TreeId of
// the previous request when its own are zero, and a handle argument equal
// to the all-ones placeholder is replaced by the FileId the previous CREATE
// returned. Chain members are dispatched independently: a failure does not
// skip the commands that follow.
//
// **Errors:**
//
// A protocol violation aborts the frame and is returned; the handler has
// already closed the connection. A malformed chain stops at the bad command
// and the commands before it are answered.
//
// obs may be nil.
func ProcessFrame(
	ctx context.Context,
	h *handlers.Handler,
	state *handlers.ConnectionState,
	message []byte,
	obs CommandObserver,
) (*FrameResult, error) {
	cmds, splitErr := splitCompound(message)
	if len(cmds) == 0 {
		return nil, fmt.Errorf("parse SMB2 message: %w", splitErr)
	}
	if splitErr != nil {
		logger.Debug("truncated compound request",
			logger.KeyClient, state.RemoteAddr, logger.KeyError, splitErr)
	}

	var (
		responses   []*handlers.Response
		lastSession uint64
		lastTree    uint32
		lastFile    messages.FileID
		haveFile    bool
	)

	for i, cmd := range cmds {
		hdr := cmd.Header
		if hdr.IsResponse() {
			_ = state.Close()
			return nil, fmt.Errorf("%w: response flag set on request", handlers.ErrProtocolViolation)
		}

		related := i > 0 && hdr.IsRelated()
		if related {
			if hdr.SessionID == 0 {
				hdr.SessionID = lastSession
			}
			if hdr.TreeID == 0 && !hdr.IsAsync() {
				hdr.TreeID = lastTree
			}
		}

		logger.DebugCtx(ctx, "SMB2 request",
			logger.KeyCommand, hdr.Command.String(),
			logger.KeyMessageID, hdr.MessageID,
			logger.KeySessionID, hdr.SessionID,
			logger.KeyTreeID, hdr.TreeID,
			"related", related)

		resp, err := observeOne(ctx, obs, hdr, related, func(ctx context.Context) (*handlers.Response, error) {
			return dispatchOne(ctx, h, state, hdr, cmd.Body, related, lastFile, haveFile)
		})
		if err != nil {
			return nil, err
		}

		lastSession, lastTree = hdr.SessionID, hdr.TreeID
		if resp == nil {
			continue
		}
		if resp.Header.SessionID != 0 {
			lastSession = resp.Header.SessionID
		}
		if !resp.Header.IsAsync() && resp.Header.TreeID != 0 {
			lastTree = resp.Header.TreeID
		}
		if resp.FileID != (messages.FileID{}) {
			lastFile, haveFile = resp.FileID, true
		}
		responses = append(responses, resp)
	}

	return &FrameResult{
		Payload:   joinResponses(responses),
		AfterSend: afterSendOf(responses),
		Commands:  len(cmds),
	}, nil
}

// observeOne runs dispatch inside a command span and reports the outcome
// to obs. A CANCEL, which has no response, is reported as STATUS_SUCCESS.
func observeOne(
	ctx context.Context,
	obs CommandObserver,
	hdr *header.SMB2Header,
	related bool,
	dispatch func(context.Context) (*handlers.Response, error),
) (*handlers.Response, error) {
	start := time.Now()
	ctx, span := telemetry.StartCommandSpan(ctx, telemetry.CommandSpan{
		Command:   hdr.Command.String(),
		MessageID: hdr.MessageID,
		SessionID: hdr.SessionID,
		TreeID:    hdr.TreeID,
		Related:   related,
	})

	resp, err := dispatch(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		span.End()
		return nil, err
	}

	status := types.StatusSuccess
	if resp != nil {
		status = resp.Header.Status
	}
	telemetry.EndCommandSpan(span, status.String(), status.IsError())
	if obs != nil {
		obs.ObserveCommand(hdr.Command, status, time.Since(start))
	}
	return resp, nil
}

// dispatchOne decodes a request body and hands it to the handler. A body
// that does not decode still goes through the ordering, session and tree
// checks before it is answered with STATUS_INVALID_PARAMETER.
func dispatchOne(
	ctx context.Context,
	h *handlers.Handler,
	state *handlers.ConnectionState,
	hdr *header.SMB2Header,
	body []byte,
	related bool,
	lastFile messages.FileID,
	haveFile bool,
) (*handlers.Response, error) {
	req, err := messages.DecodeRequest(hdr.Command, body)
	if err != nil {
		return h.DispatchMalformed(state, hdr, err)
	}

	if fs, ok := req.(messages.FileScoped); ok && related && fs.Target().IsRelated() {
		if !haveFile {
			return h.Reject(hdr, types.StatusInvalidParameter), nil
		}
		fs.SetTarget(lastFile)
	}

	resp, err := h.Dispatch(ctx, state, hdr, req)
	if errors.Is(err, handlers.ErrProtocolViolation) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", hdr.Command, err)
	}
	return resp, nil
}

// joinResponses encodes responses back to back. Every response but the
// last is padded to an 8-byte boundary and its NextCommand points at the
// following one.
func joinResponses(responses []*handlers.Response) []byte {
	if len(responses) == 0 {
		return nil
	}

	var out []byte
	for i, resp := range responses {
		last := i == len(responses)-1
		size := header.HeaderSize + len(resp.Body)
		padded := size
		if !last {
			padded = (size + compoundAlignment - 1) &^ (compoundAlignment - 1)
			resp.Header.NextCommand = uint32(padded)
		} else {
			resp.Header.NextCommand = 0
		}

		out = append(out, resp.Bytes()...)
		for ; size < padded; size++ {
			out = append(out, 0)
		}
	}
	return out
}

func afterSendOf(responses []*handlers.Response) []func() {
	var out []func()
	for _, resp := range responses {
		if resp.AfterSend != nil {
			out = append(out, resp.AfterSend)
		}
	}
	return out
}
