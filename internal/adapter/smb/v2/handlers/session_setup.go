package handlers

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// SessionSetup handles the SMB2 SESSION_SETUP command [MS-SMB2] 2.2.5, 2.2.6.
//
// **Purpose:**
//
// Runs the security exchange carried in the security buffer. The first leg
// arrives with SessionId 0; the server assigns an ID and answers
// STATUS_MORE_PROCESSING_REQUIRED with the NTLM challenge. The second leg
// carries that ID and establishes the session.
//
// **Outcomes:**
//
//   - incomplete exchange: STATUS_MORE_PROCESSING_REQUIRED, SessionId set
//   - complete: the session is created, flagged guest or null as appropriate
//   - rejected: STATUS_LOGON_FAILURE
//
// A SESSION_SETUP on an established session re-runs the exchange; the
// session keeps its identity, trees and open files.
func (h *Handler) SessionSetup(ctx *SMBHandlerContext, req *messages.SessionSetupRequest) *HandlerResult {
	ext := ctx.State.SMB2()

	sessionID := ctx.Header.SessionID
	if sessionID == 0 {
		sessionID = ext.Sessions.NextSessionID()
	}

	logger.Debug("SESSION_SETUP request",
		logger.KeyClient, ctx.State.RemoteAddr,
		logger.KeySessionID, sessionID,
		"security_buffer_len", len(req.SecurityBuffer))

	if h.Auth == nil {
		return NewErrorResult(types.StatusLogonFailure)
	}

	res, err := h.Auth.Step(sessionID, req.SecurityBuffer)
	if err != nil {
		h.Auth.Abandon(sessionID)
		logger.Info("SESSION_SETUP rejected",
			logger.KeyClient, ctx.State.RemoteAddr,
			logger.KeySessionID, sessionID,
			logger.KeyError, err)
		return NewErrorResult(types.StatusLogonFailure)
	}

	if !res.Complete {
		return &HandlerResult{
			Status:    types.StatusMoreProcessingRequired,
			Body:      &messages.SessionSetupResponse{SecurityBuffer: res.Token},
			SessionID: sessionID,
		}
	}

	var flags uint16
	switch {
	case res.Identity.Anonymous:
		flags = types.SessionFlagIsNull
	case res.Identity.Guest:
		flags = types.SessionFlagIsGuest
	}

	if _, exists := ext.Sessions.GetSession(sessionID); !exists {
		if _, err := ext.Sessions.CreateSession(sessionID, res.Identity, ctx.State.RemoteAddr); err != nil {
			logger.Warn("SESSION_SETUP: create session", logger.KeySessionID, sessionID, logger.KeyError, err)
			return NewErrorResult(types.StatusInternalError)
		}
		h.sessions.Add(1)
	}

	logger.Info("session established",
		logger.KeyClient, ctx.State.RemoteAddr,
		logger.KeySessionID, sessionID,
		logger.KeyUsername, res.Identity.Username,
		logger.KeyGuest, res.Identity.Guest)

	return &HandlerResult{
		Status:    types.StatusSuccess,
		Body:      &messages.SessionSetupResponse{SessionFlags: flags, SecurityBuffer: res.Token},
		SessionID: sessionID,
	}
}

// Logoff handles the SMB2 LOGOFF command [MS-SMB2] 2.2.7. The session is
// removed and its open files are closed.
func (h *Handler) Logoff(ctx *SMBHandlerContext, _ *messages.LogoffRequest) *HandlerResult {
	ext := ctx.State.SMB2()
	h.endSession(ctx.Context, ext, ctx.Session.ID)

	logger.Debug("LOGOFF", logger.KeySessionID, ctx.Session.ID)
	return NewResult(types.StatusSuccess, &messages.LogoffResponse{})
}
