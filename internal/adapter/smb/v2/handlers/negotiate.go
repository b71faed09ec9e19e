package handlers

import (
	"slices"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/auth"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// Negotiate handles the SMB2 NEGOTIATE command [MS-SMB2] 2.2.3, 2.2.4.
//
// **Purpose:**
//
// Selects the dialect for the connection. 2.1 is preferred over 2.0.2, and
// only dialects enabled in Config.Dialects are considered.
//
// **State transitions:**
//
//   - A common dialect upgrades the connection state (allocator and session
//     table) and the dialect is fixed from then on.
//   - A wildcard (0x02FF) offer that resolves to 2.0.2 is answered with
//     0x02FF and leaves the connection un-negotiated: the client follows up
//     with a real NEGOTIATE.
//   - No common dialect answers STATUS_NOT_SUPPORTED and leaves the
//     connection un-negotiated.
func (h *Handler) Negotiate(ctx *SMBHandlerContext, req *messages.NegotiateRequest) *HandlerResult {
	logger.Debug("NEGOTIATE request",
		logger.KeyClient, ctx.State.RemoteAddr,
		"dialects", req.Dialects,
		"client_guid", req.ClientGUID.String())

	selected, wildcard := h.selectDialect(req.Dialects)
	if selected == types.DialectNotSet {
		logger.Debug("NEGOTIATE: no common dialect", logger.KeyClient, ctx.State.RemoteAddr)
		return NewErrorResult(types.StatusNotSupported)
	}

	responseDialect := selected
	if wildcard && selected == types.Dialect0202 {
		responseDialect = types.DialectWild
	} else {
		err := ctx.State.Upgrade(&SMB2Extension{
			Dialect:    selected,
			ClientGUID: req.ClientGUID,
			Allocate:   h.Opens.Allocate,
		})
		if err != nil {
			// Dispatch only routes NEGOTIATE to an un-negotiated state.
			return NewErrorResult(types.StatusInternalError)
		}
	}

	var caps uint32
	if selected >= types.Dialect0210 {
		caps = types.CapLargeMTU
	}

	hint, err := auth.NegotiateHint()
	if err != nil {
		logger.Warn("NEGOTIATE: build security hint", logger.KeyError, err)
	}

	logger.Debug("NEGOTIATE selected",
		logger.KeyClient, ctx.State.RemoteAddr,
		logger.KeyDialect, responseDialect.String())

	return NewResult(types.StatusSuccess, &messages.NegotiateResponse{
		SecurityMode:    types.NegotiateSigningEnabled,
		DialectRevision: responseDialect,
		ServerGUID:      h.Config.ServerGUID,
		Capabilities:    caps,
		MaxTransactSize: h.Config.MaxTransactSize,
		MaxReadSize:     h.Config.MaxReadSize,
		MaxWriteSize:    h.Config.MaxWriteSize,
		SystemTime:      time.Now(),
		ServerStartTime: h.StartTime,
		SecurityBuffer:  hint,
	})
}

// selectDialect returns the best dialect both sides support. wildcard
// reports that 2.0.2 was only reached through the 0x02FF wildcard.
func (h *Handler) selectDialect(offered []types.Dialect) (selected types.Dialect, wildcard bool) {
	enabled := func(d types.Dialect) bool { return slices.Contains(h.Config.Dialects, d) }

	for _, want := range []types.Dialect{types.Dialect0210, types.Dialect0202} {
		if enabled(want) && slices.Contains(offered, want) {
			return want, false
		}
	}
	if enabled(types.Dialect0202) && slices.Contains(offered, types.DialectWild) {
		return types.Dialect0202, true
	}
	return types.DialectNotSet, false
}
