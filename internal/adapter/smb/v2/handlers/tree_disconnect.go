package handlers

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// TreeDisconnect handles the SMB2 TREE_DISCONNECT command [MS-SMB2] 2.2.11.
// The tree's open files are closed before the tree is removed.
func (h *Handler) TreeDisconnect(ctx *SMBHandlerContext, _ *messages.TreeDisconnectRequest) *HandlerResult {
	closed := h.Opens.CloseTree(ctx.Session, ctx.TreeID)
	h.releaseOpens(ctx.Context, closed)
	ctx.Session.RemoveConnectedTree(ctx.TreeID)

	logger.Debug("TREE_DISCONNECT",
		logger.KeySessionID, ctx.Session.ID,
		logger.KeyTreeID, ctx.TreeID,
		logger.KeyCount, len(closed))
	return NewResult(types.StatusSuccess, &messages.TreeDisconnectResponse{})
}
