package handlers

import (
	"strings"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// shareMaximalAccess is the access granted on a read-write share.
const shareMaximalAccess = types.FileAllAccess

// shareReadOnlyAccess is the access granted on a read-only share.
const shareReadOnlyAccess = types.FileReadData | types.FileReadEA | types.FileExecute |
	types.FileReadAttributes | types.ReadControl | types.Synchronize

// TreeConnect handles the SMB2 TREE_CONNECT command [MS-SMB2] 2.2.9, 2.2.10.
//
// **Purpose:**
//
// Binds the session to a share named by a \\server\share path. Share names
// match case-insensitively; the server part is ignored.
//
// **Process:**
//
//  1. Extract the share name from the path
//  2. Look the share up (STATUS_BAD_NETWORK_NAME when unknown)
//  3. Allocate a tree ID in the session and bind it
//  4. Report the disk share type and the maximal access
func (h *Handler) TreeConnect(ctx *SMBHandlerContext, req *messages.TreeConnectRequest) *HandlerResult {
	name := shareNameFromPath(req.Path)

	logger.Debug("TREE_CONNECT request",
		logger.KeySessionID, ctx.Session.ID,
		logger.KeyPath, req.Path,
		logger.KeyShare, name)

	share, ok := h.GetShare(name)
	if !ok {
		logger.Debug("TREE_CONNECT: unknown share", logger.KeyShare, name)
		return NewErrorResult(types.StatusBadNetworkName)
	}

	treeID := ctx.Session.NextTreeID()
	if err := ctx.Session.ConnectTree(treeID, share); err != nil {
		// The session was logged off concurrently.
		return NewErrorResult(types.StatusUserSessionDeleted)
	}

	access := shareMaximalAccess
	if share.ReadOnly {
		access = shareReadOnlyAccess
	}

	logger.Info("tree connected",
		logger.KeySessionID, ctx.Session.ID,
		logger.KeyTreeID, treeID,
		logger.KeyShare, share.Name)

	return &HandlerResult{
		Status: types.StatusSuccess,
		Body: &messages.TreeConnectResponse{
			ShareType:     types.ShareTypeDisk,
			MaximalAccess: access,
		},
		TreeID: treeID,
	}
}

// shareNameFromPath returns the last component of a UNC path. A bare name
// is returned unchanged.
func shareNameFromPath(path string) string {
	path = strings.TrimRight(strings.ReplaceAll(path, "/", `\`), `\`)
	if i := strings.LastIndexByte(path, '\\'); i >= 0 {
		return path[i+1:]
	}
	return path
}
