package handlers

import (
	"math"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/internal/logger"
)

// Ioctl handles the SMB2 IOCTL command [MS-SMB2] 2.2.31, 2.2.32.
//
// DFS referral requests answer STATUS_FS_DRIVER_REQUIRED, which tells the
// client the share is not DFS. Other FSCTLs on an open handle go to the
// store; FSCTLs that name no handle are not supported.
func (h *Handler) Ioctl(ctx *SMBHandlerContext, req *messages.IoctlRequest) *HandlerResult {
	logger.Debug("IOCTL request",
		"ctlCode", req.CtlCode,
		logger.KeyFileID, req.FileID.Persistent)

	switch req.CtlCode {
	case types.FsctlDfsGetReferrals, types.FsctlDfsGetReferralsEx:
		return NewErrorResult(types.StatusFSDriverRequired)
	}

	if req.FileID.Persistent == math.MaxUint64 && req.FileID.Volatile == math.MaxUint64 {
		return NewErrorResult(types.StatusNotSupported)
	}

	of, errRes := h.lookupOpen(ctx, req.FileID)
	if errRes != nil {
		return errRes
	}

	maxOut := int(min(req.MaxOutputResponse, h.Config.MaxTransactSize))
	out, err := of.Share.Store.DeviceIOControl(ctx.Context, of.Handle, req.CtlCode, req.Input, maxOut)
	if err != nil {
		logger.Debug("IOCTL failed", "ctlCode", req.CtlCode, logger.KeyError, err)
		return errorResult(err)
	}

	return NewResult(types.StatusSuccess, &messages.IoctlResponse{
		CtlCode: req.CtlCode,
		FileID:  req.FileID,
		Output:  out,
	})
}
