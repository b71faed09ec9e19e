package header

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// Encode serialises h into a new 64-byte slice.
func (h *SMB2Header) Encode() []byte {
	w := smbenc.NewWriter(HeaderSize)
	w.WriteUint32(types.SMB2ProtocolID)
	w.WriteUint16(types.HeaderStructureSize)
	w.WriteUint16(h.CreditCharge)
	w.WriteUint32(uint32(h.Status))
	w.WriteUint16(uint16(h.Command))
	w.WriteUint16(h.Credits)
	w.WriteUint32(uint32(h.Flags))
	w.WriteUint32(h.NextCommand)
	w.WriteUint64(h.MessageID)
	if h.IsAsync() {
		w.WriteUint64(h.AsyncID)
	} else {
		w.WriteUint32(h.Reserved)
		w.WriteUint32(h.TreeID)
	}
	w.WriteUint64(h.SessionID)
	w.WriteBytes(h.Signature[:])
	return w.Bytes()
}

// PatchResponse copies the request's correlation fields into resp:
//   - MessageID and CreditCharge
//   - the RELATED_OPERATIONS flag, and Reserved for sync responses
//   - SessionID and TreeID when resp leaves them zero
//
// Credits granted are max(1, req.Credits). FlagResponse is always set.
func PatchResponse(resp, req *SMB2Header) {
	resp.MessageID = req.MessageID
	resp.CreditCharge = req.CreditCharge
	resp.Credits = max(1, req.Credits)
	resp.Flags |= types.FlagResponse

	if req.IsRelated() {
		resp.Flags |= types.FlagRelatedOperations
	}

	if resp.SessionID == 0 {
		resp.SessionID = req.SessionID
	}
	if !resp.IsAsync() {
		resp.Reserved = req.Reserved
		if resp.TreeID == 0 {
			resp.TreeID = req.TreeID
		}
	}
}
