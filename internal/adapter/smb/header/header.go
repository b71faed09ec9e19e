package header

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// HeaderSize is the fixed size of an SMB2 header.
const HeaderSize = types.HeaderSize

// SMB2Header is a decoded SMB2 packet header.
//
// For async messages AsyncID occupies the bytes of Reserved and TreeID;
// Parse fills AsyncID and leaves the other two zero.
type SMB2Header struct {
	CreditCharge uint16
	Status       types.Status
	Command      types.Command
	Credits      uint16
	Flags        types.HeaderFlags
	NextCommand  uint32
	MessageID    uint64
	Reserved     uint32
	TreeID       uint32
	AsyncID      uint64
	SessionID    uint64
	Signature    [16]byte
}

func (h *SMB2Header) IsResponse() bool { return h.Flags.Has(types.FlagResponse) }

func (h *SMB2Header) IsAsync() bool { return h.Flags.Has(types.FlagAsync) }

func (h *SMB2Header) IsRelated() bool { return h.Flags.Has(types.FlagRelatedOperations) }

// NewResponseHeader returns a response header for cmd with the given status.
// Identifiers left zero are filled in by PatchResponse.
func NewResponseHeader(cmd types.Command, status types.Status) *SMB2Header {
	return &SMB2Header{
		Command: cmd,
		Status:  status,
		Flags:   types.FlagResponse,
	}
}

// SetAsync marks h as an async message carrying id.
func (h *SMB2Header) SetAsync(id uint64) {
	h.Flags |= types.FlagAsync
	h.AsyncID = id
	h.Reserved = 0
	h.TreeID = 0
}
