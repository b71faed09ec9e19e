package header

import (
	"encoding/binary"
	"errors"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

var (
	// ErrMessageTooShort is returned for buffers shorter than HeaderSize.
	ErrMessageTooShort = errors.New("message too short for SMB2 header")

	// ErrInvalidProtocolID is returned when the buffer does not start with 0xFE 'SMB'.
	ErrInvalidProtocolID = errors.New("invalid SMB2 protocol ID")

	// ErrInvalidHeaderSize is returned when StructureSize is not 64.
	ErrInvalidHeaderSize = errors.New("invalid SMB2 header structure size")
)

// Parse decodes the header at the start of data.
func Parse(data []byte) (*SMB2Header, error) {
	if len(data) < HeaderSize {
		return nil, ErrMessageTooShort
	}
	le := binary.LittleEndian

	if le.Uint32(data[0:4]) != types.SMB2ProtocolID {
		return nil, ErrInvalidProtocolID
	}
	if le.Uint16(data[4:6]) != types.HeaderStructureSize {
		return nil, ErrInvalidHeaderSize
	}

	h := &SMB2Header{
		CreditCharge: le.Uint16(data[6:8]),
		Status:       types.Status(le.Uint32(data[8:12])),
		Command:      types.Command(le.Uint16(data[12:14])),
		Credits:      le.Uint16(data[14:16]),
		Flags:        types.HeaderFlags(le.Uint32(data[16:20])),
		NextCommand:  le.Uint32(data[20:24]),
		MessageID:    le.Uint64(data[24:32]),
		SessionID:    le.Uint64(data[40:48]),
	}
	if h.IsAsync() {
		h.AsyncID = le.Uint64(data[32:40])
	} else {
		h.Reserved = le.Uint32(data[32:36])
		h.TreeID = le.Uint32(data[36:40])
	}
	copy(h.Signature[:], data[48:64])

	return h, nil
}

// IsSMB2Message reports whether data starts with the SMB2 protocol ID.
func IsSMB2Message(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == types.SMB2ProtocolID
}

// IsSMB1Message reports whether data starts with the SMB1 protocol ID.
func IsSMB1Message(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == types.SMB1ProtocolID
}
