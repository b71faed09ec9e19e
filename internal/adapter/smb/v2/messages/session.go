package messages

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// SessionSetupRequest is an SMB2 SESSION_SETUP request [MS-SMB2] 2.2.5.
type SessionSetupRequest struct {
	Flags             uint8
	SecurityMode      uint8
	Capabilities      uint32
	PreviousSessionID uint64
	SecurityBuffer    []byte
}

func (*SessionSetupRequest) Command() types.Command { return types.CommandSessionSetup }

func DecodeSessionSetupRequest(body []byte) (*SessionSetupRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(25)
	req := &SessionSetupRequest{
		Flags:        r.ReadUint8(),
		SecurityMode: r.ReadUint8(),
		Capabilities: r.ReadUint32(),
	}
	r.Skip(4) // Channel
	off := int(r.ReadUint16())
	length := int(r.ReadUint16())
	req.PreviousSessionID = r.ReadUint64()
	req.SecurityBuffer = bodySlice(r, off, length)
	return req, r.Err()
}

// SessionSetupResponse is an SMB2 SESSION_SETUP response [MS-SMB2] 2.2.6.
type SessionSetupResponse struct {
	SessionFlags   uint16
	SecurityBuffer []byte
}

func (*SessionSetupResponse) Command() types.Command { return types.CommandSessionSetup }

func (resp *SessionSetupResponse) Encode() ([]byte, error) {
	const fixed = 8
	w := smbenc.NewWriter(fixed + len(resp.SecurityBuffer))
	w.WriteUint16(9)
	w.WriteUint16(resp.SessionFlags)
	if len(resp.SecurityBuffer) > 0 {
		w.WriteUint16(headerSize + fixed)
	} else {
		w.WriteUint16(0)
	}
	w.WriteUint16(uint16(len(resp.SecurityBuffer)))
	w.WriteBytes(resp.SecurityBuffer)
	return w.Bytes(), w.Err()
}
