package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// NegotiateRequest is an SMB2 NEGOTIATE request [MS-SMB2] 2.2.3.
type NegotiateRequest struct {
	SecurityMode uint16
	Capabilities uint32
	ClientGUID   uuid.UUID
	Dialects     []types.Dialect
}

func (*NegotiateRequest) Command() types.Command { return types.CommandNegotiate }

// DecodeNegotiateRequest parses the 36-byte fixed part and the dialect
// array that follows it. Negotiate contexts (3.1.1) are ignored.
func DecodeNegotiateRequest(body []byte) (*NegotiateRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(36)
	count := int(r.ReadUint16())
	req := &NegotiateRequest{SecurityMode: r.ReadUint16()}
	r.Skip(2)
	req.Capabilities = r.ReadUint32()
	copy(req.ClientGUID[:], r.ReadBytes(16))
	r.Skip(8)

	r.EnsureRemaining(count * 2)
	if err := r.Err(); err != nil {
		return nil, err
	}
	req.Dialects = make([]types.Dialect, count)
	for i := range req.Dialects {
		req.Dialects[i] = types.Dialect(r.ReadUint16())
	}
	return req, r.Err()
}

// NegotiateResponse is an SMB2 NEGOTIATE response [MS-SMB2] 2.2.4.
type NegotiateResponse struct {
	SecurityMode    uint16
	DialectRevision types.Dialect
	ServerGUID      uuid.UUID
	Capabilities    uint32
	MaxTransactSize uint32
	MaxReadSize     uint32
	MaxWriteSize    uint32
	SystemTime      time.Time
	ServerStartTime time.Time
	SecurityBuffer  []byte
}

func (*NegotiateResponse) Command() types.Command { return types.CommandNegotiate }

// Encode writes the 64-byte fixed part followed by the security buffer.
func (resp *NegotiateResponse) Encode() ([]byte, error) {
	const fixed = 64
	w := smbenc.NewWriter(fixed + len(resp.SecurityBuffer))
	w.WriteUint16(65)
	w.WriteUint16(resp.SecurityMode)
	w.WriteUint16(uint16(resp.DialectRevision))
	w.WriteUint16(0) // NegotiateContextCount
	w.WriteBytes(resp.ServerGUID[:])
	w.WriteUint32(resp.Capabilities)
	w.WriteUint32(resp.MaxTransactSize)
	w.WriteUint32(resp.MaxReadSize)
	w.WriteUint32(resp.MaxWriteSize)
	w.WriteUint64(types.TimeToFiletime(resp.SystemTime))
	w.WriteUint64(types.TimeToFiletime(resp.ServerStartTime))
	if len(resp.SecurityBuffer) > 0 {
		w.WriteUint16(headerSize + fixed)
	} else {
		w.WriteUint16(0)
	}
	w.WriteUint16(uint16(len(resp.SecurityBuffer)))
	w.WriteUint32(0) // NegotiateContextOffset
	w.WriteBytes(resp.SecurityBuffer)
	return w.Bytes(), w.Err()
}
