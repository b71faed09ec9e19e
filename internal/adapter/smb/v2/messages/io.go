package messages

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// ReadRequest is an SMB2 READ request [MS-SMB2] 2.2.19.
type ReadRequest struct {
	Flags        uint8
	Length       uint32
	Offset       uint64
	FileID       FileID
	MinimumCount uint32
}

func (*ReadRequest) Command() types.Command { return types.CommandRead }
func (r *ReadRequest) Target() FileID       { return r.FileID }
func (r *ReadRequest) SetTarget(f FileID)   { r.FileID = f }

func DecodeReadRequest(body []byte) (*ReadRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(49)
	r.Skip(1) // Padding
	req := &ReadRequest{Flags: r.ReadUint8()}
	req.Length = r.ReadUint32()
	req.Offset = r.ReadUint64()
	req.FileID = readFileID(r)
	req.MinimumCount = r.ReadUint32()
	r.Skip(12) // Channel, RemainingBytes, ReadChannelInfoOffset/Length
	return req, r.Err()
}

// ReadResponse is an SMB2 READ response [MS-SMB2] 2.2.20.
type ReadResponse struct {
	Data          []byte
	DataRemaining uint32
}

func (*ReadResponse) Command() types.Command { return types.CommandRead }

// Encode places the data right after the 16-byte fixed part, at header
// offset 80.
func (resp *ReadResponse) Encode() ([]byte, error) {
	const fixed = 16
	w := smbenc.NewWriter(fixed + len(resp.Data))
	w.WriteUint16(17)
	w.WriteUint8(headerSize + fixed)
	w.WriteUint8(0)
	w.WriteUint32(uint32(len(resp.Data)))
	w.WriteUint32(resp.DataRemaining)
	w.WriteUint32(0)
	w.WriteBytes(resp.Data)
	return w.Bytes(), w.Err()
}

// WriteRequest is an SMB2 WRITE request [MS-SMB2] 2.2.21.
type WriteRequest struct {
	Offset uint64
	FileID FileID
	Flags  uint32
	Data   []byte
}

func (*WriteRequest) Command() types.Command { return types.CommandWrite }
func (w *WriteRequest) Target() FileID       { return w.FileID }
func (w *WriteRequest) SetTarget(f FileID)   { w.FileID = f }

// DecodeWriteRequest reads the payload from DataOffset, which clients
// normally set to 112 (header plus the 48-byte fixed part).
func DecodeWriteRequest(body []byte) (*WriteRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(49)
	dataOff := int(r.ReadUint16())
	length := int(r.ReadUint32())
	req := &WriteRequest{Offset: r.ReadUint64()}
	req.FileID = readFileID(r)
	r.Skip(12) // Channel, RemainingBytes, WriteChannelInfoOffset/Length
	req.Flags = r.ReadUint32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	req.Data = bodySlice(r, dataOff, length)
	if req.Data == nil {
		req.Data = []byte{}
	}
	return req, r.Err()
}

// WriteResponse is an SMB2 WRITE response [MS-SMB2] 2.2.22.
type WriteResponse struct {
	Count uint32
}

func (*WriteResponse) Command() types.Command { return types.CommandWrite }

func (resp *WriteResponse) Encode() ([]byte, error) {
	w := smbenc.NewWriter(16)
	w.WriteUint16(17)
	w.WriteUint16(0)
	w.WriteUint32(resp.Count)
	w.WriteUint32(0) // Remaining
	w.WriteUint16(0) // WriteChannelInfoOffset
	w.WriteUint16(0) // WriteChannelInfoLength
	return w.Bytes(), w.Err()
}
