package messages

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// IoctlRequest is an SMB2 IOCTL request [MS-SMB2] 2.2.31.
type IoctlRequest struct {
	CtlCode           uint32
	FileID            FileID
	Input             []byte
	MaxInputResponse  uint32
	MaxOutputResponse uint32
	Flags             uint32
}

func (*IoctlRequest) Command() types.Command { return types.CommandIoctl }
func (i *IoctlRequest) Target() FileID       { return i.FileID }
func (i *IoctlRequest) SetTarget(f FileID)   { i.FileID = f }

// IsFsctl reports whether the request is an FSCTL rather than a device
// IOCTL.
func (i *IoctlRequest) IsFsctl() bool { return i.Flags&types.IoctlIsFsctl != 0 }

func DecodeIoctlRequest(body []byte) (*IoctlRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(57)
	r.Skip(2)
	req := &IoctlRequest{CtlCode: r.ReadUint32()}
	req.FileID = readFileID(r)
	inOff := int(r.ReadUint32())
	inLen := int(r.ReadUint32())
	req.MaxInputResponse = r.ReadUint32()
	r.Skip(8) // OutputOffset, OutputCount
	req.MaxOutputResponse = r.ReadUint32()
	req.Flags = r.ReadUint32()
	r.Skip(4)
	if err := r.Err(); err != nil {
		return nil, err
	}
	req.Input = bodySlice(r, inOff, inLen)
	return req, r.Err()
}

// IoctlResponse is an SMB2 IOCTL response [MS-SMB2] 2.2.32. Input is
// never echoed back.
type IoctlResponse struct {
	CtlCode uint32
	FileID  FileID
	Output  []byte
}

func (*IoctlResponse) Command() types.Command { return types.CommandIoctl }

func (resp *IoctlResponse) Encode() ([]byte, error) {
	const fixed = 48
	w := smbenc.NewWriter(fixed + len(resp.Output))
	w.WriteUint16(49)
	w.WriteUint16(0)
	w.WriteUint32(resp.CtlCode)
	writeFileID(w, resp.FileID)
	w.WriteUint32(headerSize + fixed) // InputOffset
	w.WriteUint32(0)                  // InputCount
	if len(resp.Output) > 0 {
		w.WriteUint32(headerSize + fixed)
	} else {
		w.WriteUint32(0)
	}
	w.WriteUint32(uint32(len(resp.Output)))
	w.WriteUint32(0) // Flags
	w.WriteUint32(0)
	w.WriteBytes(resp.Output)
	return w.Bytes(), w.Err()
}
