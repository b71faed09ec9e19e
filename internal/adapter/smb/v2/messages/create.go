package messages

import (
	"errors"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

var errOddNameLength = errors.New("odd UTF-16 name length")

// CreateRequest is an SMB2 CREATE request [MS-SMB2] 2.2.13.
//
// Create contexts are kept raw; this server grants none of them.
type CreateRequest struct {
	RequestedOplockLevel uint8
	ImpersonationLevel   uint32
	DesiredAccess        uint32
	FileAttributes       uint32
	ShareAccess          uint32
	CreateDisposition    types.CreateDisposition
	CreateOptions        uint32
	// Name is share-relative with backslash separators. Empty opens the
	// share root.
	Name           string
	CreateContexts []byte
}

func (*CreateRequest) Command() types.Command { return types.CommandCreate }

func DecodeCreateRequest(body []byte) (*CreateRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(57)
	r.Skip(1) // SecurityFlags
	req := &CreateRequest{RequestedOplockLevel: r.ReadUint8()}
	req.ImpersonationLevel = r.ReadUint32()
	r.Skip(16) // SmbCreateFlags, Reserved
	req.DesiredAccess = r.ReadUint32()
	req.FileAttributes = r.ReadUint32()
	req.ShareAccess = r.ReadUint32()
	req.CreateDisposition = types.CreateDisposition(r.ReadUint32())
	req.CreateOptions = r.ReadUint32()
	nameOff := int(r.ReadUint16())
	nameLen := int(r.ReadUint16())
	ctxOff := int(r.ReadUint32())
	ctxLen := int(r.ReadUint32())
	if err := r.Err(); err != nil {
		return nil, err
	}

	if nameLen%2 != 0 {
		return nil, errOddNameLength
	}
	req.Name = smbenc.DecodeUTF16(bodySlice(r, nameOff, nameLen))
	req.CreateContexts = bodySlice(r, ctxOff, ctxLen)
	return req, r.Err()
}

// CreateResponse is an SMB2 CREATE response [MS-SMB2] 2.2.14.
type CreateResponse struct {
	OplockLevel    uint8
	Flags          uint8
	CreateAction   types.CreateAction
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	AllocationSize uint64
	EndOfFile      uint64
	FileAttributes uint32
	FileID         FileID
}

func (*CreateResponse) Command() types.Command { return types.CommandCreate }

// Encode writes the 88-byte fixed part plus the one-byte buffer the
// StructureSize of 89 accounts for.
func (resp *CreateResponse) Encode() ([]byte, error) {
	w := smbenc.NewWriter(89)
	w.WriteUint16(89)
	w.WriteUint8(resp.OplockLevel)
	w.WriteUint8(resp.Flags)
	w.WriteUint32(uint32(resp.CreateAction))
	w.WriteUint64(types.TimeToFiletime(resp.CreationTime))
	w.WriteUint64(types.TimeToFiletime(resp.LastAccessTime))
	w.WriteUint64(types.TimeToFiletime(resp.LastWriteTime))
	w.WriteUint64(types.TimeToFiletime(resp.ChangeTime))
	w.WriteUint64(resp.AllocationSize)
	w.WriteUint64(resp.EndOfFile)
	w.WriteUint32(resp.FileAttributes)
	w.WriteUint32(0) // Reserved2
	writeFileID(w, resp.FileID)
	w.WriteUint32(0) // CreateContextsOffset
	w.WriteUint32(0) // CreateContextsLength
	w.WriteUint8(0)
	return w.Bytes(), w.Err()
}

// CloseRequest is an SMB2 CLOSE request [MS-SMB2] 2.2.15.
type CloseRequest struct {
	Flags  uint16
	FileID FileID
}

func (*CloseRequest) Command() types.Command { return types.CommandClose }
func (c *CloseRequest) Target() FileID       { return c.FileID }
func (c *CloseRequest) SetTarget(f FileID)   { c.FileID = f }

// PostQueryAttrib reports whether the client wants the final attributes
// in the response.
func (c *CloseRequest) PostQueryAttrib() bool {
	return c.Flags&types.ClosePostQueryAttrib != 0
}

func DecodeCloseRequest(body []byte) (*CloseRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(24)
	req := &CloseRequest{Flags: r.ReadUint16()}
	r.Skip(4)
	req.FileID = readFileID(r)
	return req, r.Err()
}

// CloseResponse is an SMB2 CLOSE response [MS-SMB2] 2.2.16. The time,
// size and attribute fields are zero unless Flags has POSTQUERY_ATTRIB.
type CloseResponse struct {
	Flags          uint16
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	AllocationSize uint64
	EndOfFile      uint64
	FileAttributes uint32
}

func (*CloseResponse) Command() types.Command { return types.CommandClose }

func (resp *CloseResponse) Encode() ([]byte, error) {
	w := smbenc.NewWriter(60)
	w.WriteUint16(60)
	w.WriteUint16(resp.Flags)
	w.WriteUint32(0)
	w.WriteUint64(types.TimeToFiletime(resp.CreationTime))
	w.WriteUint64(types.TimeToFiletime(resp.LastAccessTime))
	w.WriteUint64(types.TimeToFiletime(resp.LastWriteTime))
	w.WriteUint64(types.TimeToFiletime(resp.ChangeTime))
	w.WriteUint64(resp.AllocationSize)
	w.WriteUint64(resp.EndOfFile)
	w.WriteUint32(resp.FileAttributes)
	return w.Bytes(), w.Err()
}

// FlushRequest is an SMB2 FLUSH request [MS-SMB2] 2.2.17.
type FlushRequest struct {
	FileID FileID
}

func (*FlushRequest) Command() types.Command { return types.CommandFlush }
func (f *FlushRequest) Target() FileID       { return f.FileID }
func (f *FlushRequest) SetTarget(id FileID)  { f.FileID = id }

func DecodeFlushRequest(body []byte) (*FlushRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(24)
	r.Skip(6)
	req := &FlushRequest{FileID: readFileID(r)}
	return req, r.Err()
}
