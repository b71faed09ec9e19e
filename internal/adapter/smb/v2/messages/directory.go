package messages

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// QueryDirectoryRequest is an SMB2 QUERY_DIRECTORY request [MS-SMB2] 2.2.33.
type QueryDirectoryRequest struct {
	FileInformationClass types.FileInfoClass
	Flags                uint8
	FileIndex            uint32
	FileID               FileID
	// Pattern is the search pattern; empty means "*".
	Pattern            string
	OutputBufferLength uint32
}

func (*QueryDirectoryRequest) Command() types.Command { return types.CommandQueryDirectory }
func (q *QueryDirectoryRequest) Target() FileID       { return q.FileID }
func (q *QueryDirectoryRequest) SetTarget(f FileID)   { q.FileID = f }

func (q *QueryDirectoryRequest) Has(flag uint8) bool { return q.Flags&flag != 0 }

func DecodeQueryDirectoryRequest(body []byte) (*QueryDirectoryRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(33)
	req := &QueryDirectoryRequest{
		FileInformationClass: types.FileInfoClass(r.ReadUint8()),
		Flags:                r.ReadUint8(),
		FileIndex:            r.ReadUint32(),
	}
	req.FileID = readFileID(r)
	nameOff := int(r.ReadUint16())
	nameLen := int(r.ReadUint16())
	req.OutputBufferLength = r.ReadUint32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if nameLen%2 != 0 {
		return nil, errOddNameLength
	}
	req.Pattern = smbenc.DecodeUTF16(bodySlice(r, nameOff, nameLen))
	return req, r.Err()
}

// OutputBufferResponse is the shape shared by QUERY_DIRECTORY,
// CHANGE_NOTIFY and QUERY_INFO responses [MS-SMB2] 2.2.34, 2.2.36, 2.2.38:
// StructureSize (9), OutputBufferOffset, OutputBufferLength and the buffer.
type OutputBufferResponse struct {
	Cmd    types.Command
	Buffer []byte
}

func (o *OutputBufferResponse) Command() types.Command { return o.Cmd }

func (o *OutputBufferResponse) Encode() ([]byte, error) {
	const fixed = 8
	w := smbenc.NewWriter(fixed + len(o.Buffer))
	w.WriteUint16(9)
	if len(o.Buffer) > 0 {
		w.WriteUint16(headerSize + fixed)
	} else {
		w.WriteUint16(0)
	}
	w.WriteUint32(uint32(len(o.Buffer)))
	w.WriteBytes(o.Buffer)
	return w.Bytes(), w.Err()
}

// NewQueryDirectoryResponse wraps an encoded directory listing.
func NewQueryDirectoryResponse(buf []byte) *OutputBufferResponse {
	return &OutputBufferResponse{Cmd: types.CommandQueryDirectory, Buffer: buf}
}

// NewChangeNotifyResponse wraps encoded FILE_NOTIFY_INFORMATION records.
func NewChangeNotifyResponse(buf []byte) *OutputBufferResponse {
	return &OutputBufferResponse{Cmd: types.CommandChangeNotify, Buffer: buf}
}

// NewQueryInfoResponse wraps an encoded information class.
func NewQueryInfoResponse(buf []byte) *OutputBufferResponse {
	return &OutputBufferResponse{Cmd: types.CommandQueryInfo, Buffer: buf}
}

// ChangeNotifyRequest is an SMB2 CHANGE_NOTIFY request [MS-SMB2] 2.2.35.
type ChangeNotifyRequest struct {
	Flags              uint16
	OutputBufferLength uint32
	FileID             FileID
	CompletionFilter   uint32
}

func (*ChangeNotifyRequest) Command() types.Command { return types.CommandChangeNotify }
func (c *ChangeNotifyRequest) Target() FileID       { return c.FileID }
func (c *ChangeNotifyRequest) SetTarget(f FileID)   { c.FileID = f }

// WatchTree reports whether subdirectories are watched too.
func (c *ChangeNotifyRequest) WatchTree() bool { return c.Flags&types.WatchTree != 0 }

func DecodeChangeNotifyRequest(body []byte) (*ChangeNotifyRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(32)
	req := &ChangeNotifyRequest{
		Flags:              r.ReadUint16(),
		OutputBufferLength: r.ReadUint32(),
	}
	req.FileID = readFileID(r)
	req.CompletionFilter = r.ReadUint32()
	r.Skip(4)
	return req, r.Err()
}
