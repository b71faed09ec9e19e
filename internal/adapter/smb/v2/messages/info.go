package messages

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// QueryInfoRequest is an SMB2 QUERY_INFO request [MS-SMB2] 2.2.37.
type QueryInfoRequest struct {
	InfoType              uint8
	FileInfoClass         uint8
	OutputBufferLength    uint32
	Input                 []byte
	AdditionalInformation uint32
	Flags                 uint32
	FileID                FileID
}

func (*QueryInfoRequest) Command() types.Command { return types.CommandQueryInfo }
func (q *QueryInfoRequest) Target() FileID       { return q.FileID }
func (q *QueryInfoRequest) SetTarget(f FileID)   { q.FileID = f }

func DecodeQueryInfoRequest(body []byte) (*QueryInfoRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(41)
	req := &QueryInfoRequest{
		InfoType:           r.ReadUint8(),
		FileInfoClass:      r.ReadUint8(),
		OutputBufferLength: r.ReadUint32(),
	}
	inOff := int(r.ReadUint16())
	r.Skip(2)
	inLen := int(r.ReadUint32())
	req.AdditionalInformation = r.ReadUint32()
	req.Flags = r.ReadUint32()
	req.FileID = readFileID(r)
	if err := r.Err(); err != nil {
		return nil, err
	}
	req.Input = bodySlice(r, inOff, inLen)
	return req, r.Err()
}

// SetInfoRequest is an SMB2 SET_INFO request [MS-SMB2] 2.2.39.
type SetInfoRequest struct {
	InfoType              uint8
	FileInfoClass         uint8
	Buffer                []byte
	AdditionalInformation uint32
	FileID                FileID
}

func (*SetInfoRequest) Command() types.Command { return types.CommandSetInfo }
func (s *SetInfoRequest) Target() FileID       { return s.FileID }
func (s *SetInfoRequest) SetTarget(f FileID)   { s.FileID = f }

func DecodeSetInfoRequest(body []byte) (*SetInfoRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(33)
	req := &SetInfoRequest{
		InfoType:      r.ReadUint8(),
		FileInfoClass: r.ReadUint8(),
	}
	bufLen := int(r.ReadUint32())
	bufOff := int(r.ReadUint16())
	r.Skip(2)
	req.AdditionalInformation = r.ReadUint32()
	req.FileID = readFileID(r)
	if err := r.Err(); err != nil {
		return nil, err
	}
	req.Buffer = bodySlice(r, bufOff, bufLen)
	return req, r.Err()
}

// SetInfoResponse is an SMB2 SET_INFO response [MS-SMB2] 2.2.40.
type SetInfoResponse struct{}

func (*SetInfoResponse) Command() types.Command { return types.CommandSetInfo }

func (*SetInfoResponse) Encode() ([]byte, error) {
	w := smbenc.NewWriter(2)
	w.WriteUint16(2)
	return w.Bytes(), nil
}
