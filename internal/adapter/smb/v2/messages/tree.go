package messages

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// TreeConnectRequest is an SMB2 TREE_CONNECT request [MS-SMB2] 2.2.9.
// Path has the form \\server\share.
type TreeConnectRequest struct {
	Flags uint16
	Path  string
}

func (*TreeConnectRequest) Command() types.Command { return types.CommandTreeConnect }

func DecodeTreeConnectRequest(body []byte) (*TreeConnectRequest, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(9)
	req := &TreeConnectRequest{Flags: r.ReadUint16()}
	off := int(r.ReadUint16())
	length := int(r.ReadUint16())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if length%2 != 0 {
		length--
	}
	req.Path = smbenc.DecodeUTF16(bodySlice(r, off, length))
	return req, r.Err()
}

// TreeConnectResponse is an SMB2 TREE_CONNECT response [MS-SMB2] 2.2.10.
type TreeConnectResponse struct {
	ShareType     uint8
	ShareFlags    uint32
	Capabilities  uint32
	MaximalAccess uint32
}

func (*TreeConnectResponse) Command() types.Command { return types.CommandTreeConnect }

func (resp *TreeConnectResponse) Encode() ([]byte, error) {
	w := smbenc.NewWriter(16)
	w.WriteUint16(16)
	w.WriteUint8(resp.ShareType)
	w.WriteUint8(0)
	w.WriteUint32(resp.ShareFlags)
	w.WriteUint32(resp.Capabilities)
	w.WriteUint32(resp.MaximalAccess)
	return w.Bytes(), w.Err()
}
