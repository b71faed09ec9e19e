package messages

import (
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
)

// EncodeRequest serializes a request body the way a client would. The
// server never sends requests; this exists for test clients and tools.
func EncodeRequest(req Request) ([]byte, error) {
	w := smbenc.NewWriter(64)
	switch r := req.(type) {
	case *NegotiateRequest:
		w.WriteUint16(36)
		w.WriteUint16(uint16(len(r.Dialects)))
		w.WriteUint16(r.SecurityMode)
		w.WriteUint16(0)
		w.WriteUint32(r.Capabilities)
		w.WriteBytes(r.ClientGUID[:])
		w.WriteUint64(0)
		for _, d := range r.Dialects {
			w.WriteUint16(uint16(d))
		}
	case *SessionSetupRequest:
		const fixed = 24
		w.WriteUint16(25)
		w.WriteUint8(r.Flags)
		w.WriteUint8(r.SecurityMode)
		w.WriteUint32(r.Capabilities)
		w.WriteUint32(0)
		w.WriteUint16(headerSize + fixed)
		w.WriteUint16(uint16(len(r.SecurityBuffer)))
		w.WriteUint64(r.PreviousSessionID)
		w.WriteBytes(r.SecurityBuffer)
	case *LogoffRequest, *TreeDisconnectRequest, *CancelRequest, *EchoRequest:
		return encodeEmpty(), nil
	case *TreeConnectRequest:
		const fixed = 8
		path := smbenc.EncodeUTF16(r.Path)
		w.WriteUint16(9)
		w.WriteUint16(r.Flags)
		w.WriteUint16(headerSize + fixed)
		w.WriteUint16(uint16(len(path)))
		w.WriteBytes(path)
	case *CreateRequest:
		const fixed = 56
		name := smbenc.EncodeUTF16(r.Name)
		w.WriteUint16(57)
		w.WriteUint8(0)
		w.WriteUint8(r.RequestedOplockLevel)
		w.WriteUint32(r.ImpersonationLevel)
		w.WriteZeros(16)
		w.WriteUint32(r.DesiredAccess)
		w.WriteUint32(r.FileAttributes)
		w.WriteUint32(r.ShareAccess)
		w.WriteUint32(uint32(r.CreateDisposition))
		w.WriteUint32(r.CreateOptions)
		w.WriteUint16(headerSize + fixed)
		w.WriteUint16(uint16(len(name)))
		w.WriteUint32(0)
		w.WriteUint32(0)
		w.WriteBytes(name)
		if len(name) == 0 {
			w.WriteUint8(0)
		}
	case *CloseRequest:
		w.WriteUint16(24)
		w.WriteUint16(r.Flags)
		w.WriteUint32(0)
		writeFileID(w, r.FileID)
	case *FlushRequest:
		w.WriteUint16(24)
		w.WriteZeros(6)
		writeFileID(w, r.FileID)
	case *ReadRequest:
		w.WriteUint16(49)
		w.WriteUint8(0)
		w.WriteUint8(r.Flags)
		w.WriteUint32(r.Length)
		w.WriteUint64(r.Offset)
		writeFileID(w, r.FileID)
		w.WriteUint32(r.MinimumCount)
		w.WriteZeros(12)
		w.WriteUint8(0)
	case *WriteRequest:
		const fixed = 48
		w.WriteUint16(49)
		w.WriteUint16(headerSize + fixed)
		w.WriteUint32(uint32(len(r.Data)))
		w.WriteUint64(r.Offset)
		writeFileID(w, r.FileID)
		w.WriteZeros(12)
		w.WriteUint32(r.Flags)
		w.WriteBytes(r.Data)
	case *IoctlRequest:
		const fixed = 56
		w.WriteUint16(57)
		w.WriteUint16(0)
		w.WriteUint32(r.CtlCode)
		writeFileID(w, r.FileID)
		w.WriteUint32(headerSize + fixed)
		w.WriteUint32(uint32(len(r.Input)))
		w.WriteUint32(r.MaxInputResponse)
		w.WriteUint32(0)
		w.WriteUint32(0)
		w.WriteUint32(r.MaxOutputResponse)
		w.WriteUint32(r.Flags)
		w.WriteUint32(0)
		w.WriteBytes(r.Input)
	case *QueryDirectoryRequest:
		const fixed = 32
		pattern := smbenc.EncodeUTF16(r.Pattern)
		w.WriteUint16(33)
		w.WriteUint8(uint8(r.FileInformationClass))
		w.WriteUint8(r.Flags)
		w.WriteUint32(r.FileIndex)
		writeFileID(w, r.FileID)
		w.WriteUint16(headerSize + fixed)
		w.WriteUint16(uint16(len(pattern)))
		w.WriteUint32(r.OutputBufferLength)
		w.WriteBytes(pattern)
	case *ChangeNotifyRequest:
		w.WriteUint16(32)
		w.WriteUint16(r.Flags)
		w.WriteUint32(r.OutputBufferLength)
		writeFileID(w, r.FileID)
		w.WriteUint32(r.CompletionFilter)
		w.WriteUint32(0)
	case *QueryInfoRequest:
		const fixed = 40
		w.WriteUint16(41)
		w.WriteUint8(r.InfoType)
		w.WriteUint8(r.FileInfoClass)
		w.WriteUint32(r.OutputBufferLength)
		w.WriteUint16(headerSize + fixed)
		w.WriteUint16(0)
		w.WriteUint32(uint32(len(r.Input)))
		w.WriteUint32(r.AdditionalInformation)
		w.WriteUint32(r.Flags)
		writeFileID(w, r.FileID)
		w.WriteBytes(r.Input)
	case *SetInfoRequest:
		const fixed = 32
		w.WriteUint16(33)
		w.WriteUint8(r.InfoType)
		w.WriteUint8(r.FileInfoClass)
		w.WriteUint32(uint32(len(r.Buffer)))
		w.WriteUint16(headerSize + fixed)
		w.WriteUint16(0)
		w.WriteUint32(r.AdditionalInformation)
		writeFileID(w, r.FileID)
		w.WriteBytes(r.Buffer)
	case *Unsupported:
		return r.Body, nil
	default:
		return nil, fmt.Errorf("cannot encode %T", req)
	}
	return w.Bytes(), w.Err()
}

// Compile-time checks that handle-scoped requests expose their target.
var (
	_ FileScoped = (*CloseRequest)(nil)
	_ FileScoped = (*FlushRequest)(nil)
	_ FileScoped = (*ReadRequest)(nil)
	_ FileScoped = (*WriteRequest)(nil)
	_ FileScoped = (*IoctlRequest)(nil)
	_ FileScoped = (*QueryDirectoryRequest)(nil)
	_ FileScoped = (*ChangeNotifyRequest)(nil)
	_ FileScoped = (*QueryInfoRequest)(nil)
	_ FileScoped = (*SetInfoRequest)(nil)

	_ Response = (*ErrorResponse)(nil)
	_ Response = (*OutputBufferResponse)(nil)
)
