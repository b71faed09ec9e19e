package messages

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// LOGOFF, TREE_DISCONNECT, CANCEL and ECHO share the 4-byte body
// [MS-SMB2] 2.2.7, 2.2.11, 2.2.30, 2.2.28: StructureSize (4) and Reserved.
const emptyStructureSize = 4

type (
	LogoffRequest         struct{}
	TreeDisconnectRequest struct{}
	CancelRequest         struct{}
	EchoRequest           struct{}

	LogoffResponse         struct{}
	TreeDisconnectResponse struct{}
	EchoResponse           struct{}
	FlushResponse          struct{}
)

func (*LogoffRequest) Command() types.Command         { return types.CommandLogoff }
func (*TreeDisconnectRequest) Command() types.Command { return types.CommandTreeDisconnect }
func (*CancelRequest) Command() types.Command         { return types.CommandCancel }
func (*EchoRequest) Command() types.Command           { return types.CommandEcho }

func (*LogoffResponse) Command() types.Command         { return types.CommandLogoff }
func (*TreeDisconnectResponse) Command() types.Command { return types.CommandTreeDisconnect }
func (*EchoResponse) Command() types.Command           { return types.CommandEcho }
func (*FlushResponse) Command() types.Command          { return types.CommandFlush }

func (*LogoffResponse) Encode() ([]byte, error)         { return encodeEmpty(), nil }
func (*TreeDisconnectResponse) Encode() ([]byte, error) { return encodeEmpty(), nil }
func (*EchoResponse) Encode() ([]byte, error)           { return encodeEmpty(), nil }
func (*FlushResponse) Encode() ([]byte, error)          { return encodeEmpty(), nil }

func decodeEmpty[T Request](body []byte, req T) (Request, error) {
	r := smbenc.NewReader(body)
	r.ExpectUint16(emptyStructureSize)
	r.Skip(2)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

func encodeEmpty() []byte {
	w := smbenc.NewWriter(4)
	w.WriteUint16(emptyStructureSize)
	w.WriteUint16(0)
	return w.Bytes()
}

// ErrorResponse is the SMB2 ERROR response [MS-SMB2] 2.2.2. It is sent in
// place of the command's own response for most failure statuses.
type ErrorResponse struct {
	// Cmd is the command the error answers; the header carries it.
	Cmd       types.Command
	ErrorData []byte
}

func (e *ErrorResponse) Command() types.Command { return e.Cmd }

// Encode writes StructureSize (9), ErrorContextCount, Reserved, ByteCount
// and ErrorData. An empty ErrorData is sent as a single zero byte.
func (e *ErrorResponse) Encode() ([]byte, error) {
	w := smbenc.NewWriter(9 + len(e.ErrorData))
	w.WriteUint16(9)
	w.WriteUint8(0)
	w.WriteUint8(0)
	w.WriteUint32(uint32(len(e.ErrorData)))
	if len(e.ErrorData) == 0 {
		w.WriteUint8(0)
	} else {
		w.WriteBytes(e.ErrorData)
	}
	return w.Bytes(), w.Err()
}
