package messages

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// ErrMalformed wraps every decoding failure.
var ErrMalformed = errors.New("malformed request")

// Request is a decoded request body.
type Request interface {
	Command() types.Command
}

// Response is a response body ready for encoding.
type Response interface {
	Command() types.Command
	Encode() ([]byte, error)
}

// FileScoped is implemented by requests that target an open handle.
type FileScoped interface {
	Request
	Target() FileID
	SetTarget(FileID)
}

// FileID is the two-part SMB2 file identifier [MS-SMB2] 2.2.14.1.
type FileID struct {
	Persistent uint64
	Volatile   uint64
}

// RelatedFileID is the placeholder related compound requests use for "the
// handle the previous request produced".
var RelatedFileID = FileID{Persistent: ^uint64(0), Volatile: ^uint64(0)}

// IsRelated reports whether f is the compound placeholder.
func (f FileID) IsRelated() bool { return f == RelatedFileID }

func (f FileID) String() string {
	return fmt.Sprintf("%016x:%016x", f.Persistent, f.Volatile)
}

func readFileID(r *smbenc.Reader) FileID {
	return FileID{Persistent: r.ReadUint64(), Volatile: r.ReadUint64()}
}

func writeFileID(w *smbenc.Writer, f FileID) {
	w.WriteUint64(f.Persistent)
	w.WriteUint64(f.Volatile)
}

// headerSize is the SMB2 header length all buffer offsets are based on.
const headerSize = types.HeaderSize

// bodySlice returns length bytes at a header-relative wire offset.
func bodySlice(r *smbenc.Reader, offset, length int) []byte {
	if length == 0 {
		return nil
	}
	return r.Slice(offset-headerSize, length)
}

func malformed(cmd types.Command, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformed, cmd, err)
}

// Unsupported carries the raw body of a command this server does not
// implement, such as LOCK or OPLOCK_BREAK.
type Unsupported struct {
	Cmd  types.Command
	Body []byte
}

func (u *Unsupported) Command() types.Command { return u.Cmd }

// DecodeRequest decodes body as a request of the given command. Commands
// without a decoder yield *Unsupported.
func DecodeRequest(cmd types.Command, body []byte) (Request, error) {
	var (
		req Request
		err error
	)
	switch cmd {
	case types.CommandNegotiate:
		req, err = DecodeNegotiateRequest(body)
	case types.CommandSessionSetup:
		req, err = DecodeSessionSetupRequest(body)
	case types.CommandLogoff:
		req, err = decodeEmpty(body, &LogoffRequest{})
	case types.CommandTreeConnect:
		req, err = DecodeTreeConnectRequest(body)
	case types.CommandTreeDisconnect:
		req, err = decodeEmpty(body, &TreeDisconnectRequest{})
	case types.CommandCreate:
		req, err = DecodeCreateRequest(body)
	case types.CommandClose:
		req, err = DecodeCloseRequest(body)
	case types.CommandFlush:
		req, err = DecodeFlushRequest(body)
	case types.CommandRead:
		req, err = DecodeReadRequest(body)
	case types.CommandWrite:
		req, err = DecodeWriteRequest(body)
	case types.CommandIoctl:
		req, err = DecodeIoctlRequest(body)
	case types.CommandCancel:
		req, err = decodeEmpty(body, &CancelRequest{})
	case types.CommandEcho:
		req, err = decodeEmpty(body, &EchoRequest{})
	case types.CommandQueryDirectory:
		req, err = DecodeQueryDirectoryRequest(body)
	case types.CommandChangeNotify:
		req, err = DecodeChangeNotifyRequest(body)
	case types.CommandQueryInfo:
		req, err = DecodeQueryInfoRequest(body)
	case types.CommandSetInfo:
		req, err = DecodeSetInfoRequest(body)
	default:
		return &Unsupported{Cmd: cmd, Body: body}, nil
	}
	if err != nil {
		return nil, malformed(cmd, err)
	}
	return req, nil
}
