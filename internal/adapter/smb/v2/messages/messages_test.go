package messages

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

func roundTrip(t *testing.T, cmd types.Command, req Request) Request {
	t.Helper()
	body, err := EncodeRequest(req)
	require.NoError(t, err)
	got, err := DecodeRequest(cmd, body)
	require.NoError(t, err)
	assert.Equal(t, cmd, got.Command())
	return got
}

func TestDecodeRequest(t *testing.T) {
	t.Run("Negotiate", func(t *testing.T) {
		guid := uuid.New()
		got := roundTrip(t, types.CommandNegotiate, &NegotiateRequest{
			SecurityMode: types.NegotiateSigningEnabled,
			ClientGUID:   guid,
			Dialects:     []types.Dialect{types.Dialect0202, types.Dialect0210, types.Dialect0300},
		}).(*NegotiateRequest)

		assert.Equal(t, guid, got.ClientGUID)
		assert.Equal(t, []types.Dialect{types.Dialect0202, types.Dialect0210, types.Dialect0300}, got.Dialects)
	})

	t.Run("NegotiateDialectCountOverrun", func(t *testing.T) {
		body, err := EncodeRequest(&NegotiateRequest{Dialects: []types.Dialect{types.Dialect0202}})
		require.NoError(t, err)
		binary.LittleEndian.PutUint16(body[2:], 9)

		_, err = DecodeRequest(types.CommandNegotiate, body)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("TreeConnect", func(t *testing.T) {
		got := roundTrip(t, types.CommandTreeConnect, &TreeConnectRequest{Path: `\\server\Dir`}).(*TreeConnectRequest)
		assert.Equal(t, `\\server\Dir`, got.Path)
	})

	t.Run("CreateWithName", func(t *testing.T) {
		got := roundTrip(t, types.CommandCreate, &CreateRequest{
			DesiredAccess:     types.GenericRead,
			CreateDisposition: types.FileOpenIf,
			CreateOptions:     types.FileDirectoryFile,
			Name:              `Dir\sub`,
		}).(*CreateRequest)

		assert.Equal(t, `Dir\sub`, got.Name)
		assert.Equal(t, types.FileOpenIf, got.CreateDisposition)
		assert.Equal(t, types.FileDirectoryFile, got.CreateOptions)
	})

	t.Run("CreateRoot", func(t *testing.T) {
		got := roundTrip(t, types.CommandCreate, &CreateRequest{CreateDisposition: types.FileOpen}).(*CreateRequest)
		assert.Empty(t, got.Name)
	})

	t.Run("WriteData", func(t *testing.T) {
		id := FileID{Persistent: 5, Volatile: 6}
		got := roundTrip(t, types.CommandWrite, &WriteRequest{Offset: 10, FileID: id, Data: []byte("hello")}).(*WriteRequest)
		assert.Equal(t, []byte("hello"), got.Data)
		assert.Equal(t, uint64(10), got.Offset)
		assert.Equal(t, id, got.Target())
	})

	t.Run("WriteDataOutOfRange", func(t *testing.T) {
		body, err := EncodeRequest(&WriteRequest{Data: []byte("abc")})
		require.NoError(t, err)
		binary.LittleEndian.PutUint32(body[4:], 1000)

		_, err = DecodeRequest(types.CommandWrite, body)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("ChangeNotify", func(t *testing.T) {
		got := roundTrip(t, types.CommandChangeNotify, &ChangeNotifyRequest{
			Flags:              types.WatchTree,
			OutputBufferLength: 4096,
			FileID:             FileID{Persistent: 1, Volatile: 2},
			CompletionFilter:   types.NotifyChangeFileName,
		}).(*ChangeNotifyRequest)
		assert.True(t, got.WatchTree())
		assert.Equal(t, uint32(4096), got.OutputBufferLength)
	})

	t.Run("QueryDirectoryPattern", func(t *testing.T) {
		got := roundTrip(t, types.CommandQueryDirectory, &QueryDirectoryRequest{
			FileInformationClass: types.FileIDBothDirectoryInformation,
			Flags:                types.QueryRestartScans,
			Pattern:              "*.txt",
			OutputBufferLength:   65536,
		}).(*QueryDirectoryRequest)
		assert.Equal(t, "*.txt", got.Pattern)
		assert.True(t, got.Has(types.QueryRestartScans))
		assert.False(t, got.Has(types.QueryReopen))
	})

	t.Run("SetInfoBuffer", func(t *testing.T) {
		got := roundTrip(t, types.CommandSetInfo, &SetInfoRequest{
			InfoType:      types.InfoTypeFile,
			FileInfoClass: uint8(types.FileEndOfFileInformation),
			Buffer:        []byte{1, 2, 3, 4, 5, 6, 7, 8},
		}).(*SetInfoRequest)
		assert.Len(t, got.Buffer, 8)
	})

	t.Run("EmptyBodies", func(t *testing.T) {
		for _, cmd := range []types.Command{types.CommandLogoff, types.CommandTreeDisconnect, types.CommandCancel, types.CommandEcho} {
			req, err := DecodeRequest(cmd, []byte{4, 0, 0, 0})
			require.NoError(t, err, cmd.String())
			assert.Equal(t, cmd, req.Command())
		}

		_, err := DecodeRequest(types.CommandEcho, []byte{5, 0, 0, 0})
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("UnsupportedCommands", func(t *testing.T) {
		req, err := DecodeRequest(types.CommandLock, []byte{48, 0})
		require.NoError(t, err)
		u, ok := req.(*Unsupported)
		require.True(t, ok)
		assert.Equal(t, types.CommandLock, u.Command())

		req, err = DecodeRequest(types.Command(0x99), nil)
		require.NoError(t, err)
		assert.Equal(t, types.Command(0x99), req.Command())
	})

	t.Run("ShortBodies", func(t *testing.T) {
		for _, cmd := range []types.Command{
			types.CommandNegotiate, types.CommandSessionSetup, types.CommandTreeConnect,
			types.CommandCreate, types.CommandClose, types.CommandFlush, types.CommandRead,
			types.CommandWrite, types.CommandIoctl, types.CommandQueryDirectory,
			types.CommandChangeNotify, types.CommandQueryInfo, types.CommandSetInfo,
		} {
			_, err := DecodeRequest(cmd, []byte{1, 0})
			assert.ErrorIs(t, err, ErrMalformed, cmd.String())
		}
	})
}

func TestResponses(t *testing.T) {
	t.Run("ErrorResponseHasPayloadByte", func(t *testing.T) {
		b, err := (&ErrorResponse{Cmd: types.CommandRead}).Encode()
		require.NoError(t, err)
		assert.Equal(t, []byte{9, 0, 0, 0, 0, 0, 0, 0, 0}, b)
	})

	t.Run("NegotiateLayout", func(t *testing.T) {
		guid := uuid.New()
		b, err := (&NegotiateResponse{
			DialectRevision: types.Dialect0210,
			ServerGUID:      guid,
			MaxReadSize:     1 << 20,
			SystemTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			SecurityBuffer:  []byte{0xA0, 0x01},
		}).Encode()
		require.NoError(t, err)
		require.Len(t, b, 66)
		assert.Equal(t, uint16(65), binary.LittleEndian.Uint16(b[0:]))
		assert.Equal(t, uint16(types.Dialect0210), binary.LittleEndian.Uint16(b[4:]))
		assert.Equal(t, guid[:], b[8:24])
		assert.Equal(t, uint32(1<<20), binary.LittleEndian.Uint32(b[32:]))
		assert.Equal(t, uint16(128), binary.LittleEndian.Uint16(b[56:]))
		assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(b[58:]))
	})

	t.Run("CreateLayout", func(t *testing.T) {
		b, err := (&CreateResponse{
			CreateAction:   types.FileCreated,
			EndOfFile:      42,
			FileAttributes: types.FileAttributeDirectory,
			FileID:         FileID{Persistent: 0x11, Volatile: 0x22},
		}).Encode()
		require.NoError(t, err)
		require.Len(t, b, 89)
		assert.Equal(t, uint32(types.FileCreated), binary.LittleEndian.Uint32(b[4:]))
		assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(b[48:]))
		assert.Equal(t, uint64(0x11), binary.LittleEndian.Uint64(b[64:]))
		assert.Equal(t, uint64(0x22), binary.LittleEndian.Uint64(b[72:]))
	})

	t.Run("ReadDataOffset", func(t *testing.T) {
		b, err := (&ReadResponse{Data: []byte("xyz")}).Encode()
		require.NoError(t, err)
		assert.Equal(t, byte(80), b[2])
		assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(b[4:]))
		assert.Equal(t, []byte("xyz"), b[16:])
	})

	t.Run("OutputBufferEmpty", func(t *testing.T) {
		b, err := NewChangeNotifyResponse(nil).Encode()
		require.NoError(t, err)
		assert.Equal(t, []byte{9, 0, 0, 0, 0, 0, 0, 0}, b)

		b, err = NewQueryInfoResponse([]byte{1, 2}).Encode()
		require.NoError(t, err)
		assert.Equal(t, uint16(72), binary.LittleEndian.Uint16(b[2:]))
	})

	t.Run("FixedSizes", func(t *testing.T) {
		for _, tc := range []struct {
			resp Response
			size int
		}{
			{&LogoffResponse{}, 4},
			{&TreeDisconnectResponse{}, 4},
			{&EchoResponse{}, 4},
			{&FlushResponse{}, 4},
			{&SetInfoResponse{}, 2},
			{&WriteResponse{Count: 1}, 16},
			{&CloseResponse{}, 60},
			{&TreeConnectResponse{}, 16},
			{&SessionSetupResponse{}, 8},
			{&IoctlResponse{}, 48},
		} {
			b, err := tc.resp.Encode()
			require.NoError(t, err)
			assert.Len(t, b, tc.size, tc.resp.Command().String())
		}
	})
}

func TestFileID(t *testing.T) {
	assert.True(t, RelatedFileID.IsRelated())
	assert.False(t, FileID{Persistent: 1}.IsRelated())
	assert.Equal(t, "0000000000000001:0000000000000002", FileID{1, 2}.String())

	c := &CloseRequest{Flags: types.ClosePostQueryAttrib}
	assert.True(t, c.PostQueryAttrib())
	c.SetTarget(FileID{3, 4})
	assert.Equal(t, FileID{3, 4}, c.Target())
}
