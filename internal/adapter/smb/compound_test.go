package smb

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/auth"
	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbtest"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/handlers"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/pkg/store/fsstore"
)

// =============================================================================
// Test Helper Functions
// =============================================================================

type flagCloser struct{ closed atomic.Bool }

func (c *flagCloser) Close() error {
	c.closed.Store(true)
	return nil
}

// frameConn runs frames through ProcessFrame without a socket.
type frameConn struct {
	t      *testing.T
	h      *handlers.Handler
	state  *handlers.ConnectionState
	closer *flagCloser
	client *smbtest.Client
	obs    *recordingObserver
}

// recordingObserver collects the commands ProcessFrame reports.
type recordingObserver struct {
	commands []types.Command
	statuses []types.Status
}

func (r *recordingObserver) ObserveCommand(cmd types.Command, status types.Status, _ time.Duration) {
	r.commands = append(r.commands, cmd)
	r.statuses = append(r.statuses, status)
}

func newFrameConn(t *testing.T) *frameConn {
	t.Helper()
	h := handlers.NewHandler(handlers.Config{}, auth.NewGuestAuthenticator(auth.Options{AllowGuest: true}))
	st := fsstore.NewMemory("share")
	t.Cleanup(func() { _ = st.Close() })
	h.AddShare(&registry.Share{Name: "share", Store: st})

	closer := &flagCloser{}
	return &frameConn{
		t:      t,
		h:      h,
		state:  handlers.NewConnectionState(1, "127.0.0.1:50000", closer, nil),
		closer: closer,
		client: smbtest.NewClient(nil),
		obs:    &recordingObserver{},
	}
}

// run processes message and splits the response payload.
func (f *frameConn) run(message []byte) []smbtest.Reply {
	f.t.Helper()
	res, err := ProcessFrame(context.Background(), f.h, f.state, message, f.obs)
	require.NoError(f.t, err)
	for _, fn := range res.AfterSend {
		fn()
	}
	if res.Payload == nil {
		return nil
	}
	replies, err := smbtest.Split(res.Payload)
	require.NoError(f.t, err)
	return replies
}

// do sends a single request.
func (f *frameConn) do(req messages.Request) smbtest.Reply {
	f.t.Helper()
	msg, err := smbtest.Encode(f.client.Header(req.Command()), req)
	require.NoError(f.t, err)
	replies := f.run(msg)
	require.Len(f.t, replies, 1)
	return replies[0]
}

// ready negotiates, logs in and connects to the share.
func (f *frameConn) ready() *frameConn {
	f.t.Helper()
	f.do(&messages.NegotiateRequest{Dialects: []types.Dialect{types.Dialect0210}})
	r := f.do(&messages.SessionSetupRequest{})
	require.Equal(f.t, types.StatusSuccess, r.Header.Status)
	f.client.SessionID = r.Header.SessionID
	r = f.do(&messages.TreeConnectRequest{Path: `\\server\share`})
	require.Equal(f.t, types.StatusSuccess, r.Header.Status)
	f.client.TreeID = r.Header.TreeID
	return f
}

// bare returns the next header with no session or tree, as a related
// request in a chain carries them.
func (f *frameConn) bare(cmd types.Command) *header.SMB2Header {
	hdr := f.client.Header(cmd)
	hdr.SessionID = 0
	hdr.TreeID = 0
	return hdr
}

func (f *frameConn) chain(related bool, hdrs []*header.SMB2Header, reqs ...messages.Request) []smbtest.Reply {
	f.t.Helper()
	msg, err := smbtest.Chain(related, hdrs, reqs)
	require.NoError(f.t, err)
	return f.run(msg)
}

// =============================================================================
// Single requests
// =============================================================================

func TestProcessFrame_Single(t *testing.T) {
	f := newFrameConn(t)
	r := f.do(&messages.NegotiateRequest{Dialects: []types.Dialect{types.Dialect0202}})

	assert.Equal(t, types.StatusSuccess, r.Header.Status)
	assert.True(t, r.Header.IsResponse())
	assert.Zero(t, r.Header.NextCommand)
	assert.True(t, f.state.Negotiated())
}

func TestProcessFrame_LoneCancel(t *testing.T) {
	f := newFrameConn(t).ready()
	msg, err := smbtest.Encode(f.client.Header(types.CommandCancel), &messages.CancelRequest{})
	require.NoError(t, err)

	res, err := ProcessFrame(context.Background(), f.h, f.state, msg, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Payload)
	assert.Equal(t, 1, res.Commands)
}

func TestProcessFrame_ProtocolViolation(t *testing.T) {
	f := newFrameConn(t)
	msg, err := smbtest.Encode(f.client.Header(types.CommandEcho), &messages.EchoRequest{})
	require.NoError(t, err)

	res, err := ProcessFrame(context.Background(), f.h, f.state, msg, nil)
	assert.ErrorIs(t, err, handlers.ErrProtocolViolation)
	assert.Nil(t, res)
	assert.True(t, f.closer.closed.Load())
}

func TestProcessFrame_ResponseFlagOnRequest(t *testing.T) {
	f := newFrameConn(t).ready()
	hdr := f.client.Header(types.CommandEcho)
	hdr.Flags |= types.FlagResponse
	msg, err := smbtest.Encode(hdr, &messages.EchoRequest{})
	require.NoError(t, err)

	_, err = ProcessFrame(context.Background(), f.h, f.state, msg, nil)
	assert.ErrorIs(t, err, handlers.ErrProtocolViolation)
	assert.True(t, f.closer.closed.Load())
}

func TestProcessFrame_MalformedBody(t *testing.T) {
	f := newFrameConn(t).ready()
	msg, err := smbtest.Encode(f.client.Header(types.CommandTreeConnect), &messages.TreeConnectRequest{Path: `\\server\share`})
	require.NoError(t, err)

	replies := f.run(msg[:header.HeaderSize+4])
	require.Len(t, replies, 1)
	assert.Equal(t, types.StatusInvalidParameter, replies[0].Header.Status)
	assert.False(t, f.closer.closed.Load())
}

// truncated encodes req with hdr and keeps only n bytes of its body.
func (f *frameConn) truncated(hdr *header.SMB2Header, req messages.Request, n int) []byte {
	f.t.Helper()
	msg, err := smbtest.Encode(hdr, req)
	require.NoError(f.t, err)
	return msg[:header.HeaderSize+n]
}

func TestProcessFrame_MalformedSecondNegotiate(t *testing.T) {
	f := newFrameConn(t).ready()
	msg := f.truncated(f.client.Header(types.CommandNegotiate),
		&messages.NegotiateRequest{Dialects: []types.Dialect{types.Dialect0202}}, 2)

	res, err := ProcessFrame(context.Background(), f.h, f.state, msg, nil)
	assert.ErrorIs(t, err, handlers.ErrProtocolViolation)
	assert.Nil(t, res)
	assert.True(t, f.closer.closed.Load())
}

func TestProcessFrame_MalformedBodyScopeChecks(t *testing.T) {
	f := newFrameConn(t).ready()
	write := &messages.WriteRequest{FileID: messages.FileID{Persistent: 1, Volatile: 1}, Data: []byte("x")}

	t.Run("UnknownSession", func(t *testing.T) {
		hdr := f.client.Header(types.CommandWrite)
		hdr.SessionID = 0xdead
		replies := f.run(f.truncated(hdr, write, 4))
		require.Len(t, replies, 1)
		assert.Equal(t, types.StatusUserSessionDeleted, replies[0].Header.Status)
		assert.Equal(t, types.CommandWrite, replies[0].Header.Command)
	})

	t.Run("UnknownTree", func(t *testing.T) {
		hdr := f.client.Header(types.CommandWrite)
		hdr.TreeID = 0xbeef
		replies := f.run(f.truncated(hdr, write, 4))
		require.Len(t, replies, 1)
		assert.Equal(t, types.StatusNetworkNameDeleted, replies[0].Header.Status)
	})

	t.Run("ValidScope", func(t *testing.T) {
		replies := f.run(f.truncated(f.client.Header(types.CommandWrite), write, 4))
		require.Len(t, replies, 1)
		assert.Equal(t, types.StatusInvalidParameter, replies[0].Header.Status)
	})

	assert.False(t, f.closer.closed.Load())
}

func TestProcessFrame_Unparseable(t *testing.T) {
	f := newFrameConn(t)
	_, err := ProcessFrame(context.Background(), f.h, f.state, make([]byte, 64), nil)
	assert.ErrorIs(t, err, header.ErrInvalidProtocolID)
}

// =============================================================================
// Compound requests
// =============================================================================

func TestProcessFrame_UnrelatedChain(t *testing.T) {
	f := newFrameConn(t).ready()
	replies := f.chain(false,
		[]*header.SMB2Header{f.client.Header(types.CommandEcho), f.client.Header(types.CommandEcho)},
		&messages.EchoRequest{}, &messages.EchoRequest{})

	require.Len(t, replies, 2)
	assert.NotEqual(t, replies[0].Header.MessageID, replies[1].Header.MessageID)
	assert.False(t, replies[1].Header.IsRelated())
	assert.Equal(t, uint32(72), replies[0].Header.NextCommand)
	assert.Zero(t, replies[1].Header.NextCommand)
}

func TestProcessFrame_RelatedCreateWriteClose(t *testing.T) {
	f := newFrameConn(t).ready()
	replies := f.chain(true,
		[]*header.SMB2Header{f.client.Header(types.CommandCreate), f.bare(types.CommandWrite), f.bare(types.CommandClose)},
		&messages.CreateRequest{
			DesiredAccess:     types.FileReadData | types.FileWriteData,
			CreateDisposition: types.FileCreate,
			Name:              "chained.txt",
		},
		&messages.WriteRequest{FileID: messages.RelatedFileID, Data: []byte("hello")},
		&messages.CloseRequest{FileID: messages.RelatedFileID},
	)

	require.Len(t, replies, 3)
	for i, r := range replies {
		assert.Equal(t, types.StatusSuccess, r.Header.Status, "reply %d (%s)", i, r.Header.Command)
		assert.Equal(t, f.client.SessionID, r.Header.SessionID, "reply %d inherits the session", i)
		assert.Equal(t, f.client.TreeID, r.Header.TreeID, "reply %d inherits the tree", i)
		if i < len(replies)-1 {
			assert.NotZero(t, r.Header.NextCommand)
			assert.Zero(t, r.Header.NextCommand%8)
		}
	}
	assert.False(t, replies[0].Header.IsRelated())
	assert.True(t, replies[1].Header.IsRelated())
	assert.True(t, replies[2].Header.IsRelated())
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(replies[1].Body[4:8]), "bytes written")
	assert.Zero(t, f.h.Opens.Len(), "the related CLOSE released the handle")
}

func TestProcessFrame_RelatedAfterFailedCreate(t *testing.T) {
	f := newFrameConn(t).ready()
	replies := f.chain(true,
		[]*header.SMB2Header{f.client.Header(types.CommandCreate), f.bare(types.CommandFlush)},
		&messages.CreateRequest{DesiredAccess: types.FileReadData, CreateDisposition: types.FileOpen, Name: "missing"},
		&messages.FlushRequest{FileID: messages.RelatedFileID},
	)

	require.Len(t, replies, 2)
	assert.Equal(t, types.StatusObjectNameNotFound, replies[0].Header.Status)
	assert.Equal(t, types.StatusInvalidParameter, replies[1].Header.Status)
}

func TestProcessFrame_ChainMembersIndependent(t *testing.T) {
	f := newFrameConn(t).ready()
	replies := f.chain(false,
		[]*header.SMB2Header{f.client.Header(types.CommandFlush), f.client.Header(types.CommandEcho)},
		&messages.FlushRequest{FileID: messages.FileID{Persistent: 9, Volatile: 9}},
		&messages.EchoRequest{},
	)

	require.Len(t, replies, 2)
	assert.Equal(t, types.StatusFileClosed, replies[0].Header.Status)
	assert.Equal(t, types.StatusSuccess, replies[1].Header.Status)
}

func TestProcessFrame_ChainWithCancel(t *testing.T) {
	f := newFrameConn(t).ready()
	replies := f.chain(false,
		[]*header.SMB2Header{f.client.Header(types.CommandEcho), f.client.Header(types.CommandCancel), f.client.Header(types.CommandEcho)},
		&messages.EchoRequest{}, &messages.CancelRequest{}, &messages.EchoRequest{},
	)

	require.Len(t, replies, 2, "CANCEL has no response")
	assert.Equal(t, uint64(3), replies[0].Header.MessageID)
	assert.Equal(t, uint64(5), replies[1].Header.MessageID)
}

// =============================================================================
// Observation
// =============================================================================

func TestProcessFrame_ObservesEveryCommand(t *testing.T) {
	f := newFrameConn(t).ready()
	f.obs.commands, f.obs.statuses = nil, nil

	f.chain(false,
		[]*header.SMB2Header{f.client.Header(types.CommandFlush), f.client.Header(types.CommandCancel), f.client.Header(types.CommandEcho)},
		&messages.FlushRequest{FileID: messages.FileID{Persistent: 9, Volatile: 9}},
		&messages.CancelRequest{},
		&messages.EchoRequest{},
	)

	assert.Equal(t, []types.Command{types.CommandFlush, types.CommandCancel, types.CommandEcho}, f.obs.commands)
	assert.Equal(t, []types.Status{types.StatusFileClosed, types.StatusSuccess, types.StatusSuccess}, f.obs.statuses)
}
