package handlers

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/auth"
	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/pkg/store/fsstore"
)

// =============================================================================
// Test Helpers
// =============================================================================

var connIDs atomic.Uint64

type fakeCloser struct{ closed atomic.Bool }

func (c *fakeCloser) Close() error {
	c.closed.Store(true)
	return nil
}

// asyncRecorder collects async completions.
type asyncRecorder struct{ ch chan *Response }

func newAsyncRecorder() *asyncRecorder { return &asyncRecorder{ch: make(chan *Response, 16)} }

func (r *asyncRecorder) SendAsync(resp *Response) error {
	r.ch <- resp
	return nil
}

// next waits for one async response.
func (r *asyncRecorder) next(t *testing.T) *Response {
	t.Helper()
	select {
	case resp := <-r.ch:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("no async response")
		return nil
	}
}

// none asserts that no async response arrives within a short window.
func (r *asyncRecorder) none(t *testing.T) {
	t.Helper()
	select {
	case resp := <-r.ch:
		t.Fatalf("unexpected async response: %s", resp.Header.Status)
	case <-time.After(50 * time.Millisecond):
	}
}

// testConn drives a Handler the way a connection goroutine does.
type testConn struct {
	t      *testing.T
	h      *Handler
	state  *ConnectionState
	closer *fakeCloser
	async  *asyncRecorder
	store  *fsstore.Store

	nextMsg   uint64
	sessionID uint64
	treeID    uint32
}

// newTestConn returns a connection to a handler exporting a writable
// "share" and a read-only "ro", both in memory. Guests are allowed.
func newTestConn(t *testing.T) *testConn {
	t.Helper()
	h := NewHandler(Config{}, auth.NewGuestAuthenticator(auth.Options{AllowGuest: true}))
	st := fsstore.NewMemory("share")
	t.Cleanup(func() { _ = st.Close() })
	h.AddShare(&registry.Share{Name: "share", Store: st})
	h.AddShare(&registry.Share{Name: "ro", Store: fsstore.NewMemory("ro"), ReadOnly: true})
	return attachConn(t, h, st)
}

// attachConn opens another connection to h.
func attachConn(t *testing.T, h *Handler, st *fsstore.Store) *testConn {
	closer := &fakeCloser{}
	state := NewConnectionState(connIDs.Add(1), "127.0.0.1:445", closer, nil)
	rec := newAsyncRecorder()
	state.Async = rec
	return &testConn{t: t, h: h, state: state, closer: closer, async: rec, store: st}
}

// nextHeader returns the next request header for cmd.
func (c *testConn) nextHeader(cmd types.Command) *header.SMB2Header {
	hdr := &header.SMB2Header{
		Command:   cmd,
		MessageID: c.nextMsg,
		SessionID: c.sessionID,
		TreeID:    c.treeID,
		Credits:   1,
	}
	c.nextMsg++
	return hdr
}

// dispatch sends req with hdr and runs AfterSend as the transport would.
func (c *testConn) dispatch(hdr *header.SMB2Header, req messages.Request) (*Response, error) {
	resp, err := c.h.Dispatch(context.Background(), c.state, hdr, req)
	if resp != nil && resp.AfterSend != nil {
		resp.AfterSend()
	}
	return resp, err
}

// do sends req and requires a response.
func (c *testConn) do(req messages.Request) *Response {
	c.t.Helper()
	resp, err := c.dispatch(c.nextHeader(req.Command()), req)
	require.NoError(c.t, err)
	require.NotNil(c.t, resp)
	return resp
}

func (c *testConn) negotiate() {
	c.t.Helper()
	resp := c.do(&messages.NegotiateRequest{Dialects: []types.Dialect{types.Dialect0202, types.Dialect0210}})
	require.Equal(c.t, types.StatusSuccess, resp.Header.Status)
}

func (c *testConn) login() {
	c.t.Helper()
	resp := c.do(&messages.SessionSetupRequest{})
	require.Equal(c.t, types.StatusSuccess, resp.Header.Status)
	c.sessionID = resp.Header.SessionID
}

func (c *testConn) connect(share string) {
	c.t.Helper()
	resp := c.do(&messages.TreeConnectRequest{Path: `\\server\` + share})
	require.Equal(c.t, types.StatusSuccess, resp.Header.Status)
	c.treeID = resp.Header.TreeID
}

// ready negotiates, logs in as guest and connects to share.
func (c *testConn) ready(share string) *testConn {
	c.negotiate()
	c.login()
	c.connect(share)
	return c
}

func (c *testConn) create(name string, disp types.CreateDisposition, options, access uint32) *Response {
	c.t.Helper()
	return c.do(&messages.CreateRequest{
		DesiredAccess:     access,
		CreateDisposition: disp,
		CreateOptions:     options,
		Name:              name,
	})
}

// open creates or opens name and requires success.
func (c *testConn) open(name string, disp types.CreateDisposition, options uint32) messages.FileID {
	c.t.Helper()
	resp := c.create(name, disp, options, types.FileReadData|types.FileWriteData)
	require.Equal(c.t, types.StatusSuccess, resp.Header.Status, "create %q", name)
	return resp.FileID
}

func (c *testConn) close(fid messages.FileID) *Response {
	c.t.Helper()
	return c.do(&messages.CloseRequest{FileID: fid})
}

// outputBuffer returns the payload of a QUERY_DIRECTORY, QUERY_INFO or
// CHANGE_NOTIFY response.
func outputBuffer(t *testing.T, resp *Response) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(resp.Body), 8)
	n := binary.LittleEndian.Uint32(resp.Body[4:8])
	require.GreaterOrEqual(t, len(resp.Body), 8+int(n))
	return resp.Body[8 : 8+n]
}
