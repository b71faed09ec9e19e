package handlers

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
)

// readData returns the payload of an encoded READ response.
func readData(t *testing.T, resp *Response) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(resp.Body), 16)
	return resp.Body[16:]
}

func TestReadWrite_RoundTrip(t *testing.T) {
	c := newTestConn(t).ready("share")
	fid := c.open("data.bin", types.FileCreate, types.FileNonDirectoryFile)

	payload := bytes.Repeat([]byte("dittosmb"), 512)
	resp := c.do(&messages.WriteRequest{FileID: fid, Offset: 0, Data: payload})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)

	resp = c.do(&messages.ReadRequest{FileID: fid, Offset: 8, Length: 16})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, payload[8:24], readData(t, resp))

	// Short read at the tail.
	resp = c.do(&messages.ReadRequest{FileID: fid, Offset: uint64(len(payload) - 4), Length: 64})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, payload[len(payload)-4:], readData(t, resp))
}

func TestRead_EndOfFile(t *testing.T) {
	c := newTestConn(t).ready("share")
	fid := c.open("small.txt", types.FileCreate, 0)
	c.do(&messages.WriteRequest{FileID: fid, Data: []byte("abc")})

	t.Run("PastEnd", func(t *testing.T) {
		resp := c.do(&messages.ReadRequest{FileID: fid, Offset: 10, Length: 4})
		assert.Equal(t, types.StatusEndOfFile, resp.Header.Status)
	})

	t.Run("BelowMinimumCount", func(t *testing.T) {
		resp := c.do(&messages.ReadRequest{FileID: fid, Offset: 0, Length: 10, MinimumCount: 5})
		assert.Equal(t, types.StatusEndOfFile, resp.Header.Status)
	})

	t.Run("MinimumCountMet", func(t *testing.T) {
		resp := c.do(&messages.ReadRequest{FileID: fid, Offset: 0, Length: 10, MinimumCount: 3})
		require.Equal(t, types.StatusSuccess, resp.Header.Status)
		assert.Equal(t, []byte("abc"), readData(t, resp))
	})
}

func TestReadWrite_Rejections(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("d", types.FileCreate, types.FileDirectoryFile)
	file := c.open("f", types.FileCreate, 0)

	resp := c.do(&messages.ReadRequest{FileID: dir, Length: 1})
	assert.Equal(t, types.StatusInvalidDeviceRequest, resp.Header.Status)

	resp = c.do(&messages.WriteRequest{FileID: dir, Data: []byte("x")})
	assert.Equal(t, types.StatusInvalidDeviceRequest, resp.Header.Status)

	resp = c.do(&messages.ReadRequest{FileID: file, Length: c.h.Config.MaxReadSize + 1})
	assert.Equal(t, types.StatusInvalidParameter, resp.Header.Status)

	resp = c.do(&messages.ReadRequest{FileID: messages.FileID{Persistent: 999, Volatile: 999}, Length: 1})
	assert.Equal(t, types.StatusFileClosed, resp.Header.Status)
}

func TestWrite_ReadOnlyShare(t *testing.T) {
	rw := newTestConn(t).ready("share")
	rw.close(rw.open("f", types.FileCreate, 0))
	rw.h.AddShare(&registry.Share{Name: "mirror", Store: rw.store, ReadOnly: true})

	c := attachConn(t, rw.h, rw.store).ready("mirror")
	resp := c.create("f", types.FileOpen, 0, types.FileReadData)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)

	resp = c.do(&messages.WriteRequest{FileID: resp.FileID, Data: []byte("x")})
	assert.Equal(t, types.StatusAccessDenied, resp.Header.Status)
}

func TestWrite_ReadOnlyHandle(t *testing.T) {
	c := newTestConn(t).ready("share")
	c.close(c.open("f", types.FileCreate, 0))

	resp := c.create("f", types.FileOpen, 0, types.FileReadData)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)

	resp = c.do(&messages.WriteRequest{FileID: resp.FileID, Data: []byte("x")})
	assert.Equal(t, types.StatusAccessDenied, resp.Header.Status)
}

func TestIoctl(t *testing.T) {
	c := newTestConn(t).ready("share")
	fid := c.open("f", types.FileCreate, 0)

	tests := []struct {
		name   string
		req    *messages.IoctlRequest
		status types.Status
	}{
		{
			name:   "DfsReferral",
			req:    &messages.IoctlRequest{CtlCode: types.FsctlDfsGetReferrals, FileID: messages.FileID{Persistent: math.MaxUint64, Volatile: math.MaxUint64}},
			status: types.StatusFSDriverRequired,
		},
		{
			name:   "DfsReferralEx",
			req:    &messages.IoctlRequest{CtlCode: types.FsctlDfsGetReferralsEx},
			status: types.StatusFSDriverRequired,
		},
		{
			name:   "NoHandle",
			req:    &messages.IoctlRequest{CtlCode: types.FsctlQueryNetworkInterfaces, FileID: messages.FileID{Persistent: math.MaxUint64, Volatile: math.MaxUint64}},
			status: types.StatusNotSupported,
		},
		{
			name:   "StoreDoesNotSupport",
			req:    &messages.IoctlRequest{CtlCode: 0x00090028, FileID: fid, Flags: types.IoctlIsFsctl},
			status: types.StatusNotSupported,
		},
		{
			name:   "ClosedHandle",
			req:    &messages.IoctlRequest{CtlCode: 0x00090028, FileID: messages.FileID{Persistent: 77, Volatile: 77}},
			status: types.StatusFileClosed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.do(tt.req)
			assert.Equal(t, tt.status, resp.Header.Status)
			assert.Equal(t, types.CommandIoctl, resp.Header.Command)
		})
	}
}
