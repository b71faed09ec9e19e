package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
)

// entryNames walks a FileNamesInformation chain.
func entryNames(t *testing.T, buf []byte) []string {
	t.Helper()
	var names []string
	for off := 0; ; {
		r := smbenc.NewReader(buf[off:])
		next := r.ReadUint32()
		r.Skip(4) // FileIndex
		n := int(r.ReadUint32())
		names = append(names, r.ReadUTF16(n))
		require.NoError(t, r.Err())
		if next == 0 {
			return names
		}
		require.Zero(t, next%8, "entries must be 8-byte aligned")
		off += int(next)
	}
}

// populate creates docs\ with three files and returns an open handle on it.
func populate(c *testConn) messages.FileID {
	c.close(c.open("docs", types.FileCreate, types.FileDirectoryFile))
	for _, name := range []string{`docs\b.txt`, `docs\a.txt`, `docs\c.log`} {
		c.close(c.open(name, types.FileCreate, 0))
	}
	return c.open("docs", types.FileOpen, types.FileDirectoryFile)
}

func queryNames(c *testConn, dir messages.FileID, pattern string, flags uint8) *Response {
	return c.do(&messages.QueryDirectoryRequest{
		FileInformationClass: types.FileNamesInformation,
		Flags:                flags,
		FileID:               dir,
		Pattern:              pattern,
		OutputBufferLength:   64 * 1024,
	})
}

func TestQueryDirectory_Enumeration(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := populate(c)

	resp := queryNames(c, dir, "*", 0)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, []string{".", "..", "a.txt", "b.txt", "c.log"}, entryNames(t, outputBuffer(t, resp)))

	resp = queryNames(c, dir, "*", 0)
	assert.Equal(t, types.StatusNoMoreFiles, resp.Header.Status)

	resp = queryNames(c, dir, "*.TXT", types.QueryRestartScans)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, []string{"a.txt", "b.txt"}, entryNames(t, outputBuffer(t, resp)))
}

func TestQueryDirectory_SingleEntry(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := populate(c)

	var got []string
	for {
		resp := queryNames(c, dir, "", types.QueryReturnSingleEntry)
		if resp.Header.Status == types.StatusNoMoreFiles {
			break
		}
		require.Equal(t, types.StatusSuccess, resp.Header.Status)
		names := entryNames(t, outputBuffer(t, resp))
		require.Len(t, names, 1)
		got = append(got, names...)
	}
	assert.Equal(t, []string{".", "..", "a.txt", "b.txt", "c.log"}, got)
}

func TestQueryDirectory_NoMatch(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := populate(c)

	resp := queryNames(c, dir, "missing.*", 0)
	assert.Equal(t, types.StatusNoSuchFile, resp.Header.Status)

	resp = queryNames(c, dir, "missing.*", 0)
	assert.Equal(t, types.StatusNoMoreFiles, resp.Header.Status)
}

func TestQueryDirectory_BufferTooSmall(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := populate(c)

	resp := c.do(&messages.QueryDirectoryRequest{
		FileInformationClass: types.FileIDBothDirectoryInformation,
		FileID:               dir,
		Pattern:              "*",
		OutputBufferLength:   16,
	})
	assert.Equal(t, types.StatusInfoLengthMismatch, resp.Header.Status)
}

func TestQueryDirectory_BufferSplitsListing(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := populate(c)

	// Only one or two short FileNamesInformation entries fit per response.
	req := &messages.QueryDirectoryRequest{
		FileInformationClass: types.FileNamesInformation,
		FileID:               dir,
		Pattern:              "*",
		OutputBufferLength:   32,
	}
	var got []string
	for i := 0; i < 10; i++ {
		resp := c.do(req)
		if resp.Header.Status == types.StatusNoMoreFiles {
			break
		}
		require.Equal(t, types.StatusSuccess, resp.Header.Status)
		got = append(got, entryNames(t, outputBuffer(t, resp))...)
	}
	assert.Equal(t, []string{".", "..", "a.txt", "b.txt", "c.log"}, got)
}

func TestQueryDirectory_Rejections(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := populate(c)
	file := c.open(`docs\a.txt`, types.FileOpen, 0)

	resp := queryNames(c, file, "*", 0)
	assert.Equal(t, types.StatusInvalidParameter, resp.Header.Status)

	resp = c.do(&messages.QueryDirectoryRequest{
		FileInformationClass: types.FileBasicInformation,
		FileID:               dir,
		OutputBufferLength:   4096,
	})
	assert.Equal(t, types.StatusInvalidInfoClass, resp.Header.Status)
}
