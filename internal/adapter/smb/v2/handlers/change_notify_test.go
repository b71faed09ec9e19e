package handlers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/fileinfo"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
)

// =============================================================================
// Test Helper Functions
// =============================================================================

// watch places a CHANGE_NOTIFY on dir and returns the interim response.
func (c *testConn) watch(dir messages.FileID, length uint32, flags uint16) *Response {
	c.t.Helper()
	resp := c.do(&messages.ChangeNotifyRequest{
		Flags:              flags,
		OutputBufferLength: length,
		FileID:             dir,
		CompletionFilter:   types.NotifyChangeFileName | types.NotifyChangeDirName,
	})
	require.Equal(c.t, types.StatusPending, resp.Header.Status)
	require.True(c.t, resp.Header.IsAsync())
	require.NotZero(c.t, resp.Header.AsyncID)
	return resp
}

// cancelAsync sends a CANCEL addressed by AsyncId.
func (c *testConn) cancelAsync(asyncID uint64) {
	c.t.Helper()
	hdr := c.nextHeader(types.CommandCancel)
	hdr.SetAsync(asyncID)
	resp, err := c.dispatch(hdr, &messages.CancelRequest{})
	require.NoError(c.t, err)
	require.Nil(c.t, resp)
}

// cancelMessage sends a CANCEL addressed by the MessageId of the request.
func (c *testConn) cancelMessage(messageID uint64) {
	c.t.Helper()
	hdr := c.nextHeader(types.CommandCancel)
	hdr.MessageID = messageID
	resp, err := c.dispatch(hdr, &messages.CancelRequest{})
	require.NoError(c.t, err)
	require.Nil(c.t, resp)
}

func notifyRecordsOf(t *testing.T, resp *Response) []fileinfo.FileNotifyInformation {
	t.Helper()
	records, err := fileinfo.DecodeNotifyRecords(outputBuffer(t, resp))
	require.NoError(t, err)
	return records
}

// =============================================================================
// Completion
// =============================================================================

func TestChangeNotify_CompletesOnChange(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)

	interim := c.watch(dir, 4096, 0)
	assert.Equal(t, types.CommandChangeNotify, interim.Header.Command)
	c.async.none(t)

	c.close(c.open(`watched\new.txt`, types.FileCreate, 0))

	final := c.async.next(t)
	assert.Equal(t, types.StatusSuccess, final.Header.Status)
	assert.True(t, final.Header.IsAsync())
	assert.Equal(t, interim.Header.AsyncID, final.Header.AsyncID)
	assert.Equal(t, interim.Header.MessageID, final.Header.MessageID)
	assert.Equal(t, c.sessionID, final.Header.SessionID)
	assert.Equal(t, uint16(1), final.Header.Credits)

	records := notifyRecordsOf(t, final)
	require.Len(t, records, 1)
	assert.Equal(t, types.FileActionAdded, records[0].Action)
	assert.Equal(t, "new.txt", records[0].FileName)
	assert.Zero(t, c.h.Notify.Pending())

	// One-shot: further changes produce nothing.
	c.close(c.open(`watched\other.txt`, types.FileCreate, 0))
	c.async.none(t)
}

func TestChangeNotify_FinalResponseGrantsCredits(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)

	hdr := c.nextHeader(types.CommandChangeNotify)
	hdr.Credits = 8
	hdr.CreditCharge = 1
	interim, err := c.dispatch(hdr, &messages.ChangeNotifyRequest{
		OutputBufferLength: 4096,
		FileID:             dir,
		CompletionFilter:   types.NotifyChangeFileName,
	})
	require.NoError(t, err)
	require.Equal(t, types.StatusPending, interim.Header.Status)

	c.cancelAsync(interim.Header.AsyncID)

	final := c.async.next(t)
	assert.Equal(t, types.StatusCancelled, final.Header.Status)
	assert.Equal(t, uint16(8), final.Header.Credits)
	assert.Equal(t, uint16(1), final.Header.CreditCharge)
}

func TestChangeNotify_WatchTree(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("top", types.FileCreate, types.FileDirectoryFile)
	c.close(c.open(`top\sub`, types.FileCreate, types.FileDirectoryFile))

	c.watch(dir, 4096, types.WatchTree)
	c.close(c.open(`top\sub\deep.txt`, types.FileCreate, 0))

	final := c.async.next(t)
	require.Equal(t, types.StatusSuccess, final.Header.Status)
	records := notifyRecordsOf(t, final)
	require.Len(t, records, 1)
	assert.Equal(t, `sub\deep.txt`, records[0].FileName)
}

func TestChangeNotify_SmallBufferEnumDir(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)

	c.watch(dir, 8, 0)
	c.close(c.open(`watched\a-long-enough-name.txt`, types.FileCreate, 0))

	final := c.async.next(t)
	assert.Equal(t, types.StatusNotifyEnumDir, final.Header.Status)
	assert.Empty(t, outputBuffer(t, final))
}

func TestChangeNotify_ZeroBufferEnumDir(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)

	c.watch(dir, 0, 0)
	c.close(c.open(`watched\x`, types.FileCreate, 0))

	final := c.async.next(t)
	assert.Equal(t, types.StatusNotifyEnumDir, final.Header.Status)
}

// =============================================================================
// Cancellation
// =============================================================================

func TestChangeNotify_CancelByAsyncID(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)
	interim := c.watch(dir, 4096, 0)

	c.cancelAsync(interim.Header.AsyncID)

	final := c.async.next(t)
	assert.Equal(t, types.StatusCancelled, final.Header.Status)
	assert.Equal(t, interim.Header.AsyncID, final.Header.AsyncID)
	assert.Zero(t, c.h.Notify.Pending())
	assert.Zero(t, c.store.PendingWatches())

	// A second cancel and a later change are both no-ops.
	c.cancelAsync(interim.Header.AsyncID)
	c.close(c.open(`watched\x`, types.FileCreate, 0))
	c.async.none(t)
}

func TestChangeNotify_CancelByMessageID(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)
	interim := c.watch(dir, 4096, 0)

	c.cancelMessage(interim.Header.MessageID)

	final := c.async.next(t)
	assert.Equal(t, types.StatusCancelled, final.Header.Status)
	assert.Equal(t, interim.Header.MessageID, final.Header.MessageID)
	c.async.none(t)
}

func TestChangeNotify_CancelOtherConnectionIgnored(t *testing.T) {
	a := newTestConn(t).ready("share")
	dir := a.open("watched", types.FileCreate, types.FileDirectoryFile)
	interim := a.watch(dir, 4096, 0)

	b := attachConn(t, a.h, a.store).ready("share")
	b.cancelMessage(interim.Header.MessageID)

	a.async.none(t)
	assert.Equal(t, 1, a.h.Notify.Pending())
}

func TestChangeNotify_CancelAsyncFromOtherConnectionIgnored(t *testing.T) {
	a := newTestConn(t).ready("share")
	dir := a.open("watched", types.FileCreate, types.FileDirectoryFile)
	interim := a.watch(dir, 4096, 0)

	// CANCEL is handled before any session lookup, so a connection that has
	// only negotiated can send one.
	b := attachConn(t, a.h, a.store)
	b.negotiate()
	b.cancelAsync(interim.Header.AsyncID)

	a.async.none(t)
	assert.Equal(t, 1, a.h.Notify.Pending())

	a.cancelAsync(interim.Header.AsyncID)
	assert.Equal(t, types.StatusCancelled, a.async.next(t).Header.Status)
}

func TestChangeNotify_CloseHandleCancels(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)
	c.watch(dir, 4096, 0)

	resp := c.close(dir)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)

	final := c.async.next(t)
	assert.Equal(t, types.StatusCancelled, final.Header.Status)
	assert.Zero(t, c.h.Notify.Pending())
	c.async.none(t)
}

func TestChangeNotify_CancelThenClose(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)
	interim := c.watch(dir, 4096, 0)

	c.cancelAsync(interim.Header.AsyncID)
	assert.Equal(t, types.StatusCancelled, c.async.next(t).Header.Status)

	c.close(dir)
	c.async.none(t)
}

func TestChangeNotify_LogoffCancels(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)
	c.watch(dir, 4096, 0)

	resp := c.do(&messages.LogoffRequest{})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)

	assert.Equal(t, types.StatusCancelled, c.async.next(t).Header.Status)
	assert.Zero(t, c.h.Opens.Len())
}

func TestChangeNotify_RacingCompletionsFireOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		c := newTestConn(t).ready("share")
		dir := c.open("watched", types.FileCreate, types.FileDirectoryFile)
		interim := c.watch(dir, 4096, 0)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			c.h.Notify.Cancel(c.state.ConnID, interim.Header.AsyncID)
		}()
		go func() {
			defer wg.Done()
			c.h.Notify.CancelHandle(dir.Persistent)
		}()
		go func() {
			defer wg.Done()
			c.h.Notify.CancelConnection(c.state.ConnID)
		}()
		wg.Wait()

		assert.Equal(t, types.StatusCancelled, c.async.next(t).Header.Status)
		c.async.none(t)
		assert.Zero(t, c.h.Notify.Pending())
	}
}

// =============================================================================
// Rejections
// =============================================================================

func TestChangeNotify_Rejections(t *testing.T) {
	c := newTestConn(t).ready("share")
	file := c.open("f", types.FileCreate, 0)

	resp := c.do(&messages.ChangeNotifyRequest{FileID: file, OutputBufferLength: 4096, CompletionFilter: types.NotifyChangeFileName})
	assert.Equal(t, types.StatusInvalidParameter, resp.Header.Status)

	resp = c.do(&messages.ChangeNotifyRequest{FileID: messages.FileID{Persistent: 55, Volatile: 55}, OutputBufferLength: 4096})
	assert.Equal(t, types.StatusFileClosed, resp.Header.Status)

	dir := c.open("d", types.FileCreate, types.FileDirectoryFile)
	c.state.Async = nil
	resp = c.do(&messages.ChangeNotifyRequest{FileID: dir, OutputBufferLength: 4096, CompletionFilter: types.NotifyChangeFileName})
	assert.Equal(t, types.StatusNotSupported, resp.Header.Status)
	assert.Zero(t, c.h.Notify.Pending())
}
