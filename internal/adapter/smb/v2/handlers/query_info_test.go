package handlers

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/fileinfo"
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
)

// =============================================================================
// Test Helper Functions
// =============================================================================

func queryFile(c *testConn, fid messages.FileID, class types.FileInfoClass, length uint32) *Response {
	return c.do(&messages.QueryInfoRequest{
		InfoType:           types.InfoTypeFile,
		FileInfoClass:      uint8(class),
		OutputBufferLength: length,
		FileID:             fid,
	})
}

func queryFS(c *testConn, fid messages.FileID, class types.FsInfoClass) *Response {
	return c.do(&messages.QueryInfoRequest{
		InfoType:           types.InfoTypeFilesystem,
		FileInfoClass:      uint8(class),
		OutputBufferLength: 4096,
		FileID:             fid,
	})
}

// withContent creates name holding data and returns an open handle.
func withContent(c *testConn, name string, data []byte) messages.FileID {
	fid := c.open(name, types.FileCreate, 0)
	resp := c.do(&messages.WriteRequest{FileID: fid, Data: data})
	require.Equal(c.t, types.StatusSuccess, resp.Header.Status)
	return fid
}

// =============================================================================
// File information classes
// =============================================================================

func TestQueryInfo_Basic(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("d", types.FileCreate, types.FileDirectoryFile)
	file := c.open(`d\.hidden`, types.FileCreate, 0)

	resp := queryFile(c, dir, types.FileBasicInformation, 4096)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	buf := outputBuffer(t, resp)
	require.Len(t, buf, 40)
	assert.Equal(t, types.FileAttributeDirectory, binary.LittleEndian.Uint32(buf[32:36]))
	assert.NotZero(t, binary.LittleEndian.Uint64(buf[16:24]), "LastWriteTime")

	resp = queryFile(c, file, types.FileBasicInformation, 4096)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	buf = outputBuffer(t, resp)
	assert.Equal(t, types.FileAttributeHidden, binary.LittleEndian.Uint32(buf[32:36])&types.FileAttributeHidden)
}

func TestQueryInfo_Standard(t *testing.T) {
	c := newTestConn(t).ready("share")
	fid := withContent(c, "f.txt", make([]byte, 5000))

	resp := queryFile(c, fid, types.FileStandardInformation, 4096)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	buf := outputBuffer(t, resp)
	require.Len(t, buf, 24)
	assert.Equal(t, 2*clusterSize, binary.LittleEndian.Uint64(buf[0:8]), "AllocationSize")
	assert.Equal(t, uint64(5000), binary.LittleEndian.Uint64(buf[8:16]), "EndOfFile")
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[16:20]), "NumberOfLinks")
	assert.Zero(t, buf[21], "Directory")
}

func TestQueryInfo_Access(t *testing.T) {
	c := newTestConn(t).ready("share")
	c.close(c.open("f", types.FileCreate, 0))
	resp := c.create("f", types.FileOpen, 0, types.FileReadData|types.FileReadAttributes)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)

	resp = queryFile(c, resp.FileID, types.FileAccessInformation, 4096)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, types.FileReadData|types.FileReadAttributes, binary.LittleEndian.Uint32(outputBuffer(t, resp)))
}

func TestQueryInfo_AllCarriesName(t *testing.T) {
	c := newTestConn(t).ready("share")
	c.close(c.open("docs", types.FileCreate, types.FileDirectoryFile))
	fid := withContent(c, `docs\report.txt`, []byte("hello"))

	resp := queryFile(c, fid, types.FileAllInformation, 4096)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	buf := outputBuffer(t, resp)
	require.Greater(t, len(buf), 100)

	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(buf[48:56]), "EndOfFile")
	n := binary.LittleEndian.Uint32(buf[96:100])
	assert.Equal(t, `\docs\report.txt`, smbenc.DecodeUTF16(buf[100:100+n]))
}

func TestQueryInfo_Stream(t *testing.T) {
	c := newTestConn(t).ready("share")
	dir := c.open("d", types.FileCreate, types.FileDirectoryFile)
	file := withContent(c, "f", []byte("abc"))

	resp := queryFile(c, dir, types.FileStreamInformation, 4096)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Empty(t, outputBuffer(t, resp))

	resp = queryFile(c, file, types.FileStreamInformation, 4096)
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	buf := outputBuffer(t, resp)
	r := smbenc.NewReader(buf)
	assert.Zero(t, r.ReadUint32(), "NextEntryOffset")
	nameLen := int(r.ReadUint32())
	assert.Equal(t, uint64(3), r.ReadUint64())
	r.Skip(8)
	assert.Equal(t, fileinfo.DefaultStreamName, r.ReadUTF16(nameLen))
	require.NoError(t, r.Err())
}

// =============================================================================
// Buffer sizing
// =============================================================================

func TestQueryInfo_BufferSizing(t *testing.T) {
	c := newTestConn(t).ready("share")
	c.close(c.open("a-rather-long-directory-name", types.FileCreate, types.FileDirectoryFile))
	fid := c.open(`a-rather-long-directory-name\file.txt`, types.FileCreate, 0)

	t.Run("FixedClassTooSmall", func(t *testing.T) {
		resp := queryFile(c, fid, types.FileBasicInformation, 39)
		assert.Equal(t, types.StatusInfoLengthMismatch, resp.Header.Status)
	})

	t.Run("NameTruncated", func(t *testing.T) {
		resp := queryFile(c, fid, types.FileNameInformation, 10)
		require.Equal(t, types.StatusBufferOverflow, resp.Header.Status)
		buf := outputBuffer(t, resp)
		require.Len(t, buf, 10)
		full := smbenc.UTF16Len(`\a-rather-long-directory-name\file.txt`)
		assert.Equal(t, uint32(full), binary.LittleEndian.Uint32(buf[0:4]), "length reports the full name")
	})

	t.Run("NameBelowFixedPart", func(t *testing.T) {
		resp := queryFile(c, fid, types.FileNameInformation, 3)
		assert.Equal(t, types.StatusInfoLengthMismatch, resp.Header.Status)
	})

	t.Run("AllTruncated", func(t *testing.T) {
		resp := queryFile(c, fid, types.FileAllInformation, 104)
		require.Equal(t, types.StatusBufferOverflow, resp.Header.Status)
		assert.Len(t, outputBuffer(t, resp), 104)
	})
}

// =============================================================================
// Filesystem information classes
// =============================================================================

func TestQueryInfo_Filesystem(t *testing.T) {
	c := newTestConn(t).ready("share")
	root := c.open("", types.FileOpen, types.FileDirectoryFile)

	t.Run("Attribute", func(t *testing.T) {
		resp := queryFS(c, root, types.FileFsAttributeInformation)
		require.Equal(t, types.StatusSuccess, resp.Header.Status)
		buf := outputBuffer(t, resp)
		attrs := binary.LittleEndian.Uint32(buf[0:4])
		assert.NotZero(t, attrs&fileinfo.FileCasePreserved)
		assert.NotZero(t, attrs&fileinfo.FileUnicodeOnDisk)
		assert.Zero(t, attrs&fileinfo.FileSupportsHardLinks, "memory backend has no hard links")
		assert.Equal(t, uint32(maxComponentNameLength), binary.LittleEndian.Uint32(buf[4:8]))
		n := binary.LittleEndian.Uint32(buf[8:12])
		assert.Equal(t, "NTFS", smbenc.DecodeUTF16(buf[12:12+n]))
	})

	t.Run("Volume", func(t *testing.T) {
		resp := queryFS(c, root, types.FileFsVolumeInformation)
		require.Equal(t, types.StatusSuccess, resp.Header.Status)
		buf := outputBuffer(t, resp)
		require.GreaterOrEqual(t, len(buf), 18)
		n := binary.LittleEndian.Uint32(buf[12:16])
		assert.Equal(t, "share", smbenc.DecodeUTF16(buf[18:18+n]))
	})

	t.Run("Size", func(t *testing.T) {
		resp := queryFS(c, root, types.FileFsSizeInformation)
		require.Equal(t, types.StatusSuccess, resp.Header.Status)
		buf := outputBuffer(t, resp)
		require.Len(t, buf, 24)
		assert.Equal(t, sectorsPerUnit, binary.LittleEndian.Uint32(buf[16:20]))
		assert.Equal(t, bytesPerSector, binary.LittleEndian.Uint32(buf[20:24]))
	})

	t.Run("Device", func(t *testing.T) {
		resp := queryFS(c, root, types.FileFsDeviceInformation)
		require.Equal(t, types.StatusSuccess, resp.Header.Status)
		assert.Equal(t, fileinfo.FileDeviceDisk, binary.LittleEndian.Uint32(outputBuffer(t, resp)[0:4]))
	})
}

// =============================================================================
// Rejections
// =============================================================================

func TestQueryInfo_Rejections(t *testing.T) {
	c := newTestConn(t).ready("share")
	fid := c.open("f", types.FileCreate, 0)

	tests := []struct {
		name   string
		req    *messages.QueryInfoRequest
		status types.Status
	}{
		{"Security", &messages.QueryInfoRequest{InfoType: types.InfoTypeSecurity, OutputBufferLength: 4096, FileID: fid}, types.StatusNotSupported},
		{"Quota", &messages.QueryInfoRequest{InfoType: types.InfoTypeQuota, OutputBufferLength: 4096, FileID: fid}, types.StatusNotSupported},
		{"BadInfoType", &messages.QueryInfoRequest{InfoType: 9, OutputBufferLength: 4096, FileID: fid}, types.StatusInvalidParameter},
		{"UnknownFileClass", &messages.QueryInfoRequest{InfoType: types.InfoTypeFile, FileInfoClass: 200, OutputBufferLength: 4096, FileID: fid}, types.StatusInvalidInfoClass},
		{"UnknownFsClass", &messages.QueryInfoRequest{InfoType: types.InfoTypeFilesystem, FileInfoClass: 2, OutputBufferLength: 4096, FileID: fid}, types.StatusInvalidInfoClass},
		{"ClosedHandle", &messages.QueryInfoRequest{InfoType: types.InfoTypeFile, FileInfoClass: 4, OutputBufferLength: 4096, FileID: messages.FileID{Persistent: 1234}}, types.StatusFileClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.do(tt.req)
			assert.Equal(t, tt.status, resp.Header.Status)
		})
	}
}
