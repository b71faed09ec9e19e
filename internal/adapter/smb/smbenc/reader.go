package smbenc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrShortRead is reported when a read runs past the end of the buffer.
	ErrShortRead = errors.New("smbenc: short read")

	// ErrExpectMismatch is reported by ExpectUint16 on a value mismatch.
	ErrExpectMismatch = errors.New("smbenc: expect mismatch")

	// ErrOutOfRange is reported for offsets outside the buffer.
	ErrOutOfRange = errors.New("smbenc: offset out of range")
)

// Reader reads little-endian fields from a byte slice. After the first
// error every read returns the zero value.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) require(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortRead, n, r.pos, len(r.data)-r.pos)
		return false
	}
	return true
}

func (r *Reader) ReadUint8() uint8 {
	if !r.require(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

// ReadBool reads one byte; any nonzero value is true.
func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

func (r *Reader) ReadUint16() uint16 {
	if !r.require(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *Reader) ReadUint32() uint32 {
	if !r.require(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *Reader) ReadUint64() uint64 {
	if !r.require(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if !r.require(n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}

// ReadUTF16 reads n bytes of UTF-16LE text. An odd n is an error.
func (r *Reader) ReadUTF16(n int) string {
	if n%2 != 0 && r.err == nil {
		r.err = fmt.Errorf("%w: odd UTF-16 byte length %d", ErrShortRead, n)
	}
	b := r.ReadBytes(n)
	if r.err != nil {
		return ""
	}
	return DecodeUTF16(b)
}

// Skip advances n bytes.
func (r *Reader) Skip(n int) {
	if r.require(n) {
		r.pos += n
	}
}

// Seek moves to an absolute offset. Seeking to len(data) is allowed.
func (r *Reader) Seek(offset int) {
	if r.err != nil {
		return
	}
	if offset < 0 || offset > len(r.data) {
		r.err = fmt.Errorf("%w: seek to %d in %d bytes", ErrOutOfRange, offset, len(r.data))
		return
	}
	r.pos = offset
}

// Slice returns a copy of length bytes at an absolute offset without
// moving the cursor. A zero length yields nil.
func (r *Reader) Slice(offset, length int) []byte {
	if r.err != nil || length == 0 {
		return nil
	}
	if offset < 0 || length < 0 || offset+length > len(r.data) {
		r.err = fmt.Errorf("%w: [%d:%d] in %d bytes", ErrOutOfRange, offset, offset+length, len(r.data))
		return nil
	}
	b := make([]byte, length)
	copy(b, r.data[offset:offset+length])
	return b
}

// ExpectUint16 reads a uint16 and records ErrExpectMismatch unless it equals expected.
func (r *Reader) ExpectUint16(expected uint16) {
	v := r.ReadUint16()
	if r.err == nil && v != expected {
		r.err = fmt.Errorf("%w: expected 0x%04X, got 0x%04X at offset %d", ErrExpectMismatch, expected, v, r.pos-2)
	}
}

// EnsureRemaining records an error if fewer than n bytes remain.
func (r *Reader) EnsureRemaining(n int) {
	r.require(n)
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) Remaining() int { return max(len(r.data)-r.pos, 0) }

func (r *Reader) Position() int { return r.pos }

// Len returns the size of the underlying buffer.
func (r *Reader) Len() int { return len(r.data) }
