package smbenc

import (
	"encoding/binary"
	"fmt"
)

// Writer appends little-endian fields to a growing buffer.
type Writer struct {
	buf []byte
	err error
}

// NewWriter returns a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) WriteUint8(v uint8) {
	if w.err == nil {
		w.buf = append(w.buf, v)
	}
}

// WriteBool writes 1 for true and 0 for false.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	}
}

func (w *Writer) WriteUint32(v uint32) {
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	}
}

func (w *Writer) WriteUint64(v uint64) {
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	}
}

func (w *Writer) WriteBytes(data []byte) {
	if w.err == nil {
		w.buf = append(w.buf, data...)
	}
}

// WriteUTF16 appends s as UTF-16LE and returns the number of bytes written.
func (w *Writer) WriteUTF16(s string) int {
	if w.err != nil {
		return 0
	}
	b := EncodeUTF16(s)
	w.buf = append(w.buf, b...)
	return len(b)
}

func (w *Writer) WriteZeros(n int) {
	if w.err == nil && n > 0 {
		w.buf = append(w.buf, make([]byte, n)...)
	}
}

// Pad appends zero bytes up to the next multiple of alignment.
func (w *Writer) Pad(alignment int) {
	if w.err != nil || alignment <= 0 {
		return
	}
	if rem := len(w.buf) % alignment; rem != 0 {
		w.buf = append(w.buf, make([]byte, alignment-rem)...)
	}
}

// WriteAt overwrites already-written bytes, for backpatching offsets and lengths.
func (w *Writer) WriteAt(offset int, data []byte) {
	if w.err != nil {
		return
	}
	if offset < 0 || offset+len(data) > len(w.buf) {
		w.err = fmt.Errorf("%w: WriteAt [%d:%d] beyond %d bytes", ErrOutOfRange, offset, offset+len(data), len(w.buf))
		return
	}
	copy(w.buf[offset:], data)
}

// PutUint16At backpatches a uint16.
func (w *Writer) PutUint16At(offset int, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.WriteAt(offset, b[:])
}

// PutUint32At backpatches a uint32.
func (w *Writer) PutUint32At(offset int, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.WriteAt(offset, b[:])
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Err() error { return w.err }
