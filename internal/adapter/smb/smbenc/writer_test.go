package smbenc

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterFields(t *testing.T) {
	w := NewWriter(32)
	w.WriteUint16(0x0039)
	w.WriteBool(true)
	w.WriteBool(false)
	w.WriteUint32(0x12345678)
	w.WriteUint64(1)
	w.WriteBytes([]byte{0xFE})
	w.WriteZeros(2)

	want := []byte{
		0x39, 0x00, 0x01, 0x00,
		0x78, 0x56, 0x34, 0x12,
		0x01, 0, 0, 0, 0, 0, 0, 0,
		0xFE, 0, 0,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %x\nwant %x", w.Bytes(), want)
	}
	if w.Len() != len(want) || w.Err() != nil {
		t.Errorf("len=%d err=%v", w.Len(), w.Err())
	}
}

func TestWriterPad(t *testing.T) {
	tests := []struct {
		start, align, want int
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 4, 12},
		{3, 0, 3},
	}
	for _, tt := range tests {
		w := NewWriter(16)
		w.WriteZeros(tt.start)
		w.Pad(tt.align)
		if w.Len() != tt.want {
			t.Errorf("Pad(%d) from %d: len %d, want %d", tt.align, tt.start, w.Len(), tt.want)
		}
	}
}

func TestWriterBackpatch(t *testing.T) {
	w := NewWriter(8)
	w.WriteUint32(0)
	w.WriteUint16(0)
	w.PutUint32At(0, 0xA1B2C3D4)
	w.PutUint16At(4, 0x0102)
	want := []byte{0xD4, 0xC3, 0xB2, 0xA1, 0x02, 0x01}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %x, want %x", w.Bytes(), want)
	}

	w.PutUint32At(4, 1)
	if !errors.Is(w.Err(), ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", w.Err())
	}
	w.WriteUint8(1)
	if w.Len() != 6 {
		t.Error("writes after an error must be ignored")
	}
}

func TestWriterUTF16(t *testing.T) {
	w := NewWriter(8)
	n := w.WriteUTF16("Dir")
	if n != 6 || !bytes.Equal(w.Bytes(), []byte{'D', 0, 'i', 0, 'r', 0}) {
		t.Errorf("WriteUTF16 wrote %d bytes: %x", n, w.Bytes())
	}
}
