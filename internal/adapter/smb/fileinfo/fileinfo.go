package fileinfo

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
)

// ErrBufferTooShort is returned when a buffer is smaller than the structure it should hold.
var ErrBufferTooShort = errors.New("fileinfo: buffer too short")

// Structure is implemented by every encodable information class.
type Structure interface {
	// Length is the exact number of bytes Encode produces.
	Length() int
	Encode() []byte
}

// Marshal encodes s and checks the result against Length.
func Marshal(s Structure) ([]byte, error) {
	b := s.Encode()
	if len(b) != s.Length() {
		return nil, fmt.Errorf("fileinfo: %T encoded %d bytes, Length reports %d", s, len(b), s.Length())
	}
	return b, nil
}

func need(buf []byte, n int, what string) error {
	if len(buf) < n {
		return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrBufferTooShort, what, n, len(buf))
	}
	return nil
}

// readErr wraps codec errors from r with the structure name.
func readErr(r *smbenc.Reader, what string) error {
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBufferTooShort, what, err)
	}
	return nil
}
