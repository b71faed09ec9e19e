package smbenc

import (
	"encoding/binary"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Windows names are sequences of UTF-16 code units and may contain
// unpaired surrogates. Those are carried in Go strings in their generalized
// UTF-8 form (ED A0..BF 80..BF, as in WTF-8), so decoding and re-encoding
// reproduces the original bytes. Well-formed text takes the x/text path.

// EncodeUTF16 converts s to UTF-16LE without a terminator or BOM.
func EncodeUTF16(s string) []byte {
	if s == "" {
		return nil
	}
	if utf8.ValidString(s) {
		b, err := utf16le.NewEncoder().Bytes([]byte(s))
		if err == nil {
			return b
		}
	}
	return encodeUnits(s)
}

// DecodeUTF16 converts UTF-16LE bytes to a string. Unpaired surrogates are
// kept in generalized UTF-8 form. A trailing odd byte is dropped.
func DecodeUTF16(b []byte) string {
	if len(b) < 2 {
		return ""
	}
	b = b[:len(b)&^1]
	if wellFormed(b) {
		if s, err := utf16le.NewDecoder().Bytes(b); err == nil {
			return string(s)
		}
	}
	return decodeUnits(b)
}

// UTF16Len returns the encoded UTF-16LE length of s in bytes.
func UTF16Len(s string) int {
	if !utf8.ValidString(s) {
		return len(encodeUnits(s))
	}
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 4
		} else {
			n += 2
		}
	}
	return n
}

// wellFormed reports whether every surrogate in b is part of a pair.
func wellFormed(b []byte) bool {
	for i := 0; i < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		switch {
		case u < 0xD800 || u > 0xDFFF:
		case u < 0xDC00 && i+3 < len(b):
			next := binary.LittleEndian.Uint16(b[i+2:])
			if next < 0xDC00 || next > 0xDFFF {
				return false
			}
			i += 2
		default:
			return false
		}
	}
	return true
}

func decodeUnits(b []byte) string {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if utf16.IsSurrogate(rune(u)) {
			if u < 0xDC00 && i+3 < len(b) {
				if r := utf16.DecodeRune(rune(u), rune(binary.LittleEndian.Uint16(b[i+2:]))); r != utf8.RuneError {
					out = utf8.AppendRune(out, r)
					i += 2
					continue
				}
			}
			out = append(out, 0xE0|byte(u>>12), 0x80|byte(u>>6)&0x3F, 0x80|byte(u)&0x3F)
			continue
		}
		out = utf8.AppendRune(out, rune(u))
	}
	return string(out)
}

func encodeUnits(s string) []byte {
	out := make([]byte, 0, 2*len(s))
	for i := 0; i < len(s); {
		if u, ok := surrogateAt(s, i); ok {
			out = binary.LittleEndian.AppendUint16(out, u)
			i += 3
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			out = binary.LittleEndian.AppendUint16(out, uint16(hi))
			out = binary.LittleEndian.AppendUint16(out, uint16(lo))
			continue
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(r))
	}
	return out
}

// surrogateAt decodes a lone surrogate in generalized UTF-8 form at s[i:].
func surrogateAt(s string, i int) (uint16, bool) {
	if i+2 < len(s) && s[i] == 0xED && s[i+1]&0xE0 == 0xA0 && s[i+2]&0xC0 == 0x80 {
		return 0xD000 | uint16(s[i+1]&0x3F)<<6 | uint16(s[i+2]&0x3F), true
	}
	return 0, false
}
