// Package smbenc encodes and decodes little-endian SMB2 wire structures.
//
// Reader and Writer accumulate the first error instead of returning one
// per call, so a decoder reads every field and checks once:
//
//	r := smbenc.NewReader(body)
//	size := r.ReadUint16()
//	flags := r.ReadUint8()
//	fileID := r.ReadBytes(16)
//	if err := r.Err(); err != nil {
//	    return err
//	}
//
// Booleans are one byte (zero is false). Strings are UTF-16LE with
// lengths expressed in bytes.
package smbenc
