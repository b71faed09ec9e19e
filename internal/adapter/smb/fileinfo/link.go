package fileinfo

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
)

// FileLinkInformationType2 is the SET_INFO payload that creates a hard link.
// [MS-FSCC] 2.4.21.2
//
//	0   ReplaceIfExists  1 byte
//	1   Reserved         7 bytes
//	8   RootDirectory    8 bytes
//	16  FileNameLength   4 bytes, in bytes
//	20  FileName         UTF-16LE
type FileLinkInformationType2 struct {
	ReplaceIfExists bool
	RootDirectory   uint64
	FileName        string
}

// LinkFixedLength is the size of the link and rename structures without their name.
const LinkFixedLength = 20

func (i *FileLinkInformationType2) FixedLength() int { return LinkFixedLength }

func (i *FileLinkInformationType2) Length() int {
	return LinkFixedLength + smbenc.UTF16Len(i.FileName)
}

func (i *FileLinkInformationType2) Encode() []byte {
	return encodeNamed(i.ReplaceIfExists, i.RootDirectory, i.FileName)
}

// DecodeFileLinkInformationType2 parses buf. Bytes past the name are ignored.
func DecodeFileLinkInformationType2(buf []byte) (*FileLinkInformationType2, error) {
	replace, root, name, err := decodeNamed(buf, "FileLinkInformation")
	if err != nil {
		return nil, err
	}
	return &FileLinkInformationType2{ReplaceIfExists: replace, RootDirectory: root, FileName: name}, nil
}

// FileRenameInformationType2 shares the link layout. [MS-FSCC] 2.4.37.2
type FileRenameInformationType2 struct {
	ReplaceIfExists bool
	RootDirectory   uint64
	FileName        string
}

func (i *FileRenameInformationType2) Length() int {
	return LinkFixedLength + smbenc.UTF16Len(i.FileName)
}

func (i *FileRenameInformationType2) Encode() []byte {
	return encodeNamed(i.ReplaceIfExists, i.RootDirectory, i.FileName)
}

func DecodeFileRenameInformationType2(buf []byte) (*FileRenameInformationType2, error) {
	replace, root, name, err := decodeNamed(buf, "FileRenameInformation")
	if err != nil {
		return nil, err
	}
	return &FileRenameInformationType2{ReplaceIfExists: replace, RootDirectory: root, FileName: name}, nil
}

func encodeNamed(replace bool, root uint64, name string) []byte {
	nameLen := smbenc.UTF16Len(name)
	w := smbenc.NewWriter(LinkFixedLength + nameLen)
	w.WriteBool(replace)
	w.WriteZeros(7)
	w.WriteUint64(root)
	w.WriteUint32(uint32(nameLen))
	w.WriteUTF16(name)
	return w.Bytes()
}

func decodeNamed(buf []byte, what string) (bool, uint64, string, error) {
	if err := need(buf, LinkFixedLength, what); err != nil {
		return false, 0, "", err
	}
	r := smbenc.NewReader(buf)
	replace := r.ReadBool()
	r.Skip(7)
	root := r.ReadUint64()
	nameLen := r.ReadUint32()
	if err := need(buf, LinkFixedLength+int(nameLen), what+" name"); err != nil {
		return false, 0, "", err
	}
	name := r.ReadUTF16(int(nameLen))
	if err := readErr(r, what); err != nil {
		return false, 0, "", err
	}
	return replace, root, name, nil
}
