package fileinfo

import (
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
)

// FileNotifyInformation is one CHANGE_NOTIFY record. [MS-FSCC] 2.7.1
type FileNotifyInformation struct {
	Action   uint32
	FileName string
}

func (i *FileNotifyInformation) Length() int { return 12 + smbenc.UTF16Len(i.FileName) }

func (i *FileNotifyInformation) Encode() []byte {
	w := smbenc.NewWriter(i.Length())
	w.WriteUint32(0) // NextEntryOffset
	w.WriteUint32(i.Action)
	w.WriteUint32(uint32(smbenc.UTF16Len(i.FileName)))
	w.WriteUTF16(i.FileName)
	return w.Bytes()
}

// EncodeNotifyRecords chains records with 4-byte alignment. ok is false
// when they do not fit in limit bytes.
func EncodeNotifyRecords(records []FileNotifyInformation, limit int) (buf []byte, ok bool) {
	lastOff := 0
	for idx := range records {
		start := len(buf)
		if idx > 0 {
			start = (start + 3) &^ 3
		}
		entry := records[idx].Encode()
		if start+len(entry) > limit {
			return nil, false
		}
		if idx > 0 {
			buf = append(buf, make([]byte, start-len(buf))...)
			putUint32(buf[lastOff:], uint32(start-lastOff))
		}
		buf = append(buf, entry...)
		lastOff = start
	}
	return buf, true
}

// DecodeNotifyRecords walks a NextEntryOffset chain.
func DecodeNotifyRecords(buf []byte) ([]FileNotifyInformation, error) {
	var out []FileNotifyInformation
	off := 0
	for len(buf) > 0 {
		if err := need(buf[off:], 12, "FileNotifyInformation"); err != nil {
			return nil, err
		}
		r := smbenc.NewReader(buf[off:])
		next := r.ReadUint32()
		action := r.ReadUint32()
		nameLen := r.ReadUint32()
		name := r.ReadUTF16(int(nameLen))
		if err := readErr(r, "FileNotifyInformation"); err != nil {
			return nil, err
		}
		out = append(out, FileNotifyInformation{Action: action, FileName: name})
		if next == 0 {
			break
		}
		off += int(next)
		if off >= len(buf) {
			return nil, ErrBufferTooShort
		}
	}
	return out, nil
}
