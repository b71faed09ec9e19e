package fileinfo

import (
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// FileFsVolumeInformation [MS-FSCC] 2.5.9
type FileFsVolumeInformation struct {
	VolumeCreationTime time.Time
	VolumeSerialNumber uint32
	VolumeLabel        string
}

func (i *FileFsVolumeInformation) Length() int { return 18 + smbenc.UTF16Len(i.VolumeLabel) }

func (i *FileFsVolumeInformation) Encode() []byte {
	w := smbenc.NewWriter(i.Length())
	w.WriteUint64(types.TimeToFiletime(i.VolumeCreationTime))
	w.WriteUint32(i.VolumeSerialNumber)
	w.WriteUint32(uint32(smbenc.UTF16Len(i.VolumeLabel)))
	w.WriteUint8(0) // SupportsObjects
	w.WriteUint8(0)
	w.WriteUTF16(i.VolumeLabel)
	return w.Bytes()
}

// FileFsSizeInformation [MS-FSCC] 2.5.8
type FileFsSizeInformation struct {
	TotalAllocationUnits     uint64
	AvailableAllocationUnits uint64
	SectorsPerAllocationUnit uint32
	BytesPerSector           uint32
}

func (i *FileFsSizeInformation) Length() int { return 24 }

func (i *FileFsSizeInformation) Encode() []byte {
	w := smbenc.NewWriter(24)
	w.WriteUint64(i.TotalAllocationUnits)
	w.WriteUint64(i.AvailableAllocationUnits)
	w.WriteUint32(i.SectorsPerAllocationUnit)
	w.WriteUint32(i.BytesPerSector)
	return w.Bytes()
}

// FileFsFullSizeInformation [MS-FSCC] 2.5.4
type FileFsFullSizeInformation struct {
	TotalAllocationUnits           uint64
	CallerAvailableAllocationUnits uint64
	ActualAvailableAllocationUnits uint64
	SectorsPerAllocationUnit       uint32
	BytesPerSector                 uint32
}

func (i *FileFsFullSizeInformation) Length() int { return 32 }

func (i *FileFsFullSizeInformation) Encode() []byte {
	w := smbenc.NewWriter(32)
	w.WriteUint64(i.TotalAllocationUnits)
	w.WriteUint64(i.CallerAvailableAllocationUnits)
	w.WriteUint64(i.ActualAvailableAllocationUnits)
	w.WriteUint32(i.SectorsPerAllocationUnit)
	w.WriteUint32(i.BytesPerSector)
	return w.Bytes()
}

const (
	FileDeviceDisk          uint32 = 0x00000007
	FileRemoteDevice        uint32 = 0x00000010
	FileCaseSensitiveSearch uint32 = 0x00000001
	FileCasePreserved       uint32 = 0x00000002
	FileUnicodeOnDisk       uint32 = 0x00000004
	FileSupportsHardLinks   uint32 = 0x00400000
)

// FileFsDeviceInformation [MS-FSCC] 2.5.10
type FileFsDeviceInformation struct {
	DeviceType      uint32
	Characteristics uint32
}

func (i *FileFsDeviceInformation) Length() int { return 8 }

func (i *FileFsDeviceInformation) Encode() []byte {
	w := smbenc.NewWriter(8)
	w.WriteUint32(i.DeviceType)
	w.WriteUint32(i.Characteristics)
	return w.Bytes()
}

// FileFsAttributeInformation [MS-FSCC] 2.5.1
type FileFsAttributeInformation struct {
	FileSystemAttributes       uint32
	MaximumComponentNameLength uint32
	FileSystemName             string
}

func (i *FileFsAttributeInformation) Length() int { return 12 + smbenc.UTF16Len(i.FileSystemName) }

func (i *FileFsAttributeInformation) Encode() []byte {
	w := smbenc.NewWriter(i.Length())
	w.WriteUint32(i.FileSystemAttributes)
	w.WriteUint32(i.MaximumComponentNameLength)
	w.WriteUint32(uint32(smbenc.UTF16Len(i.FileSystemName)))
	w.WriteUTF16(i.FileSystemName)
	return w.Bytes()
}
