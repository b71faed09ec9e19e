package types

// Header layout.
const (
	HeaderSize          = 64
	HeaderStructureSize = 64
)

// Negotiate capabilities. [MS-SMB2] 2.2.4
const (
	CapDFS      uint32 = 0x00000001
	CapLeasing  uint32 = 0x00000002
	CapLargeMTU uint32 = 0x00000004
)

// Security mode bits.
const (
	NegotiateSigningEnabled  uint16 = 0x0001
	NegotiateSigningRequired uint16 = 0x0002
)

// Session flags. [MS-SMB2] 2.2.6
const (
	SessionFlagIsGuest uint16 = 0x0001
	SessionFlagIsNull  uint16 = 0x0002
)

// Share types and capabilities. [MS-SMB2] 2.2.10
const (
	ShareTypeDisk  uint8 = 0x01
	ShareTypePipe  uint8 = 0x02
	ShareTypePrint uint8 = 0x03

	ShareCapDFS uint32 = 0x00000008
)

// Create dispositions. [MS-SMB2] 2.2.13
type CreateDisposition uint32

const (
	FileSupersede   CreateDisposition = 0
	FileOpen        CreateDisposition = 1
	FileCreate      CreateDisposition = 2
	FileOpenIf      CreateDisposition = 3
	FileOverwrite   CreateDisposition = 4
	FileOverwriteIf CreateDisposition = 5
)

func (d CreateDisposition) Valid() bool { return d <= FileOverwriteIf }

// Create actions returned in the CREATE response.
type CreateAction uint32

const (
	FileSuperseded  CreateAction = 0
	FileOpened      CreateAction = 1
	FileCreated     CreateAction = 2
	FileOverwritten CreateAction = 3
)

// Create options.
const (
	FileDirectoryFile    uint32 = 0x00000001
	FileWriteThrough     uint32 = 0x00000002
	FileSequentialOnly   uint32 = 0x00000004
	FileNonDirectoryFile uint32 = 0x00000040
	FileDeleteOnClose    uint32 = 0x00001000
	FileOpenReparsePoint uint32 = 0x00200000
)

// File attributes. [MS-FSCC] 2.6
const (
	FileAttributeReadOnly  uint32 = 0x00000001
	FileAttributeHidden    uint32 = 0x00000002
	FileAttributeSystem    uint32 = 0x00000004
	FileAttributeDirectory uint32 = 0x00000010
	FileAttributeArchive   uint32 = 0x00000020
	FileAttributeNormal    uint32 = 0x00000080
)

// Access mask bits. [MS-SMB2] 2.2.13.1
const (
	FileReadData        uint32 = 0x00000001
	FileWriteData       uint32 = 0x00000002
	FileAppendData      uint32 = 0x00000004
	FileReadEA          uint32 = 0x00000008
	FileWriteEA         uint32 = 0x00000010
	FileExecute         uint32 = 0x00000020
	FileDeleteChild     uint32 = 0x00000040
	FileReadAttributes  uint32 = 0x00000080
	FileWriteAttributes uint32 = 0x00000100
	Delete              uint32 = 0x00010000
	ReadControl         uint32 = 0x00020000
	WriteDAC            uint32 = 0x00040000
	WriteOwner          uint32 = 0x00080000
	Synchronize         uint32 = 0x00100000
	MaximumAllowed      uint32 = 0x02000000
	GenericAll          uint32 = 0x10000000
	GenericExecute      uint32 = 0x20000000
	GenericWrite        uint32 = 0x40000000
	GenericRead         uint32 = 0x80000000

	FileAllAccess uint32 = 0x001F01FF
)

// WriteAccessMask covers every bit that modifies data, metadata or the namespace.
const WriteAccessMask = FileWriteData | FileAppendData | FileWriteEA |
	FileWriteAttributes | FileDeleteChild | Delete | WriteDAC | WriteOwner |
	GenericWrite | GenericAll | MaximumAllowed

// Share access.
const (
	FileShareRead   uint32 = 0x00000001
	FileShareWrite  uint32 = 0x00000002
	FileShareDelete uint32 = 0x00000004
)

// QUERY_INFO / SET_INFO info types. [MS-SMB2] 2.2.37
const (
	InfoTypeFile       uint8 = 0x01
	InfoTypeFilesystem uint8 = 0x02
	InfoTypeSecurity   uint8 = 0x03
	InfoTypeQuota      uint8 = 0x04
)

// File information classes. [MS-FSCC] 2.4
type FileInfoClass uint8

const (
	FileDirectoryInformation       FileInfoClass = 1
	FileFullDirectoryInformation   FileInfoClass = 2
	FileBothDirectoryInformation   FileInfoClass = 3
	FileBasicInformation           FileInfoClass = 4
	FileStandardInformation        FileInfoClass = 5
	FileInternalInformation        FileInfoClass = 6
	FileEaInformation              FileInfoClass = 7
	FileAccessInformation          FileInfoClass = 8
	FileNameInformation            FileInfoClass = 9
	FileRenameInformation          FileInfoClass = 10
	FileLinkInformation            FileInfoClass = 11
	FileNamesInformation           FileInfoClass = 12
	FileDispositionInformation     FileInfoClass = 13
	FilePositionInformation        FileInfoClass = 14
	FileModeInformation            FileInfoClass = 16
	FileAlignmentInformation       FileInfoClass = 17
	FileAllInformation             FileInfoClass = 18
	FileAllocationInformation      FileInfoClass = 19
	FileEndOfFileInformation       FileInfoClass = 20
	FileStreamInformation          FileInfoClass = 22
	FileNetworkOpenInformation     FileInfoClass = 34
	FileAttributeTagInformation    FileInfoClass = 35
	FileIDBothDirectoryInformation FileInfoClass = 37
	FileIDFullDirectoryInformation FileInfoClass = 38
)

// Filesystem information classes. [MS-FSCC] 2.5
type FsInfoClass uint8

const (
	FileFsVolumeInformation     FsInfoClass = 1
	FileFsSizeInformation       FsInfoClass = 3
	FileFsDeviceInformation     FsInfoClass = 4
	FileFsAttributeInformation  FsInfoClass = 5
	FileFsFullSizeInformation   FsInfoClass = 7
	FileFsObjectIDInformation   FsInfoClass = 8
	FileFsSectorSizeInformation FsInfoClass = 11
)

// QUERY_DIRECTORY flags. [MS-SMB2] 2.2.33
const (
	QueryRestartScans      uint8 = 0x01
	QueryReturnSingleEntry uint8 = 0x02
	QueryIndexSpecified    uint8 = 0x04
	QueryReopen            uint8 = 0x10
)

// CLOSE flags.
const ClosePostQueryAttrib uint16 = 0x0001

// CHANGE_NOTIFY flags and completion filter. [MS-SMB2] 2.2.35
const (
	WatchTree uint16 = 0x0001

	NotifyChangeFileName   uint32 = 0x00000001
	NotifyChangeDirName    uint32 = 0x00000002
	NotifyChangeAttributes uint32 = 0x00000004
	NotifyChangeSize       uint32 = 0x00000008
	NotifyChangeLastWrite  uint32 = 0x00000010
	NotifyChangeLastAccess uint32 = 0x00000020
	NotifyChangeCreation   uint32 = 0x00000040
	NotifyChangeSecurity   uint32 = 0x00000100
)

// FILE_NOTIFY_INFORMATION actions. [MS-FSCC] 2.7.1
const (
	FileActionAdded          uint32 = 0x00000001
	FileActionRemoved        uint32 = 0x00000002
	FileActionModified       uint32 = 0x00000003
	FileActionRenamedOldName uint32 = 0x00000004
	FileActionRenamedNewName uint32 = 0x00000005
)

// IOCTL control codes the server recognises. [MS-SMB2] 2.2.31
const (
	FsctlDfsGetReferrals        uint32 = 0x00060194
	FsctlDfsGetReferralsEx      uint32 = 0x000601B0
	FsctlPipeTransceive         uint32 = 0x0011C017
	FsctlValidateNegotiateInfo  uint32 = 0x00140204
	FsctlQueryNetworkInterfaces uint32 = 0x001401FC

	IoctlIsFsctl uint32 = 0x00000001
)

// Write flags.
const WriteFlagWriteThrough uint32 = 0x00000001
