package types

import "fmt"

// SMB1ProtocolID is 0xFF 'S' 'M' 'B' read little-endian.
const SMB1ProtocolID uint32 = 0x424D53FF

// SMB2ProtocolID is 0xFE 'S' 'M' 'B' read little-endian.
const SMB2ProtocolID uint32 = 0x424D53FE

// Command is an SMB2 command code. [MS-SMB2] 2.2.1
type Command uint16

const (
	CommandNegotiate      Command = 0x0000
	CommandSessionSetup   Command = 0x0001
	CommandLogoff         Command = 0x0002
	CommandTreeConnect    Command = 0x0003
	CommandTreeDisconnect Command = 0x0004
	CommandCreate         Command = 0x0005
	CommandClose          Command = 0x0006
	CommandFlush          Command = 0x0007
	CommandRead           Command = 0x0008
	CommandWrite          Command = 0x0009
	CommandLock           Command = 0x000A
	CommandIoctl          Command = 0x000B
	CommandCancel         Command = 0x000C
	CommandEcho           Command = 0x000D
	CommandQueryDirectory Command = 0x000E
	CommandChangeNotify   Command = 0x000F
	CommandQueryInfo      Command = 0x0010
	CommandSetInfo        Command = 0x0011
	CommandOplockBreak    Command = 0x0012
)

var commandNames = map[Command]string{
	CommandNegotiate:      "NEGOTIATE",
	CommandSessionSetup:   "SESSION_SETUP",
	CommandLogoff:         "LOGOFF",
	CommandTreeConnect:    "TREE_CONNECT",
	CommandTreeDisconnect: "TREE_DISCONNECT",
	CommandCreate:         "CREATE",
	CommandClose:          "CLOSE",
	CommandFlush:          "FLUSH",
	CommandRead:           "READ",
	CommandWrite:          "WRITE",
	CommandLock:           "LOCK",
	CommandIoctl:          "IOCTL",
	CommandCancel:         "CANCEL",
	CommandEcho:           "ECHO",
	CommandQueryDirectory: "QUERY_DIRECTORY",
	CommandChangeNotify:   "CHANGE_NOTIFY",
	CommandQueryInfo:      "QUERY_INFO",
	CommandSetInfo:        "SET_INFO",
	CommandOplockBreak:    "OPLOCK_BREAK",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_0x%04X", uint16(c))
}

// HeaderFlags is the SMB2 header Flags field. [MS-SMB2] 2.2.1.1
type HeaderFlags uint32

const (
	FlagResponse          HeaderFlags = 0x00000001 // SMB2_FLAGS_SERVER_TO_REDIR
	FlagAsync             HeaderFlags = 0x00000002
	FlagRelatedOperations HeaderFlags = 0x00000004
	FlagSigned            HeaderFlags = 0x00000008
	FlagPriorityMask      HeaderFlags = 0x00000070
	FlagDFSOperations     HeaderFlags = 0x10000000
	FlagReplayOperation   HeaderFlags = 0x20000000
)

// Has reports whether every bit of f is set.
func (h HeaderFlags) Has(f HeaderFlags) bool { return h&f == f }

// Dialect is an SMB2 dialect revision. [MS-SMB2] 2.2.3
type Dialect uint16

const (
	DialectNotSet Dialect = 0x0000
	Dialect0202   Dialect = 0x0202
	Dialect0210   Dialect = 0x0210
	Dialect0300   Dialect = 0x0300
	Dialect0302   Dialect = 0x0302
	Dialect0311   Dialect = 0x0311
	DialectWild   Dialect = 0x02FF
)

func (d Dialect) String() string {
	switch d {
	case DialectNotSet:
		return "NOT_SET"
	case Dialect0202:
		return "2.0.2"
	case Dialect0210:
		return "2.1"
	case Dialect0300:
		return "3.0"
	case Dialect0302:
		return "3.0.2"
	case Dialect0311:
		return "3.1.1"
	case DialectWild:
		return "2.???"
	default:
		return fmt.Sprintf("0x%04X", uint16(d))
	}
}

// ParseDialect accepts the dotted forms used in configuration files.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "2.0.2", "2.02", "0x0202":
		return Dialect0202, nil
	case "2.1", "2.10", "0x0210":
		return Dialect0210, nil
	}
	return DialectNotSet, fmt.Errorf("unsupported dialect %q", s)
}
