package smb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/bufpool"
)

// NetBIOS session message types [RFC 1002] 4.3.1.
const (
	netbiosSessionMessage   = 0x00
	netbiosSessionKeepAlive = 0x85

	netbiosHeaderSize = 4

	// netbiosMaxLength is the largest length a 24-bit NetBIOS field holds.
	netbiosMaxLength = 1<<24 - 1
)

var (
	// ErrSMB1 is returned for a frame carrying an SMB1 message. SMB1 is not
	// served; the connection is closed.
	ErrSMB1 = errors.New("SMB1 is not supported")

	// ErrNotSMB2 is returned for a frame that is neither SMB1 nor SMB2.
	ErrNotSMB2 = errors.New("frame does not carry an SMB2 message")

	// ErrFrameTooLarge is returned for a frame above the configured maximum.
	ErrFrameTooLarge = errors.New("SMB message too large")
)

// LockedWriter serialises writes to a connection. The request loop and
// async change-notify completions share it.
type LockedWriter struct {
	sync.Mutex
}

// ReadFrame reads one NetBIOS session message from conn and returns its
// payload: an SMB2 message, possibly compound.
//
// Keepalive frames are skipped. A frame shorter than an SMB2 header, longer
// than maxMsgSize or carrying SMB1 is an error; the caller closes the
// connection.
//
// Parameters:
//   - ctx: checked between reads
//   - conn: the TCP connection
//   - maxMsgSize: largest accepted payload
//   - readTimeout: deadline for the whole frame (0 = none)
func ReadFrame(ctx context.Context, conn net.Conn, maxMsgSize int, readTimeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
	}

	msgLen, err := readNetBIOSHeader(ctx, conn)
	if err != nil {
		return nil, err
	}

	if msgLen > maxMsgSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, msgLen, maxMsgSize)
	}
	if msgLen < 4 {
		return nil, fmt.Errorf("%w: %d byte frame", ErrNotSMB2, msgLen)
	}

	message := make([]byte, msgLen)
	if _, err := io.ReadFull(conn, message); err != nil {
		return nil, fmt.Errorf("read SMB message: %w", err)
	}

	switch {
	case header.IsSMB1Message(message):
		return nil, ErrSMB1
	case !header.IsSMB2Message(message):
		return nil, ErrNotSMB2
	case msgLen < header.HeaderSize:
		return nil, fmt.Errorf("%w: %d bytes (need %d)", header.ErrMessageTooShort, msgLen, header.HeaderSize)
	}
	return message, nil
}

// readNetBIOSHeader reads session headers until a session message arrives
// and returns its length.
func readNetBIOSHeader(ctx context.Context, conn net.Conn) (int, error) {
	var nb [netbiosHeaderSize]byte
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, err := io.ReadFull(conn, nb[:]); err != nil {
			return 0, err
		}

		switch nb[0] {
		case netbiosSessionMessage:
			return int(nb[1])<<16 | int(nb[2])<<8 | int(nb[3]), nil
		case netbiosSessionKeepAlive:
			logger.Debug("NetBIOS keepalive")
			continue
		default:
			return 0, fmt.Errorf("unsupported NetBIOS message type: 0x%02x", nb[0])
		}
	}
}

// WriteFrame wraps payload in a NetBIOS session header and writes it while
// holding mu. Every wire write goes through here.
func WriteFrame(conn net.Conn, mu *LockedWriter, writeTimeout time.Duration, payload []byte) error {
	if len(payload) > netbiosMaxLength {
		return fmt.Errorf("%w: %d byte response", ErrFrameTooLarge, len(payload))
	}

	frame := bufpool.Get(netbiosHeaderSize + len(payload))
	defer bufpool.Put(frame)

	n := len(payload)
	frame[0] = netbiosSessionMessage
	frame[1] = byte(n >> 16)
	frame[2] = byte(n >> 8)
	frame[3] = byte(n)
	copy(frame[netbiosHeaderSize:], payload)

	mu.Lock()
	defer mu.Unlock()

	if writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("write SMB message: %w", err)
	}
	return nil
}

// command is one SMB2 message of a possibly compound frame.
type command struct {
	Header *header.SMB2Header
	Body   []byte
}

// splitCompound cuts message into its chained commands. Each command ends
// at its NextCommand offset; the last one has NextCommand 0.
func splitCompound(message []byte) ([]command, error) {
	var out []command
	for len(message) > 0 {
		hdr, err := header.Parse(message)
		if err != nil {
			return out, fmt.Errorf("command %d: %w", len(out), err)
		}

		end := len(message)
		if hdr.NextCommand != 0 {
			next := int(hdr.NextCommand)
			if next < header.HeaderSize || next > len(message) || next%8 != 0 {
				return out, fmt.Errorf("command %d: invalid NextCommand %d", len(out), next)
			}
			end = next
		}

		out = append(out, command{Header: hdr, Body: message[header.HeaderSize:end]})
		if hdr.NextCommand == 0 {
			break
		}
		message = message[end:]
	}
	return out, nil
}
