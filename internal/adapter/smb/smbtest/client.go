// Package smbtest provides a minimal SMB2 client for exercising the server
// over a real or in-memory connection in tests.
package smbtest

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
)

// Reply is one decoded response of a frame.
type Reply struct {
	Header *header.SMB2Header
	Body   []byte
}

// Client issues requests over conn. It is not safe for concurrent use.
type Client struct {
	Conn      net.Conn
	MessageID uint64
	SessionID uint64
	TreeID    uint32

	// Timeout bounds each Recv. Zero means 5 seconds.
	Timeout time.Duration
}

// NewClient wraps conn.
func NewClient(conn net.Conn) *Client {
	return &Client{Conn: conn}
}

// Header returns the next request header for cmd, carrying the client's
// session and tree.
func (c *Client) Header(cmd types.Command) *header.SMB2Header {
	hdr := &header.SMB2Header{
		Command:   cmd,
		Credits:   1,
		MessageID: c.MessageID,
		SessionID: c.SessionID,
		TreeID:    c.TreeID,
	}
	c.MessageID++
	return hdr
}

// Encode returns hdr followed by the encoded body of req.
func Encode(hdr *header.SMB2Header, req messages.Request) ([]byte, error) {
	body, err := messages.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	return append(hdr.Encode(), body...), nil
}

// Chain encodes reqs as one compound message. When related is set every
// request after the first carries RELATED_OPERATIONS.
func Chain(related bool, hdrs []*header.SMB2Header, reqs []messages.Request) ([]byte, error) {
	if len(hdrs) != len(reqs) {
		return nil, fmt.Errorf("%d headers for %d requests", len(hdrs), len(reqs))
	}
	var out []byte
	for i := range reqs {
		hdr := hdrs[i]
		if related && i > 0 {
			hdr.Flags |= types.FlagRelatedOperations
		}
		body, err := messages.EncodeRequest(reqs[i])
		if err != nil {
			return nil, err
		}
		size := header.HeaderSize + len(body)
		padded := size
		if i < len(reqs)-1 {
			padded = (size + 7) &^ 7
			hdr.NextCommand = uint32(padded)
		}
		out = append(out, hdr.Encode()...)
		out = append(out, body...)
		out = append(out, make([]byte, padded-size)...)
	}
	return out, nil
}

// Send writes payload as one NetBIOS session message.
func (c *Client) Send(payload []byte) error {
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	_, err := c.Conn.Write(frame)
	return err
}

// Recv reads one frame and splits it into its responses.
func (c *Client) Recv() ([]Reply, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	_ = c.Conn.SetReadDeadline(time.Now().Add(timeout))

	var nb [4]byte
	if _, err := io.ReadFull(c.Conn, nb[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(nb[:]) & 0x00FFFFFF)
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.Conn, payload); err != nil {
		return nil, err
	}
	return Split(payload)
}

// Split cuts a compound response payload into its replies.
func Split(payload []byte) ([]Reply, error) {
	var out []Reply
	for {
		hdr, err := header.Parse(payload)
		if err != nil {
			return out, err
		}
		end := len(payload)
		if hdr.NextCommand != 0 {
			end = int(hdr.NextCommand)
			if end > len(payload) {
				return out, fmt.Errorf("NextCommand %d beyond %d bytes", end, len(payload))
			}
		}
		out = append(out, Reply{Header: hdr, Body: payload[header.HeaderSize:end]})
		if hdr.NextCommand == 0 {
			return out, nil
		}
		payload = payload[end:]
	}
}

// Do sends req on its own and returns the single reply.
func (c *Client) Do(req messages.Request) (Reply, error) {
	msg, err := Encode(c.Header(req.Command()), req)
	if err != nil {
		return Reply{}, err
	}
	if err := c.Send(msg); err != nil {
		return Reply{}, err
	}
	replies, err := c.Recv()
	if err != nil {
		return Reply{}, err
	}
	if len(replies) != 1 {
		return Reply{}, fmt.Errorf("expected one reply, got %d", len(replies))
	}
	return replies[0], nil
}

// Setup negotiates SMB 2.1, logs in as guest and connects to share,
// leaving the client's session and tree set.
func (c *Client) Setup(share string) error {
	steps := []struct {
		req   messages.Request
		after func(Reply)
	}{
		{&messages.NegotiateRequest{Dialects: []types.Dialect{types.Dialect0202, types.Dialect0210}}, nil},
		{&messages.SessionSetupRequest{}, func(r Reply) { c.SessionID = r.Header.SessionID }},
		{&messages.TreeConnectRequest{Path: `\\server\` + share}, func(r Reply) { c.TreeID = r.Header.TreeID }},
	}
	for _, s := range steps {
		r, err := c.Do(s.req)
		if err != nil {
			return err
		}
		if r.Header.Status != types.StatusSuccess {
			return fmt.Errorf("%s: %s", s.req.Command(), r.Header.Status)
		}
		if s.after != nil {
			s.after(r)
		}
	}
	return nil
}

// FileIDOf returns the FileId of a CREATE response body.
func FileIDOf(body []byte) (messages.FileID, error) {
	if len(body) < 80 {
		return messages.FileID{}, fmt.Errorf("CREATE response too short: %d bytes", len(body))
	}
	return messages.FileID{
		Persistent: binary.LittleEndian.Uint64(body[64:72]),
		Volatile:   binary.LittleEndian.Uint64(body[72:80]),
	}, nil
}
