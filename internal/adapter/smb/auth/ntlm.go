package auth

import (
	"bytes"
	"errors"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// NTLMMessageType identifies the three messages of the NTLM handshake.
// [MS-NLMP] 2.2.1
type NTLMMessageType uint32

const (
	NTLMNegotiate    NTLMMessageType = 1
	NTLMChallenge    NTLMMessageType = 2
	NTLMAuthenticate NTLMMessageType = 3
)

// ntlmSignature starts every NTLM message.
var ntlmSignature = []byte("NTLMSSP\x00")

// NegotiateFlag is an NTLM NEGOTIATE_* bit. [MS-NLMP] 2.2.2.5
type NegotiateFlag uint32

const (
	FlagUnicode          NegotiateFlag = 0x00000001
	FlagOEM              NegotiateFlag = 0x00000002
	FlagRequestTarget    NegotiateFlag = 0x00000004
	FlagNTLM             NegotiateFlag = 0x00000200
	FlagAnonymous        NegotiateFlag = 0x00000800
	FlagAlwaysSign       NegotiateFlag = 0x00008000
	FlagTargetTypeDomain NegotiateFlag = 0x00010000
	FlagTargetTypeServer NegotiateFlag = 0x00020000
	FlagExtendedSecurity NegotiateFlag = 0x00080000
	FlagTargetInfo       NegotiateFlag = 0x00800000
	FlagVersion          NegotiateFlag = 0x02000000
)

// AV_PAIR identifiers used in the challenge target info. [MS-NLMP] 2.2.2.1
const (
	avEOL             uint16 = 0x0000
	avNbComputerName  uint16 = 0x0001
	avNbDomainName    uint16 = 0x0002
	avDNSComputerName uint16 = 0x0003
	avDNSDomainName   uint16 = 0x0004
	avTimestamp       uint16 = 0x0007
)

const (
	challengeFixedSize    = 56
	authenticateFixedSize = 64
)

var (
	ErrNTLMTooShort     = errors.New("ntlm: message too short")
	ErrNTLMSignature    = errors.New("ntlm: invalid signature")
	ErrNTLMMessageType  = errors.New("ntlm: unexpected message type")
	ErrNTLMFieldOverrun = errors.New("ntlm: field outside message")
)

// IsNTLM reports whether buf carries the NTLMSSP signature and a message type.
func IsNTLM(buf []byte) bool {
	return len(buf) >= 12 && bytes.Equal(buf[:8], ntlmSignature)
}

// MessageTypeOf returns the NTLM message type of buf, or 0 when buf is not NTLM.
func MessageTypeOf(buf []byte) NTLMMessageType {
	if !IsNTLM(buf) {
		return 0
	}
	r := smbenc.NewReader(buf)
	r.Skip(8)
	return NTLMMessageType(r.ReadUint32())
}

// ChallengeParams describes the server side of a CHALLENGE message.
type ChallengeParams struct {
	Challenge    [8]byte
	TargetName   string
	ComputerName string
	Timestamp    time.Time
}

// BuildChallenge encodes an NTLM CHALLENGE (type 2) message.
//
// Layout: 56 fixed bytes, then the TargetName payload, then the AV_PAIR
// list. The version field is left zero.
func BuildChallenge(p ChallengeParams) []byte {
	target := smbenc.EncodeUTF16(p.TargetName)
	info := buildTargetInfo(p)

	flags := FlagUnicode | FlagRequestTarget | FlagNTLM | FlagAlwaysSign |
		FlagTargetTypeServer | FlagExtendedSecurity | FlagTargetInfo

	targetOff := challengeFixedSize
	infoOff := targetOff + len(target)

	w := smbenc.NewWriter(infoOff + len(info))
	w.WriteBytes(ntlmSignature)
	w.WriteUint32(uint32(NTLMChallenge))
	w.WriteUint16(uint16(len(target)))
	w.WriteUint16(uint16(len(target)))
	w.WriteUint32(uint32(targetOff))
	w.WriteUint32(uint32(flags))
	w.WriteBytes(p.Challenge[:])
	w.WriteZeros(8)
	w.WriteUint16(uint16(len(info)))
	w.WriteUint16(uint16(len(info)))
	w.WriteUint32(uint32(infoOff))
	w.WriteZeros(8)
	w.WriteBytes(target)
	w.WriteBytes(info)
	return w.Bytes()
}

func buildTargetInfo(p ChallengeParams) []byte {
	w := smbenc.NewWriter(64)
	pair := func(id uint16, value []byte) {
		w.WriteUint16(id)
		w.WriteUint16(uint16(len(value)))
		w.WriteBytes(value)
	}
	if p.TargetName != "" {
		pair(avNbDomainName, smbenc.EncodeUTF16(p.TargetName))
	}
	if p.ComputerName != "" {
		pair(avNbComputerName, smbenc.EncodeUTF16(p.ComputerName))
		pair(avDNSComputerName, smbenc.EncodeUTF16(p.ComputerName))
	}
	if p.TargetName != "" {
		pair(avDNSDomainName, smbenc.EncodeUTF16(p.TargetName))
	}
	if !p.Timestamp.IsZero() {
		ts := smbenc.NewWriter(8)
		ts.WriteUint64(types.TimeToFiletime(p.Timestamp))
		pair(avTimestamp, ts.Bytes())
	}
	pair(avEOL, nil)
	return w.Bytes()
}

// ChallengeTargetInfo extracts the AV_PAIR list of a CHALLENGE message as
// a map from AvId to value.
func ChallengeTargetInfo(buf []byte) (map[uint16][]byte, error) {
	if MessageTypeOf(buf) != NTLMChallenge {
		return nil, ErrNTLMMessageType
	}
	r := smbenc.NewReader(buf)
	r.Seek(40)
	length := int(r.ReadUint16())
	r.Skip(2)
	off := int(r.ReadUint32())
	info := r.Slice(off, length)
	if r.Err() != nil {
		return nil, ErrNTLMFieldOverrun
	}

	pairs := make(map[uint16][]byte)
	ir := smbenc.NewReader(info)
	for ir.Remaining() >= 4 {
		id := ir.ReadUint16()
		n := int(ir.ReadUint16())
		if id == avEOL {
			break
		}
		pairs[id] = ir.ReadBytes(n)
	}
	if ir.Err() != nil {
		return nil, ErrNTLMFieldOverrun
	}
	return pairs, nil
}

// AuthenticateMessage is the subset of an NTLM AUTHENTICATE (type 3)
// message the server uses to pick an identity.
type AuthenticateMessage struct {
	LmChallengeResponse []byte
	NtChallengeResponse []byte
	Domain              string
	Username            string
	Workstation         string
	Flags               NegotiateFlag
}

// Anonymous reports an anonymous logon: the ANONYMOUS flag, or an empty
// user name with empty challenge responses.
func (m *AuthenticateMessage) Anonymous() bool {
	if m.Flags&FlagAnonymous != 0 {
		return true
	}
	return m.Username == "" && len(m.NtChallengeResponse) == 0 && len(m.LmChallengeResponse) <= 1
}

// ParseAuthenticate decodes an NTLM AUTHENTICATE message. Fields whose
// offset or length fall outside buf are an error.
func ParseAuthenticate(buf []byte) (*AuthenticateMessage, error) {
	if len(buf) < authenticateFixedSize {
		return nil, ErrNTLMTooShort
	}
	if !IsNTLM(buf) {
		return nil, ErrNTLMSignature
	}
	if MessageTypeOf(buf) != NTLMAuthenticate {
		return nil, ErrNTLMMessageType
	}

	r := smbenc.NewReader(buf)
	r.Seek(12)
	field := func() []byte {
		length := int(r.ReadUint16())
		r.Skip(2)
		off := int(r.ReadUint32())
		return r.Slice(off, length)
	}

	m := &AuthenticateMessage{}
	m.LmChallengeResponse = field()
	m.NtChallengeResponse = field()
	domain := field()
	user := field()
	ws := field()
	_ = field() // EncryptedRandomSessionKey
	m.Flags = NegotiateFlag(r.ReadUint32())
	if r.Err() != nil {
		return nil, ErrNTLMFieldOverrun
	}

	decode := func(b []byte) string {
		if m.Flags&FlagUnicode != 0 {
			return smbenc.DecodeUTF16(b[:len(b)&^1])
		}
		return string(b)
	}
	m.Domain = decode(domain)
	m.Username = decode(user)
	m.Workstation = decode(ws)
	return m, nil
}

// BuildNegotiate encodes a minimal NTLM NEGOTIATE (type 1) message.
func BuildNegotiate() []byte {
	w := smbenc.NewWriter(32)
	w.WriteBytes(ntlmSignature)
	w.WriteUint32(uint32(NTLMNegotiate))
	w.WriteUint32(uint32(FlagUnicode | FlagRequestTarget | FlagNTLM | FlagExtendedSecurity))
	w.WriteZeros(16)
	return w.Bytes()
}

// AuthenticateParams describes a client AUTHENTICATE message.
type AuthenticateParams struct {
	Domain      string
	Username    string
	Workstation string
	NtResponse  []byte
	Anonymous   bool
}

// BuildAuthenticate encodes an NTLM AUTHENTICATE (type 3) message with
// Unicode strings.
func BuildAuthenticate(p AuthenticateParams) []byte {
	domain := smbenc.EncodeUTF16(p.Domain)
	user := smbenc.EncodeUTF16(p.Username)
	ws := smbenc.EncodeUTF16(p.Workstation)
	payloads := [][]byte{nil, p.NtResponse, domain, user, ws, nil}

	flags := FlagUnicode | FlagNTLM | FlagExtendedSecurity
	if p.Anonymous {
		flags |= FlagAnonymous
	}

	w := smbenc.NewWriter(authenticateFixedSize + len(domain) + len(user) + len(ws) + len(p.NtResponse))
	w.WriteBytes(ntlmSignature)
	w.WriteUint32(uint32(NTLMAuthenticate))
	off := authenticateFixedSize
	for _, b := range payloads {
		w.WriteUint16(uint16(len(b)))
		w.WriteUint16(uint16(len(b)))
		w.WriteUint32(uint32(off))
		off += len(b)
	}
	w.WriteUint32(uint32(flags))
	for _, b := range payloads {
		w.WriteBytes(b)
	}
	return w.Bytes()
}
