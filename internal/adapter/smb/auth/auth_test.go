package auth

import (
	"testing"
	"time"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

func TestNTLMDetection(t *testing.T) {
	assert.True(t, IsNTLM(BuildNegotiate()))
	assert.Equal(t, NTLMNegotiate, MessageTypeOf(BuildNegotiate()))
	assert.False(t, IsNTLM([]byte("NTLMSSP")))
	assert.False(t, IsNTLM([]byte("XXXXXXXX\x01\x00\x00\x00")))
	assert.Equal(t, NTLMMessageType(0), MessageTypeOf(nil))
}

func TestBuildChallenge(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := BuildChallenge(ChallengeParams{
		Challenge:    [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		TargetName:   "WORKGROUP",
		ComputerName: "DITTO",
		Timestamp:    ts,
	})

	require.Equal(t, NTLMChallenge, MessageTypeOf(msg))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, msg[24:32])

	// TargetName sits right after the fixed part.
	nameLen := int(msg[12]) | int(msg[13])<<8
	assert.Equal(t, 18, nameLen)
	assert.Equal(t, byte(56), msg[16])

	pairs, err := ChallengeTargetInfo(msg)
	require.NoError(t, err)
	assert.Contains(t, pairs, avNbDomainName)
	assert.Contains(t, pairs, avNbComputerName)
	require.Contains(t, pairs, avTimestamp)
	assert.Len(t, pairs[avTimestamp], 8)
}

func TestParseAuthenticate(t *testing.T) {
	t.Run("NamedUser", func(t *testing.T) {
		msg := BuildAuthenticate(AuthenticateParams{
			Domain:      "CORP",
			Username:    "alice",
			Workstation: "LAPTOP",
			NtResponse:  make([]byte, 24),
		})

		m, err := ParseAuthenticate(msg)
		require.NoError(t, err)
		assert.Equal(t, "alice", m.Username)
		assert.Equal(t, "CORP", m.Domain)
		assert.Equal(t, "LAPTOP", m.Workstation)
		assert.Len(t, m.NtChallengeResponse, 24)
		assert.False(t, m.Anonymous())
	})

	t.Run("Anonymous", func(t *testing.T) {
		m, err := ParseAuthenticate(BuildAuthenticate(AuthenticateParams{Anonymous: true}))
		require.NoError(t, err)
		assert.True(t, m.Anonymous())
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := ParseAuthenticate(make([]byte, 10))
		assert.ErrorIs(t, err, ErrNTLMTooShort)

		_, err = ParseAuthenticate(make([]byte, 64))
		assert.ErrorIs(t, err, ErrNTLMSignature)

		neg := append(BuildNegotiate(), make([]byte, 64)...)
		_, err = ParseAuthenticate(neg)
		assert.ErrorIs(t, err, ErrNTLMMessageType)

		bad := BuildAuthenticate(AuthenticateParams{Username: "bob"})
		bad[40] = 0xFF // user name offset
		_, err = ParseAuthenticate(bad)
		assert.ErrorIs(t, err, ErrNTLMFieldOverrun)
	})
}

func TestSPNEGO(t *testing.T) {
	t.Run("InitRoundTrip", func(t *testing.T) {
		tok, err := WrapInit(OIDNTLMSSP, BuildNegotiate())
		require.NoError(t, err)
		assert.Equal(t, byte(0x60), tok[0])

		neg, err := ParseNegToken(tok)
		require.NoError(t, err)
		assert.True(t, neg.Init)
		assert.True(t, neg.Offers(OIDNTLMSSP))
		assert.False(t, neg.Offers(OIDKerberosV5))
		assert.Equal(t, BuildNegotiate(), neg.MechToken)
	})

	t.Run("ResponseRoundTrip", func(t *testing.T) {
		tok, err := BuildResponse(NegStateAcceptIncomplete, OIDNTLMSSP, []byte("payload"))
		require.NoError(t, err)

		neg, err := ParseNegToken(tok)
		require.NoError(t, err)
		assert.False(t, neg.Init)
		assert.Equal(t, NegStateAcceptIncomplete, neg.NegState)
		assert.True(t, neg.SupportedMech.Equal(OIDNTLMSSP))
		assert.Equal(t, []byte("payload"), neg.MechToken)
	})

	t.Run("NegotiateHint", func(t *testing.T) {
		hint, err := NegotiateHint()
		require.NoError(t, err)
		neg, err := ParseNegToken(hint)
		require.NoError(t, err)
		assert.Equal(t, []asn1.ObjectIdentifier{OIDNTLMSSP}, neg.MechTypes)
		assert.Empty(t, neg.MechToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ParseNegToken([]byte{0x01})
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = ParseNegToken([]byte{0x60, 0x03, 0x01, 0x02, 0x03})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func exchange2(t *testing.T, a *GuestAuthenticator, id uint64, user string, wrap bool) (*Result, error) {
	t.Helper()
	first := BuildNegotiate()
	if wrap {
		var err error
		first, err = WrapInit(OIDNTLMSSP, first)
		require.NoError(t, err)
	}
	res, err := a.Step(id, first)
	require.NoError(t, err)
	require.False(t, res.Complete)
	require.NotEmpty(t, res.Token)

	second := BuildAuthenticate(AuthenticateParams{Username: user, Domain: "CORP", NtResponse: make([]byte, 24)})
	if wrap {
		second, err = BuildResponse(NegStateAcceptIncomplete, nil, second)
		require.NoError(t, err)
	}
	return a.Step(id, second)
}

func TestGuestAuthenticator(t *testing.T) {
	t.Run("AllowedUser", func(t *testing.T) {
		a := NewGuestAuthenticator(Options{Users: []string{"Alice"}})
		res, err := exchange2(t, a, 1, "alice", false)
		require.NoError(t, err)
		assert.True(t, res.Complete)
		assert.Equal(t, "alice", res.Identity.Username)
		assert.False(t, res.Identity.Guest)
		assert.Empty(t, res.Token)
		assert.Zero(t, a.Pending())
	})

	t.Run("UnknownUserBecomesGuest", func(t *testing.T) {
		a := NewGuestAuthenticator(Options{AllowGuest: true})
		res, err := exchange2(t, a, 2, "mallory", true)
		require.NoError(t, err)
		assert.True(t, res.Identity.Guest)

		neg, err := ParseNegToken(res.Token)
		require.NoError(t, err)
		assert.Equal(t, NegStateAcceptCompleted, neg.NegState)
	})

	t.Run("UnknownUserRejected", func(t *testing.T) {
		a := NewGuestAuthenticator(Options{Users: []string{"alice"}})
		_, err := exchange2(t, a, 3, "mallory", false)
		assert.ErrorIs(t, err, ErrLogonFailure)
	})

	t.Run("WrappedChallenge", func(t *testing.T) {
		a := NewGuestAuthenticator(Options{AllowGuest: true, ComputerName: "DITTO"})
		tok, err := WrapInit(OIDNTLMSSP, BuildNegotiate())
		require.NoError(t, err)

		res, err := a.Step(4, tok)
		require.NoError(t, err)
		neg, err := ParseNegToken(res.Token)
		require.NoError(t, err)
		assert.Equal(t, NegStateAcceptIncomplete, neg.NegState)
		assert.Equal(t, NTLMChallenge, MessageTypeOf(neg.MechToken))
		assert.Equal(t, 1, a.Pending())

		a.Abandon(4)
		assert.Zero(t, a.Pending())
	})

	t.Run("AuthenticateWithoutChallenge", func(t *testing.T) {
		a := NewGuestAuthenticator(Options{AllowGuest: true})
		_, err := a.Step(5, BuildAuthenticate(AuthenticateParams{Username: "x"}))
		assert.ErrorIs(t, err, ErrUnexpectedMessage)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		res, err := NewGuestAuthenticator(Options{AllowGuest: true}).Step(6, nil)
		require.NoError(t, err)
		assert.True(t, res.Identity.Guest)

		_, err = NewGuestAuthenticator(Options{}).Step(6, nil)
		assert.ErrorIs(t, err, ErrLogonFailure)
	})

	t.Run("AnonymousNeedsGuest", func(t *testing.T) {
		a := NewGuestAuthenticator(Options{})
		_, err := a.Step(7, BuildNegotiate())
		require.NoError(t, err)
		_, err = a.Step(7, BuildAuthenticate(AuthenticateParams{Anonymous: true}))
		assert.ErrorIs(t, err, ErrLogonFailure)
	})

	t.Run("NonNTLMMechToken", func(t *testing.T) {
		tok, err := WrapInit(OIDKerberosV5, []byte("krb5-ap-req"))
		require.NoError(t, err)
		_, err = NewGuestAuthenticator(Options{AllowGuest: true}).Step(8, tok)
		assert.ErrorIs(t, err, ErrUnexpectedMessage)
	})
}

func TestChallengeTimestampIsFiletime(t *testing.T) {
	a := NewGuestAuthenticator(Options{AllowGuest: true})
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	res, err := a.Step(9, BuildNegotiate())
	require.NoError(t, err)
	pairs, err := ChallengeTargetInfo(res.Token)
	require.NoError(t, err)

	ts := pairs[avTimestamp]
	require.Len(t, ts, 8)
	var ft uint64
	for i := 7; i >= 0; i-- {
		ft = ft<<8 | uint64(ts[i])
	}
	assert.True(t, fixed.Equal(types.FiletimeToTime(ft)))
}
