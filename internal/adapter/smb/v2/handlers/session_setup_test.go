package handlers

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/auth"
	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
	"github.com/marmos91/dittosmb/pkg/store/fsstore"
)

// =============================================================================
// Test Helper Functions
// =============================================================================

// newAuthConn returns a negotiated connection to a handler using authn.
func newAuthConn(t *testing.T, authn *auth.GuestAuthenticator) *testConn {
	t.Helper()
	h := NewHandler(Config{}, authn)
	st := fsstore.NewMemory("share")
	h.AddShare(&registry.Share{Name: "share", Store: st})
	c := attachConn(t, h, st)
	c.negotiate()
	return c
}

func sessionFlagsOf(t *testing.T, resp *Response) uint16 {
	t.Helper()
	require.GreaterOrEqual(t, len(resp.Body), 4)
	return binary.LittleEndian.Uint16(resp.Body[2:4])
}

// ntlmLogin runs both legs of an NTLM exchange and returns the final response.
func (c *testConn) ntlmLogin(params auth.AuthenticateParams) *Response {
	c.t.Helper()
	resp := c.do(&messages.SessionSetupRequest{SecurityBuffer: auth.BuildNegotiate()})
	require.Equal(c.t, types.StatusMoreProcessingRequired, resp.Header.Status)
	require.NotZero(c.t, resp.Header.SessionID)
	require.Greater(c.t, len(resp.Body), 8, "challenge expected")
	c.sessionID = resp.Header.SessionID

	resp = c.do(&messages.SessionSetupRequest{SecurityBuffer: auth.BuildAuthenticate(params)})
	if resp.Header.Status == types.StatusSuccess {
		assert.Equal(c.t, c.sessionID, resp.Header.SessionID)
	}
	return resp
}

// =============================================================================
// Exchanges
// =============================================================================

func TestSessionSetup_KnownUser(t *testing.T) {
	authn := auth.NewGuestAuthenticator(auth.Options{Users: []string{"alice"}})
	c := newAuthConn(t, authn)

	resp := c.ntlmLogin(auth.AuthenticateParams{Username: "Alice", Domain: "CORP", NtResponse: make([]byte, 24)})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Zero(t, sessionFlagsOf(t, resp))
	assert.Zero(t, authn.Pending())

	sess, ok := c.state.SMB2().Sessions.GetSession(c.sessionID)
	require.True(t, ok)
	assert.Equal(t, "Alice", sess.Identity.Username)
	assert.Equal(t, 1, c.h.ActiveSessions())
}

func TestSessionSetup_UnknownUserBecomesGuest(t *testing.T) {
	c := newAuthConn(t, auth.NewGuestAuthenticator(auth.Options{AllowGuest: true, Users: []string{"alice"}}))

	resp := c.ntlmLogin(auth.AuthenticateParams{Username: "mallory", NtResponse: make([]byte, 24)})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, types.SessionFlagIsGuest, sessionFlagsOf(t, resp))
}

func TestSessionSetup_Anonymous(t *testing.T) {
	c := newAuthConn(t, auth.NewGuestAuthenticator(auth.Options{AllowGuest: true}))

	resp := c.ntlmLogin(auth.AuthenticateParams{Anonymous: true})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, types.SessionFlagIsNull, sessionFlagsOf(t, resp))
}

func TestSessionSetup_EmptyBufferGuest(t *testing.T) {
	c := newAuthConn(t, auth.NewGuestAuthenticator(auth.Options{AllowGuest: true}))

	resp := c.do(&messages.SessionSetupRequest{})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, types.SessionFlagIsGuest, sessionFlagsOf(t, resp))
	assert.NotZero(t, resp.Header.SessionID)
}

func TestSessionSetup_LogonFailure(t *testing.T) {
	authn := auth.NewGuestAuthenticator(auth.Options{Users: []string{"alice"}})

	t.Run("UnknownUser", func(t *testing.T) {
		c := newAuthConn(t, authn)
		resp := c.ntlmLogin(auth.AuthenticateParams{Username: "mallory", NtResponse: make([]byte, 24)})
		assert.Equal(t, types.StatusLogonFailure, resp.Header.Status)
		assert.Zero(t, c.h.ActiveSessions())
		assert.Zero(t, authn.Pending())
	})

	t.Run("NoGuest", func(t *testing.T) {
		c := newAuthConn(t, authn)
		resp := c.do(&messages.SessionSetupRequest{})
		assert.Equal(t, types.StatusLogonFailure, resp.Header.Status)
	})

	t.Run("Garbage", func(t *testing.T) {
		c := newAuthConn(t, authn)
		resp := c.do(&messages.SessionSetupRequest{SecurityBuffer: []byte{0xde, 0xad, 0xbe, 0xef}})
		assert.Equal(t, types.StatusLogonFailure, resp.Header.Status)
	})

	t.Run("AuthenticateWithoutChallenge", func(t *testing.T) {
		c := newAuthConn(t, authn)
		resp := c.do(&messages.SessionSetupRequest{
			SecurityBuffer: auth.BuildAuthenticate(auth.AuthenticateParams{Username: "alice"}),
		})
		assert.Equal(t, types.StatusLogonFailure, resp.Header.Status)
	})
}

func TestSessionSetup_ReauthKeepsSession(t *testing.T) {
	c := newTestConn(t).ready("share")
	fid := c.open("f", types.FileCreate, 0)

	resp := c.do(&messages.SessionSetupRequest{})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, c.sessionID, resp.Header.SessionID)
	assert.Equal(t, 1, c.h.ActiveSessions())

	resp = c.do(&messages.FlushRequest{FileID: fid})
	assert.Equal(t, types.StatusSuccess, resp.Header.Status, "handles survive re-authentication")
}

// =============================================================================
// Logoff
// =============================================================================

func TestLogoff_ClosesSession(t *testing.T) {
	c := newTestConn(t).ready("share")
	c.open("a", types.FileCreate, 0)
	c.open("b", types.FileCreate, 0)
	require.Equal(t, 2, c.h.Opens.Len())

	resp := c.do(&messages.LogoffRequest{})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Zero(t, c.h.Opens.Len())
	assert.Zero(t, c.h.ActiveSessions())

	resp = c.do(&messages.EchoRequest{})
	assert.Equal(t, types.StatusSuccess, resp.Header.Status)

	resp = c.do(&messages.TreeConnectRequest{Path: `\\server\share`})
	assert.Equal(t, types.StatusUserSessionDeleted, resp.Header.Status)
}
