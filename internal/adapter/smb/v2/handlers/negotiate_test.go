package handlers

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/internal/adapter/smb/auth"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/adapter/smb/v2/messages"
)

func dialectOf(t *testing.T, resp *Response) types.Dialect {
	t.Helper()
	require.GreaterOrEqual(t, len(resp.Body), 6)
	return types.Dialect(binary.LittleEndian.Uint16(resp.Body[4:6]))
}

func TestNegotiate_DialectSelection(t *testing.T) {
	tests := []struct {
		name       string
		enabled    []types.Dialect
		offered    []types.Dialect
		status     types.Status
		dialect    types.Dialect
		negotiated bool
	}{
		{
			name:       "Prefers21",
			offered:    []types.Dialect{types.Dialect0202, types.Dialect0210, types.Dialect0300},
			status:     types.StatusSuccess,
			dialect:    types.Dialect0210,
			negotiated: true,
		},
		{
			name:       "Only202",
			offered:    []types.Dialect{types.Dialect0202},
			status:     types.StatusSuccess,
			dialect:    types.Dialect0202,
			negotiated: true,
		},
		{
			name:       "WildcardAnswersWildcard",
			offered:    []types.Dialect{types.DialectWild},
			status:     types.StatusSuccess,
			dialect:    types.DialectWild,
			negotiated: false,
		},
		{
			name:       "WildcardWith21",
			offered:    []types.Dialect{types.DialectWild, types.Dialect0210},
			status:     types.StatusSuccess,
			dialect:    types.Dialect0210,
			negotiated: true,
		},
		{
			name:    "OnlySMB3",
			offered: []types.Dialect{types.Dialect0300, types.Dialect0311},
			status:  types.StatusNotSupported,
		},
		{
			name:       "ConfigDisables21",
			enabled:    []types.Dialect{types.Dialect0202},
			offered:    []types.Dialect{types.Dialect0202, types.Dialect0210},
			status:     types.StatusSuccess,
			dialect:    types.Dialect0202,
			negotiated: true,
		},
		{
			name:    "ConfigDisables202",
			enabled: []types.Dialect{types.Dialect0210},
			offered: []types.Dialect{types.Dialect0202, types.DialectWild},
			status:  types.StatusNotSupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Config{Dialects: tt.enabled}, auth.NewGuestAuthenticator(auth.Options{AllowGuest: true}))
			c := attachConn(t, h, nil)

			resp := c.do(&messages.NegotiateRequest{Dialects: tt.offered})
			require.Equal(t, tt.status, resp.Header.Status)
			assert.Equal(t, tt.negotiated, c.state.Negotiated())
			if tt.status != types.StatusSuccess {
				return
			}
			assert.Equal(t, tt.dialect, dialectOf(t, resp))
			if tt.negotiated {
				assert.Equal(t, tt.dialect, c.state.SMB2().Dialect)
			}
		})
	}
}

func TestNegotiate_WildcardThenReal(t *testing.T) {
	c := newTestConn(t)

	resp := c.do(&messages.NegotiateRequest{Dialects: []types.Dialect{types.DialectWild}})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	require.False(t, c.state.Negotiated())

	// The follow-up NEGOTIATE is not a protocol violation.
	resp = c.do(&messages.NegotiateRequest{Dialects: []types.Dialect{types.Dialect0202, types.Dialect0210}})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)
	assert.Equal(t, types.Dialect0210, dialectOf(t, resp))
	assert.True(t, c.state.Negotiated())
}

func TestNegotiate_NoCommonDialectAllowsRetry(t *testing.T) {
	c := newTestConn(t)

	resp := c.do(&messages.NegotiateRequest{Dialects: []types.Dialect{types.Dialect0311}})
	require.Equal(t, types.StatusNotSupported, resp.Header.Status)
	assert.False(t, c.closer.closed.Load())

	c.negotiate()
	assert.True(t, c.state.Negotiated())
}

func TestNegotiate_ResponseFields(t *testing.T) {
	c := newTestConn(t)
	resp := c.do(&messages.NegotiateRequest{Dialects: []types.Dialect{types.Dialect0210}})
	require.Equal(t, types.StatusSuccess, resp.Header.Status)

	body := resp.Body
	require.GreaterOrEqual(t, len(body), 64)
	assert.Equal(t, uint16(65), binary.LittleEndian.Uint16(body[0:2]), "StructureSize")
	assert.Equal(t, types.NegotiateSigningEnabled, binary.LittleEndian.Uint16(body[2:4]))
	assert.Equal(t, c.h.Config.ServerGUID[:], body[8:24])
	assert.Equal(t, types.CapLargeMTU, binary.LittleEndian.Uint32(body[24:28]))
	assert.Equal(t, c.h.Config.MaxTransactSize, binary.LittleEndian.Uint32(body[28:32]))
	assert.Equal(t, c.h.Config.MaxReadSize, binary.LittleEndian.Uint32(body[32:36]))
	assert.Equal(t, c.h.Config.MaxWriteSize, binary.LittleEndian.Uint32(body[36:40]))
	assert.NotZero(t, binary.LittleEndian.Uint16(body[58:60]), "SecurityBufferLength")
}
