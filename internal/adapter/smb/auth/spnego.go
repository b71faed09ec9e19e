package auth

import (
	"errors"
	"fmt"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

// Mechanism OIDs that appear in SPNEGO mechanism lists.
var (
	OIDNTLMSSP      = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 2, 10}
	OIDKerberosV5   = asn1.ObjectIdentifier{1, 2, 840, 113554, 1, 2, 2}
	OIDMSKerberosV5 = asn1.ObjectIdentifier{1, 2, 840, 48018, 1, 2, 2}
	OIDSPNEGO       = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 2}
)

// NegState is the negResult of a NegTokenResp. [RFC 4178] 4.2.2
type NegState int

const (
	NegStateAcceptCompleted  NegState = 0
	NegStateAcceptIncomplete NegState = 1
	NegStateReject           NegState = 2
	NegStateRequestMIC       NegState = 3
)

var (
	ErrInvalidToken = errors.New("spnego: invalid token")
	ErrNoMechToken  = errors.New("spnego: no mechanism token")
)

// NegToken is a decoded SPNEGO token of either kind.
type NegToken struct {
	Init bool

	// MechTypes is only set on init tokens.
	MechTypes []asn1.ObjectIdentifier

	// MechToken is the inner token, usually an NTLM message.
	MechToken []byte

	// NegState and SupportedMech are only set on response tokens.
	NegState      NegState
	SupportedMech asn1.ObjectIdentifier
}

// ParseNegToken decodes a GSS-API wrapped NegTokenInit (0x60), a bare
// NegTokenInit (0xa0) or a NegTokenResp (0xa1).
func ParseNegToken(data []byte) (*NegToken, error) {
	if len(data) < 2 {
		return nil, ErrInvalidToken
	}

	var (
		negInit spnego.NegTokenInit
		negResp spnego.NegTokenResp
		isInit  bool
	)
	if data[0] == 0xa0 {
		ok, nt, err := spnego.UnmarshalNegToken(data)
		if err != nil || !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		negInit, isInit = nt.(spnego.NegTokenInit)
		if !isInit {
			return nil, ErrInvalidToken
		}
	} else {
		var tok spnego.SPNEGOToken
		if err := tok.Unmarshal(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		switch {
		case tok.Init:
			negInit, isInit = tok.NegTokenInit, true
		case tok.Resp:
			negResp = tok.NegTokenResp
		default:
			return nil, ErrInvalidToken
		}
	}

	if isInit {
		return &NegToken{Init: true, MechTypes: negInit.MechTypes, MechToken: negInit.MechTokenBytes}, nil
	}
	return &NegToken{
		MechToken:     negResp.ResponseToken,
		NegState:      NegState(negResp.NegState),
		SupportedMech: negResp.SupportedMech,
	}, nil
}

// Offers reports whether an init token lists oid.
func (t *NegToken) Offers(oid asn1.ObjectIdentifier) bool {
	for _, m := range t.MechTypes {
		if m.Equal(oid) {
			return true
		}
	}
	return false
}

// NegotiateHint builds the GSS-API wrapped NegTokenInit the server puts
// in the NEGOTIATE response. It advertises NTLMSSP only.
func NegotiateHint() ([]byte, error) {
	tok := spnego.SPNEGOToken{
		Init: true,
		NegTokenInit: spnego.NegTokenInit{
			MechTypes: []asn1.ObjectIdentifier{OIDNTLMSSP},
		},
	}
	return tok.Marshal()
}

// WrapInit wraps a client mechanism token in a GSS-API NegTokenInit.
func WrapInit(mech asn1.ObjectIdentifier, token []byte) ([]byte, error) {
	tok := spnego.SPNEGOToken{
		Init: true,
		NegTokenInit: spnego.NegTokenInit{
			MechTypes:      []asn1.ObjectIdentifier{mech},
			MechTokenBytes: token,
		},
	}
	return tok.Marshal()
}

// BuildResponse encodes a NegTokenResp.
func BuildResponse(state NegState, mech asn1.ObjectIdentifier, token []byte) ([]byte, error) {
	resp := spnego.NegTokenResp{
		NegState:      asn1.Enumerated(state),
		SupportedMech: mech,
		ResponseToken: token,
	}
	return resp.Marshal()
}
