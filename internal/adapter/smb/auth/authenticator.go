// Package auth runs the SESSION_SETUP security exchange.
//
// Clients send NTLM messages either bare or wrapped in SPNEGO. The server
// answers in the same framing it was addressed in. Credentials are not
// verified: a session is established for an allowed user name, or as a
// guest when guests are allowed.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/registry"
	"github.com/marmos91/dittosmb/internal/logger"
)

var (
	// ErrLogonFailure rejects the exchange.
	ErrLogonFailure = errors.New("auth: logon failure")

	// ErrUnexpectedMessage is returned for an AUTHENTICATE with no prior
	// challenge on the session, or an unknown NTLM message type.
	ErrUnexpectedMessage = errors.New("auth: unexpected message")
)

// Result is the outcome of one SESSION_SETUP leg.
type Result struct {
	// Complete is false while the client must send another leg
	// (STATUS_MORE_PROCESSING_REQUIRED).
	Complete bool

	// Token is the security buffer for the response.
	Token []byte

	// Identity is set once Complete is true.
	Identity registry.Identity
}

// Options configures a GuestAuthenticator.
type Options struct {
	AllowGuest   bool
	Users        []string
	TargetName   string
	ComputerName string
}

// GuestAuthenticator implements the two-leg NTLM exchange without
// checking the NTLM proof.
//
// Thread safety: safe for concurrent use. In-progress exchanges are keyed
// by the session ID the server assigned on the first leg.
type GuestAuthenticator struct {
	allowGuest   bool
	users        map[string]struct{}
	targetName   string
	computerName string

	pending sync.Map // uint64 -> *exchange

	now func() time.Time
}

type exchange struct {
	challenge [8]byte
	spnego    bool
}

// NewGuestAuthenticator returns an authenticator for opts. User names
// are matched case-insensitively.
func NewGuestAuthenticator(opts Options) *GuestAuthenticator {
	users := make(map[string]struct{}, len(opts.Users))
	for _, u := range opts.Users {
		users[strings.ToLower(u)] = struct{}{}
	}
	target := opts.TargetName
	if target == "" {
		target = "WORKGROUP"
	}
	return &GuestAuthenticator{
		allowGuest:   opts.AllowGuest,
		users:        users,
		targetName:   target,
		computerName: opts.ComputerName,
		now:          time.Now,
	}
}

// Step consumes the security buffer of one SESSION_SETUP request for
// sessionID.
func (a *GuestAuthenticator) Step(sessionID uint64, token []byte) (*Result, error) {
	if len(token) == 0 {
		a.pending.Delete(sessionID)
		if !a.allowGuest {
			return nil, ErrLogonFailure
		}
		return &Result{Complete: true, Identity: registry.Identity{Guest: true}}, nil
	}

	mech := token
	wrapped := false
	if !IsNTLM(token) {
		neg, err := ParseNegToken(token)
		if err != nil {
			return nil, err
		}
		wrapped = true
		if neg.Init && len(neg.MechToken) == 0 {
			if !neg.Offers(OIDNTLMSSP) {
				return nil, fmt.Errorf("%w: NTLMSSP not offered", ErrLogonFailure)
			}
			out, err := BuildResponse(NegStateAcceptIncomplete, OIDNTLMSSP, nil)
			if err != nil {
				return nil, err
			}
			return &Result{Token: out}, nil
		}
		mech = neg.MechToken
	}

	switch MessageTypeOf(mech) {
	case NTLMNegotiate:
		return a.challenge(sessionID, wrapped)
	case NTLMAuthenticate:
		return a.authenticate(sessionID, mech)
	default:
		return nil, fmt.Errorf("%w: mechanism token is not NTLM", ErrUnexpectedMessage)
	}
}

func (a *GuestAuthenticator) challenge(sessionID uint64, wrapped bool) (*Result, error) {
	ex := &exchange{spnego: wrapped}
	if _, err := rand.Read(ex.challenge[:]); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}

	out := BuildChallenge(ChallengeParams{
		Challenge:    ex.challenge,
		TargetName:   a.targetName,
		ComputerName: a.computerName,
		Timestamp:    a.now(),
	})
	if wrapped {
		var err error
		if out, err = BuildResponse(NegStateAcceptIncomplete, OIDNTLMSSP, out); err != nil {
			return nil, err
		}
	}

	a.pending.Store(sessionID, ex)
	return &Result{Token: out}, nil
}

func (a *GuestAuthenticator) authenticate(sessionID uint64, mech []byte) (*Result, error) {
	v, ok := a.pending.LoadAndDelete(sessionID)
	if !ok {
		return nil, ErrUnexpectedMessage
	}
	ex := v.(*exchange)

	msg, err := ParseAuthenticate(mech)
	if err != nil {
		return nil, err
	}

	ident, err := a.identify(msg)
	if err != nil {
		return nil, err
	}
	logger.Debug("NTLM authenticate accepted",
		logger.KeyUsername, msg.Username, logger.KeyDomain, msg.Domain,
		"workstation", msg.Workstation, logger.KeyGuest, ident.Guest)

	res := &Result{Complete: true, Identity: ident}
	if ex.spnego {
		if res.Token, err = BuildResponse(NegStateAcceptCompleted, nil, nil); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (a *GuestAuthenticator) identify(msg *AuthenticateMessage) (registry.Identity, error) {
	switch {
	case msg.Anonymous():
		if a.allowGuest {
			return registry.Identity{Anonymous: true}, nil
		}
	case a.allowed(msg.Username):
		return registry.Identity{Username: msg.Username, Domain: msg.Domain}, nil
	case a.allowGuest:
		return registry.Identity{Username: msg.Username, Domain: msg.Domain, Guest: true}, nil
	}
	return registry.Identity{}, ErrLogonFailure
}

func (a *GuestAuthenticator) allowed(user string) bool {
	_, ok := a.users[strings.ToLower(user)]
	return ok && user != ""
}

// Abandon drops any in-progress exchange for sessionID.
func (a *GuestAuthenticator) Abandon(sessionID uint64) {
	a.pending.Delete(sessionID)
}

// Pending returns the number of exchanges waiting for their second leg.
func (a *GuestAuthenticator) Pending() int {
	n := 0
	a.pending.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
