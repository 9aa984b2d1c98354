package core

import (
	"context"
	"errors"
	"fmt"
)

// Transport is the slice of the HTTP exchange the authentication flow touches.
type Transport interface {
	// AuthorizationHeader returns the raw Authorization header, "" if absent.
	AuthorizationHeader() string
	// Challenge answers 401 with the given WWW-Authenticate value. It must be
	// called before any body is written.
	Challenge(wwwAuthenticate string)
}

// LogoutMarks persists pending logouts per user so a logout requested in one
// request is enforced on that user's next authentication.
type LogoutMarks interface {
	Mark(ctx context.Context, userID int64) error
	// Take reports whether a mark existed and removes it.
	Take(ctx context.Context, userID int64) (bool, error)
}

// Authenticator holds the collaborators shared by all requests. It is safe
// for concurrent use; per-request state lives in AuthManager.
type Authenticator struct {
	realm    string
	verifier *Verifier
	issuer   *TokenIssuer
	marks    LogoutMarks
}

// NewAuthenticator wires the flow. marks may be nil, in which case logouts
// only apply within the request that called Logout.
func NewAuthenticator(realm string, verifier *Verifier, issuer *TokenIssuer, marks LogoutMarks) *Authenticator {
	if verifier == nil || issuer == nil {
		panic("core: authenticator needs a verifier and a token issuer")
	}
	if realm == "" {
		realm = "default"
	}
	return &Authenticator{realm: realm, verifier: verifier, issuer: issuer, marks: marks}
}

func (a *Authenticator) Realm() string { return a.realm }

// NewManager starts the authentication state of one request.
func (a *Authenticator) NewManager(t Transport) *AuthManager {
	if t == nil {
		panic("core: auth manager needs a transport")
	}
	return &AuthManager{auth: a, transport: t}
}

// scheme strategies, selected once per call from the negotiated scheme.
type schemeStrategy interface {
	challenge(realm string, cause error) string
	verify(ctx context.Context, v *Verifier, payload string, minRole int) (*User, error)
}

type basicStrategy struct{}

func (basicStrategy) challenge(realm string, _ error) string { return BasicChallenge(realm) }

// verify ignores minRole; Basic callers authorize separately.
func (basicStrategy) verify(ctx context.Context, v *Verifier, payload string, _ int) (*User, error) {
	cred, err := DecodeBasic(payload)
	if err != nil {
		return nil, err
	}
	return v.VerifyBasic(ctx, cred.Username, cred.Password)
}

type bearerStrategy struct{}

func (bearerStrategy) challenge(realm string, cause error) string { return BearerChallenge(realm, cause) }

func (bearerStrategy) verify(ctx context.Context, v *Verifier, payload string, minRole int) (*User, error) {
	token, err := DecodeBearer(payload)
	if err != nil {
		return nil, err
	}
	u, err := v.VerifyBearer(ctx, token, minRole)
	if errors.Is(err, ErrNotExisting) {
		// token probing must not reveal which names exist
		return nil, ErrTokenInvalid
	}
	return u, err
}

func strategyFor(s Scheme) schemeStrategy {
	switch s {
	case SchemeBasic:
		return basicStrategy{}
	case SchemeBearer:
		return bearerStrategy{}
	default:
		panic(fmt.Sprintf("core: no strategy for scheme %s", s))
	}
}

// AuthManager runs the authentication of a single request.
//
// States: unauthenticated, challenged (any error return; the caller must stop
// and send the response), authenticated. A pending logout turns an otherwise
// successful authentication into ErrForcedAuthentication.
type AuthManager struct {
	auth      *Authenticator
	transport Transport

	authenticated       bool
	user                *User
	bearerToken         string
	scheme              Scheme
	forceNewCredentials bool
}

// CurrentUser is the authenticated user, nil before a successful Authenticate.
// After ErrForcedAuthentication it still names the user whose token was reset.
func (m *AuthManager) CurrentUser() *User { return m.user }

// CurrentToken is the bearer token issued by a successful Basic login.
func (m *AuthManager) CurrentToken() string { return m.bearerToken }

func (m *AuthManager) IsAuthenticated() bool { return m.authenticated }

// Scheme is the scheme used by the last Authenticate call.
func (m *AuthManager) Scheme() Scheme { return m.scheme }

// Logout makes the next Authenticate on this manager reset the user's token
// and demand fresh credentials. It has no effect by itself.
func (m *AuthManager) Logout() { m.forceNewCredentials = true }

// Authenticate reads the request's credentials and verifies them.
//
// desired selects the accepted scheme; with SchemeAny, preferred is the scheme
// challenged for when the client sent nothing usable. minRole is only
// enforced for Bearer. On an AuthError the challenge has already been written.
// Other errors come from the store and leave the response untouched.
func (m *AuthManager) Authenticate(ctx context.Context, desired Scheme, minRole int, preferred Scheme) error {
	m.authenticated = false
	m.user = nil
	m.bearerToken = ""

	neg, err := Negotiate(m.transport.AuthorizationHeader(), desired, preferred)
	m.scheme = neg.Scheme
	strategy := strategyFor(neg.Scheme)
	if err != nil {
		cause := err
		if err == ErrNoAuthInfo {
			cause = nil
		}
		m.transport.Challenge(strategy.challenge(m.auth.realm, cause))
		return err
	}

	u, err := strategy.verify(ctx, m.auth.verifier, neg.Payload, minRole)
	if err != nil {
		var authErr AuthError
		if !errors.As(err, &authErr) {
			return err
		}
		m.transport.Challenge(strategy.challenge(m.auth.realm, authErr))
		return authErr
	}

	m.authenticated = true
	m.user = u
	if neg.Scheme == SchemeBasic {
		token, err := m.auth.issuer.Issue(ctx, u)
		if err != nil {
			m.authenticated = false
			return err
		}
		m.bearerToken = token
	}

	forced := m.forceNewCredentials
	m.forceNewCredentials = false
	if m.auth.marks != nil {
		marked, err := m.auth.marks.Take(ctx, u.ID)
		if err != nil {
			m.authenticated = false
			return fmt.Errorf("take logout mark for user %d: %w", u.ID, err)
		}
		forced = forced || marked
	}
	if forced {
		m.authenticated = false
		m.bearerToken = ""
		if err := m.auth.issuer.Reset(ctx, u); err != nil {
			return err
		}
		m.transport.Challenge(strategy.challenge(m.auth.realm, nil))
		return ErrForcedAuthentication
	}
	return nil
}
