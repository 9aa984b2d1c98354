package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Scheme identifies the HTTP authentication scheme a request uses or an endpoint requires.
type Scheme int

const (
	// SchemeAny accepts either Basic or Bearer credentials.
	SchemeAny Scheme = iota
	// SchemeBasic is RFC 7617 Basic authentication.
	SchemeBasic
	// SchemeBearer is RFC 6750 Bearer authentication with tokens issued by TokenIssuer.
	SchemeBearer
)

func (s Scheme) String() string {
	switch s {
	case SchemeAny:
		return "Any"
	case SchemeBasic:
		return "Basic"
	case SchemeBearer:
		return "Bearer"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// mustBeKnown panics for values outside the Scheme enum; passing one is a caller bug.
func (s Scheme) mustBeKnown() {
	if s < SchemeAny || s > SchemeBearer {
		panic(fmt.Sprintf("core: unsupported authentication scheme %d", int(s)))
	}
}

// AuthError is the closed set of authentication outcomes other than success.
type AuthError int

const (
	ErrNoAuthInfo AuthError = iota + 1
	ErrInvalidRequest
	ErrWrongScheme
	ErrNotExisting
	ErrPasswordInvalid
	ErrTokenInvalid
	ErrInsufficientRole
	// ErrForcedAuthentication is not a failure of the presented credentials:
	// a pending logout rotated the token and the client has to log in again.
	ErrForcedAuthentication
)

var authErrorCodes = map[AuthError]string{
	ErrNoAuthInfo:           "NO_AUTH_INFO",
	ErrInvalidRequest:       "INVALID_REQUEST",
	ErrWrongScheme:          "WRONG_SCHEME",
	ErrNotExisting:          "NOT_EXISTING",
	ErrPasswordInvalid:      "PASSWORD_INVALID",
	ErrTokenInvalid:         "TOKEN_INVALID",
	ErrInsufficientRole:     "INSUFFICIENT_ROLE",
	ErrForcedAuthentication: "FORCED_AUTHENTICATION",
}

var authErrorMessages = map[AuthError]string{
	ErrNoAuthInfo:           "no authentication information provided",
	ErrInvalidRequest:       "malformed authorization header",
	ErrWrongScheme:          "wrong authentication scheme",
	ErrNotExisting:          "no such user",
	ErrPasswordInvalid:      "invalid password",
	ErrTokenInvalid:         "invalid or expired token",
	ErrInsufficientRole:     "insufficient role",
	ErrForcedAuthentication: "new credentials required",
}

// Code returns the wire identifier of the outcome, e.g. "TOKEN_INVALID".
func (e AuthError) Code() string {
	if c, ok := authErrorCodes[e]; ok {
		return c
	}
	return fmt.Sprintf("AUTH_ERROR_%d", int(e))
}

func (e AuthError) Error() string {
	if m, ok := authErrorMessages[e]; ok {
		return "auth: " + m
	}
	return "auth: " + e.Code()
}

// AllAuthErrors lists every outcome in declaration order.
func AllAuthErrors() []AuthError {
	out := make([]AuthError, 0, len(authErrorCodes))
	for e := ErrNoAuthInfo; e <= ErrForcedAuthentication; e++ {
		out = append(out, e)
	}
	return out
}

// User is the persisted principal as seen by the authentication core.
type User struct {
	ID           int64
	Name         string
	Role         int
	PasswordHash []byte
	PasswordSalt []byte
	// TokenTimestamp is zero when no token was ever issued.
	TokenTimestamp time.Time
	Token          []byte
	CreatedAt      time.Time
}

// UserFields is a partial update; nil fields are left untouched.
type UserFields struct {
	Name           *string
	Role           *int
	PasswordHash   []byte
	PasswordSalt   []byte
	TokenTimestamp *time.Time
	Token          []byte
}

// Empty reports whether the update would not change any column.
func (f UserFields) Empty() bool {
	return f.Name == nil && f.Role == nil && f.PasswordHash == nil && f.PasswordSalt == nil &&
		f.TokenTimestamp == nil && f.Token == nil
}

var (
	// ErrUserNotFound is returned by a UserStore when no row matches.
	ErrUserNotFound = errors.New("user not found")
)

// UserStore is the persistence contract the authentication core depends on.
//
// Persist must apply all fields of one call as a single row write. Concurrent
// token issuance for the same user is last-write-wins; serializing it further
// is the store's job.
type UserStore interface {
	FindByName(ctx context.Context, name string) (*User, error)
	Persist(ctx context.Context, id int64, fields UserFields) error
	// Now returns the store's clock, the only time source used for token age.
	Now(ctx context.Context) (time.Time, error)
}
