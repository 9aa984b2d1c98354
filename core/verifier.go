package core

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Verifier checks decoded credentials against the user store.
type Verifier struct {
	store  UserStore
	hasher *PasswordHasher
	ttl    time.Duration
}

func NewVerifier(store UserStore, hasher *PasswordHasher, ttl time.Duration) *Verifier {
	if store == nil {
		panic("core: verifier needs a user store")
	}
	if hasher == nil {
		panic("core: verifier needs a password hasher")
	}
	return &Verifier{store: store, hasher: hasher, ttl: ttl}
}

// TTL is the maximum token age. A token is accepted while 0 <= age <= TTL.
func (v *Verifier) TTL() time.Duration { return v.ttl }

func (v *Verifier) lookup(ctx context.Context, name string) (*User, error) {
	u, err := v.store.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrNotExisting
		}
		return nil, err
	}
	return u, nil
}

// VerifyBasic authenticates by name and password.
func (v *Verifier) VerifyBasic(ctx context.Context, username, password string) (*User, error) {
	u, err := v.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if !v.hasher.Verify(password, u.PasswordSalt, u.PasswordHash) {
		return nil, ErrPasswordInvalid
	}
	return u, nil
}

// VerifyBearer authenticates a token of the form base64(name) ":" role ":" base64(secret).
//
// The embedded role has to equal the stored one, so changing a user's role
// revokes every token issued before the change.
func (v *Verifier) VerifyBearer(ctx context.Context, token string, minRole int) (*User, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return nil, ErrTokenInvalid
	}
	name, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrTokenInvalid
	}
	u, err := v.lookup(ctx, string(name))
	if err != nil {
		return nil, err
	}
	role, err := strconv.Atoi(parts[1])
	if err != nil || role != u.Role {
		return nil, ErrTokenInvalid
	}
	secret, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(u.Token) == 0 || subtle.ConstantTimeCompare(secret, u.Token) != 1 {
		return nil, ErrTokenInvalid
	}
	if u.TokenTimestamp.IsZero() {
		return nil, ErrTokenInvalid
	}
	now, err := v.store.Now(ctx)
	if err != nil {
		return nil, err
	}
	if age := now.Sub(u.TokenTimestamp); age < 0 || age > v.ttl {
		return nil, ErrTokenInvalid
	}
	if u.Role < minRole {
		return nil, ErrInsufficientRole
	}
	return u, nil
}
