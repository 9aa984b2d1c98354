package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
)

// TokenIssuer rotates a user's binary token. Every issuance overwrites the
// previous secret, so a user has at most one live bearer token.
type TokenIssuer struct {
	store  UserStore
	length int
}

func NewTokenIssuer(store UserStore, length int) *TokenIssuer {
	if store == nil {
		panic("core: token issuer needs a user store")
	}
	if length <= 0 {
		panic("core: token length must be positive")
	}
	return &TokenIssuer{store: store, length: length}
}

// TokenLength is the size in bytes of the binary token.
func (i *TokenIssuer) TokenLength() int { return i.length }

// Issue stores a fresh secret stamped with the store's clock and returns the
// bearer token string for u. u is updated in place.
func (i *TokenIssuer) Issue(ctx context.Context, u *User) (string, error) {
	secret, err := randomBytes(i.length)
	if err != nil {
		return "", err
	}
	now, err := i.store.Now(ctx)
	if err != nil {
		return "", fmt.Errorf("read store clock: %w", err)
	}
	if err := i.store.Persist(ctx, u.ID, UserFields{Token: secret, TokenTimestamp: &now}); err != nil {
		return "", fmt.Errorf("persist token for user %d: %w", u.ID, err)
	}
	u.Token = secret
	u.TokenTimestamp = now
	return BearerToken(u.Name, u.Role, secret), nil
}

// Reset invalidates the current token of u. It has the same effect as Issue;
// the new token is not handed out.
func (i *TokenIssuer) Reset(ctx context.Context, u *User) error {
	_, err := i.Issue(ctx, u)
	return err
}

// BearerToken composes the wire form base64(name) ":" role ":" base64(secret).
func BearerToken(name string, role int, secret []byte) string {
	return base64.StdEncoding.EncodeToString([]byte(name)) + ":" + strconv.Itoa(role) + ":" +
		base64.StdEncoding.EncodeToString(secret)
}
