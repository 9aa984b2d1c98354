package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
)

func TestIssueTokenShape(t *testing.T) {
	env := newTestEnv()
	env.register("alice", "p@ss", 0)
	tok, u := issueFor(t, env, "alice")

	parts := strings.Split(tok, ":")
	if len(parts) != 3 {
		t.Fatalf("token %q has %d parts", tok, len(parts))
	}
	if parts[0] != "YWxpY2U=" || parts[1] != "0" {
		t.Fatalf("unexpected token prefix %q", tok)
	}
	secret, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("secret not base64: %v", err)
	}
	if len(secret) != testTokenLength {
		t.Fatalf("secret length = %d, want %d", len(secret), testTokenLength)
	}

	stored := env.store.stored(u.ID)
	if !bytes.Equal(stored.Token, secret) {
		t.Fatalf("persisted token differs from issued secret")
	}
	if !stored.TokenTimestamp.Equal(env.store.now) {
		t.Fatalf("timestamp = %s, want store clock %s", stored.TokenTimestamp, env.store.now)
	}
	if !bytes.Equal(u.Token, secret) || !u.TokenTimestamp.Equal(stored.TokenTimestamp) {
		t.Fatalf("user not updated in place")
	}
}

func TestIssueRotatesToken(t *testing.T) {
	env := newTestEnv()
	env.register("alice", "p@ss", 0)
	first, u := issueFor(t, env, "alice")
	second, err := env.issuer.Issue(context.Background(), u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first == second {
		t.Fatalf("two issuances returned the same token")
	}
	if _, err := env.verifier.VerifyBearer(context.Background(), first, 0); err != ErrTokenInvalid {
		t.Fatalf("old token err = %v, want ErrTokenInvalid", err)
	}
	if _, err := env.verifier.VerifyBearer(context.Background(), second, 0); err != nil {
		t.Fatalf("new token rejected: %v", err)
	}
}

func TestResetInvalidatesToken(t *testing.T) {
	env := newTestEnv()
	env.register("alice", "p@ss", 0)
	tok, u := issueFor(t, env, "alice")
	if err := env.issuer.Reset(context.Background(), u); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := env.verifier.VerifyBearer(context.Background(), tok, 0); err != ErrTokenInvalid {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestIssueFailsWithoutClock(t *testing.T) {
	env := newTestEnv()
	env.register("alice", "p@ss", 0)
	u, _ := env.store.FindByName(context.Background(), "alice")
	before := env.store.stored(u.ID).Token
	env.store.failNow = true
	if _, err := env.issuer.Issue(context.Background(), u); err == nil {
		t.Fatalf("expected error when store clock fails")
	}
	if !bytes.Equal(env.store.stored(u.ID).Token, before) {
		t.Fatalf("token changed although issuance failed")
	}
}

func TestNewTokenIssuerPanicsOnNilStore(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewTokenIssuer(nil, 64)
}
