package core

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestBuildUserUpdateTokenRotation(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tok := []byte{1, 2, 3}
	q, args, ok := buildUserUpdate(42, UserFields{Token: tok, TokenTimestamp: &ts})
	if !ok {
		t.Fatalf("expected an update")
	}
	const want = "UPDATE users SET token_timestamp=$1, token=$2 WHERE id=$3"
	if q != want {
		t.Fatalf("query = %q, want %q", q, want)
	}
	if len(args) != 3 || args[0] != ts || args[2] != int64(42) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestBuildUserUpdateAllFields(t *testing.T) {
	name, role, ts := "alice", 3, time.Unix(43201, 0)
	q, args, ok := buildUserUpdate(1, UserFields{
		Name: &name, Role: &role, PasswordHash: []byte{1}, PasswordSalt: []byte{2},
		TokenTimestamp: &ts, Token: []byte{3},
	})
	if !ok {
		t.Fatalf("expected an update")
	}
	const want = "UPDATE users SET name=$1, role=$2, password_hash=$3, password_salt=$4, token_timestamp=$5, token=$6 WHERE id=$7"
	if q != want {
		t.Fatalf("query = %q", q)
	}
	if len(args) != 7 {
		t.Fatalf("got %d args", len(args))
	}
}

func TestBuildUserUpdateEmpty(t *testing.T) {
	if !(UserFields{}).Empty() {
		t.Fatalf("zero UserFields not empty")
	}
	if _, _, ok := buildUserUpdate(1, UserFields{}); ok {
		t.Fatalf("empty fields produced an update")
	}
}

func TestMapUniqueViolation(t *testing.T) {
	if err := mapUniqueViolation(&pgconn.PgError{Code: "23505"}); err != ErrAlreadyExisting {
		t.Fatalf("err = %v, want ErrAlreadyExisting", err)
	}
	other := errors.New("boom")
	if err := mapUniqueViolation(other); err != other {
		t.Fatalf("err = %v, want passthrough", err)
	}
}
