package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLogoutMarks(t *testing.T) {
	mr, client := newTestRedis(t)
	marks := NewRedisLogoutMarks(client, time.Hour)
	ctx := context.Background()

	if ok, err := marks.Take(ctx, 7); err != nil || ok {
		t.Fatalf("Take on empty = %v, %v", ok, err)
	}
	if err := marks.Mark(ctx, 7); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if !mr.Exists(LogoutMarkKey(7)) {
		t.Fatalf("mark key %s missing", LogoutMarkKey(7))
	}
	if ttl := mr.TTL(LogoutMarkKey(7)); ttl != time.Hour {
		t.Fatalf("mark ttl = %s, want 1h", ttl)
	}
	if ok, err := marks.Take(ctx, 7); err != nil || !ok {
		t.Fatalf("Take after Mark = %v, %v", ok, err)
	}
	if ok, _ := marks.Take(ctx, 7); ok {
		t.Fatalf("mark taken twice")
	}
}

func TestRedisLogoutMarksExpire(t *testing.T) {
	mr, client := newTestRedis(t)
	marks := NewRedisLogoutMarks(client, time.Minute)
	ctx := context.Background()

	if err := marks.Mark(ctx, 1); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := marks.Take(ctx, 1); ok {
		t.Fatalf("expired mark was taken")
	}
}

func TestRedisLogoutMarksDriveAuthManager(t *testing.T) {
	_, client := newTestRedis(t)
	env := newTestEnv()
	alice := env.register("alice", "p@ss", 0)
	marks := NewRedisLogoutMarks(client, testTTL)
	auth := newTestAuthenticator(env, marks)
	ctx := context.Background()

	tr := &recordingTransport{header: basicHeader("alice", "p@ss")}
	m := auth.NewManager(tr)
	if err := m.Authenticate(ctx, SchemeBasic, 0, SchemeBasic); err != nil {
		t.Fatalf("login: %v", err)
	}
	token := m.CurrentToken()

	// logout requested elsewhere, enforced on the next request
	if err := marks.Mark(ctx, alice.ID); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	tr = &recordingTransport{header: "Bearer " + token}
	if err := auth.NewManager(tr).Authenticate(ctx, SchemeBearer, 0, SchemeBearer); err != ErrForcedAuthentication {
		t.Fatalf("err = %v, want ErrForcedAuthentication", err)
	}
	tr = &recordingTransport{header: "Bearer " + token}
	if err := auth.NewManager(tr).Authenticate(ctx, SchemeBearer, 0, SchemeBearer); err != ErrTokenInvalid {
		t.Fatalf("token survived forced logout: %v", err)
	}
}

func TestAuthMetrics(t *testing.T) {
	mr, client := newTestRedis(t)
	metrics := NewAuthMetrics(client)
	ctx := context.Background()

	metrics.RecordOutcome(ctx, OutcomeSuccess)
	metrics.RecordOutcome(ctx, OutcomeSuccess)
	metrics.RecordOutcome(ctx, ErrTokenInvalid.Code())

	if v, _ := mr.Get(AuthOutcomeKey(OutcomeSuccess)); v != "2" {
		t.Fatalf("success counter = %q, want 2", v)
	}
	counts, err := metrics.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if counts[OutcomeSuccess] != 2 || counts["TOKEN_INVALID"] != 1 || counts["NO_AUTH_INFO"] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if len(counts) != len(AllAuthErrors())+1 {
		t.Fatalf("overview has %d outcomes", len(counts))
	}
}

func TestAuthMetricsRecordFailure(t *testing.T) {
	mr, client := newTestRedis(t)
	metrics := NewAuthMetrics(client)
	mr.SetError("server down")
	if err := metrics.Record(context.Background(), OutcomeSuccess); err == nil {
		t.Fatalf("expected error from failing redis")
	}
	// RecordOutcome swallows the error
	metrics.RecordOutcome(context.Background(), OutcomeSuccess)
}
