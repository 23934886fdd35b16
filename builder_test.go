package rapidauth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildRequiresRedisAndProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	if _, err := New().WithAccountProvider(newMemoryProvider()).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}
	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without account provider")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	// No signing keys.
	_, err := New().
		WithRedis(rdb).
		WithAccountProvider(newMemoryProvider()).
		Build()
	if err == nil {
		t.Fatal("expected error for config without signing keys")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := New().
		WithConfig(testConfig(t)).
		WithRedis(rdb).
		WithAccountProvider(newMemoryProvider())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error from second Build")
	}
}

func TestWithConfigCopiesKeyMaterial(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(newMemoryProvider())

	// Caller mutating its copy after handing it over must not corrupt the
	// engine's signing key.
	cfg.JWT.PrivateKey[0] ^= 0xff

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	token, err := engine.jwtManager.CreateAccess("acc-1", RolePatient, AccountActive.String())
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	if _, err := engine.jwtManager.ParseAccess(token); err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
}

func TestWithAuditSinkDeliversEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sink := NewChannelSink(16)
	provider := newMemoryProvider()

	engine, err := New().
		WithConfig(testConfig(t)).
		WithRedis(rdb).
		WithAccountProvider(provider).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	seedAccount(t, engine, provider, "alice@example.com", "correct horse")
	if _, err := engine.Login(context.Background(), "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	select {
	case event := <-sink.Events():
		if event.EventType != "login_success" || !event.Success {
			t.Fatalf("unexpected event: %+v", event)
		}
		if event.AccountID == "" || event.SessionID == "" {
			t.Fatalf("event missing identifiers: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
	}
}
