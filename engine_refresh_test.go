package rapidauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRefreshChain(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Rotate three times; each hop gets a working access token and a new
	// refresh token.
	current := pair
	for i := 0; i < 3; i++ {
		next, err := engine.Refresh(ctx, current.RefreshToken, DeviceInfo{})
		if err != nil {
			t.Fatalf("Refresh %d failed: %v", i, err)
		}
		if next.RefreshToken == current.RefreshToken {
			t.Fatalf("Refresh %d returned the same token", i)
		}
		if next.SessionID == current.SessionID {
			t.Fatalf("Refresh %d returned the same session ID", i)
		}
		if _, err := engine.Validate(ctx, next.AccessToken); err != nil {
			t.Fatalf("Validate after refresh %d failed: %v", i, err)
		}
		current = next
	}

	// The whole chain stays one logical session.
	sessions, err := engine.ListSessions(ctx, account.AccountID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 live session after rotations, got %d", len(sessions))
	}
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	next, err := engine.Refresh(ctx, pair.RefreshToken, DeviceInfo{})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// Replaying the retired token is theft evidence.
	if _, err := engine.Refresh(ctx, pair.RefreshToken, DeviceInfo{}); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}

	// The whole family is dead, including the freshly minted successor.
	if _, err := engine.Refresh(ctx, next.RefreshToken, DeviceInfo{}); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("successor after reuse should be invalid, got %v", err)
	}
	sessions, err := engine.ListSessions(ctx, account.AccountID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no live sessions after family revocation, got %d", len(sessions))
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if _, err := engine.Refresh(context.Background(), "bogus", DeviceInfo{}); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
	if _, err := engine.Refresh(context.Background(), "", DeviceInfo{}); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("empty token: expected ErrRefreshInvalid, got %v", err)
	}
}

func TestRefreshAfterPasswordChangeFails(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Simulate a password change from another device after this family was
	// opened. FamilyCreatedAt is second-granular, so the change has to land
	// visibly later.
	provider.patch(t, account.AccountID, func(a *AccountRecord) {
		a.PasswordChangedAt = time.Now().Add(2 * time.Second)
	})

	if _, err := engine.Refresh(ctx, pair.RefreshToken, DeviceInfo{}); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after password change, got %v", err)
	}
}

func TestRefreshSuspendedAccountFails(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	provider.patch(t, account.AccountID, func(a *AccountRecord) {
		a.Status = AccountSuspended
	})

	if _, err := engine.Refresh(ctx, pair.RefreshToken, DeviceInfo{}); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for suspended account, got %v", err)
	}

	sessions, err := engine.ListSessions(ctx, account.AccountID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("suspended refresh should leave no live session, got %d", len(sessions))
	}
}

func TestRefreshInheritsDevice(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.LoginWithDevice(ctx, "alice@example.com", "correct horse", DeviceInfo{
		DeviceID:   "phone",
		DeviceName: "Pixel",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, pair.RefreshToken, DeviceInfo{}); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	sessions, err := engine.ListSessions(ctx, account.AccountID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Device.DeviceID != "phone" || sessions[0].Device.DeviceName != "Pixel" {
		t.Fatalf("expected device record to survive rotation, got %+v", sessions)
	}
}

func TestRefreshRateLimited(t *testing.T) {
	engine, provider, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Rate.MaxRefreshAttempts = 1
	})
	ctx := context.Background()
	seedAccount(t, engine, provider, "alice@example.com", "correct horse")

	pair, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// The same dead token hammered repeatedly trips the per-token window.
	if _, err := engine.Refresh(ctx, pair.RefreshToken, DeviceInfo{}); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken, DeviceInfo{}); !errors.Is(err, ErrRefreshRateLimited) {
		t.Fatalf("expected ErrRefreshRateLimited, got %v", err)
	}
}
