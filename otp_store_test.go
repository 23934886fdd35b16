package rapidauth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shrimay18/rapidcare-auth/internal"
)

func newOTPStoreTest(t *testing.T) *otpStore {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return newOTPStore(rdb, "ra", time.Hour, 0)
}

func TestOTPIssueAndConsume(t *testing.T) {
	store := newOTPStoreTest(t)
	ctx := context.Background()

	if err := store.Issue(ctx, "acc-1", "a@example.com", PurposeEmailVerification, internal.Digest("123456"), 10*time.Minute); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	res, err := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("123456"), 3)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if res.Outcome != OTPOk {
		t.Fatalf("expected ok, got %v", res.Outcome)
	}
}

func TestOTPReplayOfUsedCode(t *testing.T) {
	store := newOTPStoreTest(t)
	ctx := context.Background()

	if err := store.Issue(ctx, "acc-1", "a@example.com", PurposeEmailVerification, internal.Digest("123456"), 10*time.Minute); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if res, _ := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("123456"), 3); res.Outcome != OTPOk {
		t.Fatalf("expected ok, got %v", res.Outcome)
	}

	res, err := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("123456"), 3)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if res.Outcome != OTPUsed {
		t.Fatalf("replay of used code should report used, got %v", res.Outcome)
	}
}

func TestOTPMismatchCountsAttempts(t *testing.T) {
	store := newOTPStoreTest(t)
	ctx := context.Background()

	if err := store.Issue(ctx, "acc-1", "a@example.com", PurposePasswordReset, internal.Digest("123456"), 10*time.Minute); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for i, want := range []int{2, 1, 0} {
		res, err := store.Consume(ctx, "acc-1", PurposePasswordReset, internal.Digest("000000"), 3)
		if err != nil {
			t.Fatalf("Consume %d failed: %v", i, err)
		}
		if res.Outcome != OTPMismatch {
			t.Fatalf("attempt %d: expected mismatch, got %v", i, res.Outcome)
		}
		if res.RemainingAttempts != want {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i, want, res.RemainingAttempts)
		}
	}
}

func TestOTPFourthAttemptBlockedEvenWithCorrectCode(t *testing.T) {
	store := newOTPStoreTest(t)
	ctx := context.Background()

	if err := store.Issue(ctx, "acc-1", "a@example.com", PurposeEmailVerification, internal.Digest("123456"), 10*time.Minute); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if res, _ := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("000000"), 3); res.Outcome != OTPMismatch {
			t.Fatalf("attempt %d: expected mismatch, got %v", i, res.Outcome)
		}
	}

	res, err := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("123456"), 3)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if res.Outcome != OTPBlocked {
		t.Fatalf("correct code after exhausted attempts should be blocked, got %v", res.Outcome)
	}

	// The blocked state is terminal.
	if res, _ := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("123456"), 3); res.Outcome != OTPBlocked {
		t.Fatalf("blocked record should stay blocked, got %v", res.Outcome)
	}
}

func TestOTPExpiry(t *testing.T) {
	store := newOTPStoreTest(t)
	ctx := context.Background()

	if err := store.Issue(ctx, "acc-1", "a@example.com", PurposeEmailVerification, internal.Digest("123456"), -time.Second); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	res, err := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("123456"), 3)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if res.Outcome != OTPExpired {
		t.Fatalf("expected expired, got %v", res.Outcome)
	}

	// Expiry is persisted, not recomputed.
	if res, _ := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("123456"), 3); res.Outcome != OTPExpired {
		t.Fatalf("expired record should stay expired, got %v", res.Outcome)
	}
}

func TestOTPReissueReplacesRecord(t *testing.T) {
	store := newOTPStoreTest(t)
	ctx := context.Background()

	if err := store.Issue(ctx, "acc-1", "a@example.com", PurposeEmailVerification, internal.Digest("111111"), 10*time.Minute); err != nil {
		t.Fatalf("first Issue failed: %v", err)
	}
	if res, _ := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("999999"), 3); res.Outcome != OTPMismatch {
		t.Fatalf("expected mismatch, got %v", res.Outcome)
	}

	if err := store.Issue(ctx, "acc-1", "a@example.com", PurposeEmailVerification, internal.Digest("222222"), 10*time.Minute); err != nil {
		t.Fatalf("second Issue failed: %v", err)
	}

	// Old code is gone and the attempt counter started over.
	if res, _ := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("111111"), 3); res.Outcome != OTPMismatch || res.RemainingAttempts != 2 {
		t.Fatalf("expected fresh mismatch with 2 remaining, got %v remaining %d", res.Outcome, res.RemainingAttempts)
	}
	if res, _ := store.Consume(ctx, "acc-1", PurposeEmailVerification, internal.Digest("222222"), 3); res.Outcome != OTPOk {
		t.Fatalf("expected ok for replacement code, got %v", res.Outcome)
	}
}

func TestOTPNotFound(t *testing.T) {
	store := newOTPStoreTest(t)

	res, err := store.Consume(context.Background(), "nobody", PurposeEmailVerification, internal.Digest("123456"), 3)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if res.Outcome != OTPNotFound {
		t.Fatalf("expected not found, got %v", res.Outcome)
	}
}

func TestOTPPurposesAreIsolated(t *testing.T) {
	store := newOTPStoreTest(t)
	ctx := context.Background()

	if err := store.Issue(ctx, "acc-1", "a@example.com", PurposeEmailVerification, internal.Digest("123456"), 10*time.Minute); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// The same code under a different purpose does not resolve.
	res, err := store.Consume(ctx, "acc-1", PurposePasswordReset, internal.Digest("123456"), 3)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if res.Outcome != OTPNotFound {
		t.Fatalf("expected not found under other purpose, got %v", res.Outcome)
	}
}
