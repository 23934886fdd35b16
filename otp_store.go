package rapidauth

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// One-time code lifecycle states, stored numerically.
const (
	otpStatusActive int64 = iota
	otpStatusUsed
	otpStatusExpired
	otpStatusBlocked
)

const (
	otpFieldAccount   = "account"
	otpFieldEmail     = "email"
	otpFieldPurpose   = "purpose"
	otpFieldCodeHash  = "code_hash"
	otpFieldStatus    = "status"
	otpFieldAttempts  = "attempts"
	otpFieldExpiresAt = "expires_at"
	otpFieldIssuedAt  = "issued_at"
)

type otpRecord struct {
	accountID string
	email     string
	purpose   OTPPurpose
	codeHash  []byte
	status    int64
	attempts  int
	expiresAt int64
	issuedAt  int64
}

// otpStore persists one-time codes in Redis, one key per account and
// purpose. Issuing overwrites the previous record, which is what enforces
// the single-active-code rule. Terminal records outlive their validity
// window by the retention period so a replayed code reports "used" rather
// than "not found".
type otpStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	timeout   time.Duration
}

func newOTPStore(redisClient redis.UniversalClient, prefix string, retention, timeout time.Duration) *otpStore {
	return &otpStore{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
		timeout:   timeout,
	}
}

func (s *otpStore) key(accountID string, purpose OTPPurpose) string {
	return s.prefix + "o:" + accountID + ":" + string(purpose)
}

func (s *otpStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Issue writes a fresh code record, replacing whatever was stored for the
// account and purpose before.
func (s *otpStore) Issue(ctx context.Context, accountID, email string, purpose OTPPurpose, codeHash [32]byte, ttl time.Duration) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	now := time.Now().Unix()
	key := s.key(accountID, purpose)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			otpFieldAccount, accountID,
			otpFieldEmail, email,
			otpFieldPurpose, string(purpose),
			otpFieldCodeHash, hex.EncodeToString(codeHash[:]),
			otpFieldStatus, otpStatusActive,
			otpFieldAttempts, 0,
			otpFieldExpiresAt, now+int64(ttl/time.Second),
			otpFieldIssuedAt, now,
		)
		pipe.Expire(ctx, key, ttl+s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Consume runs one verification attempt. The record is mutated under
// WATCH/MULTI so two racing attempts cannot both consume the code or skip
// the attempt counter; a conflicting write retries the whole read-check-write
// cycle.
func (s *otpStore) Consume(ctx context.Context, accountID string, purpose OTPPurpose, providedHash [32]byte, maxAttempts int) (*OTPResult, error) {
	const maxRetries = 4

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := s.key(accountID, purpose)

	for i := 0; i < maxRetries; i++ {
		var result *OTPResult

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			m, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(m) == 0 {
				result = &OTPResult{Outcome: OTPNotFound}
				return nil
			}

			rec := otpRecordFromMap(m)
			now := time.Now().Unix()

			switch rec.status {
			case otpStatusUsed:
				result = &OTPResult{Outcome: OTPUsed}
				return nil
			case otpStatusExpired:
				result = &OTPResult{Outcome: OTPExpired}
				return nil
			case otpStatusBlocked:
				result = &OTPResult{Outcome: OTPBlocked}
				return nil
			}

			if now > rec.expiresAt {
				if err := setOTPFields(ctx, tx, key, otpFieldStatus, otpStatusExpired); err != nil {
					return err
				}
				result = &OTPResult{Outcome: OTPExpired}
				return nil
			}

			if rec.attempts >= maxAttempts {
				if err := setOTPFields(ctx, tx, key, otpFieldStatus, otpStatusBlocked); err != nil {
					return err
				}
				result = &OTPResult{Outcome: OTPBlocked}
				return nil
			}

			// The attempt is counted before the comparison; a mismatch and
			// a match both burn one attempt.
			attempts := rec.attempts + 1

			if subtle.ConstantTimeCompare(rec.codeHash, providedHash[:]) == 1 {
				if err := setOTPFields(ctx, tx, key,
					otpFieldStatus, otpStatusUsed,
					otpFieldAttempts, attempts,
				); err != nil {
					return err
				}
				result = &OTPResult{Outcome: OTPOk}
				return nil
			}

			if err := setOTPFields(ctx, tx, key, otpFieldAttempts, attempts); err != nil {
				return err
			}
			result = &OTPResult{
				Outcome:           OTPMismatch,
				RemainingAttempts: maxAttempts - attempts,
			}
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: otp consume contention", ErrStoreUnavailable)
}

func setOTPFields(ctx context.Context, tx *redis.Tx, key string, pairs ...interface{}) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, pairs...)
		return nil
	})
	return err
}

func otpRecordFromMap(m map[string]string) *otpRecord {
	hash, _ := hex.DecodeString(m[otpFieldCodeHash])
	return &otpRecord{
		accountID: m[otpFieldAccount],
		email:     m[otpFieldEmail],
		purpose:   OTPPurpose(m[otpFieldPurpose]),
		codeHash:  hash,
		status:    parseOTPInt(m[otpFieldStatus]),
		attempts:  int(parseOTPInt(m[otpFieldAttempts])),
		expiresAt: parseOTPInt(m[otpFieldExpiresAt]),
		issuedAt:  parseOTPInt(m[otpFieldIssuedAt]),
	}
}

func parseOTPInt(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
