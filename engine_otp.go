package rapidauth

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shrimay18/rapidcare-auth/internal"
	"github.com/shrimay18/rapidcare-auth/internal/rate"
)

// IssueOTP generates a fresh one-time code for the account and purpose,
// stores its digest, and returns the raw code. Any previous code for the
// same account+purpose is discarded. When a notifier is configured the code
// is also delivered to the given email; delivery failures are logged but the
// code is still returned so the caller can retry delivery out of band.
func (e *Engine) IssueOTP(ctx context.Context, accountID, email string, purpose OTPPurpose) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	if !ValidOTPPurpose(purpose) {
		return "", fmt.Errorf("unknown otp purpose %q", purpose)
	}

	if err := e.rateLimiter.CheckOTPIssue(ctx, accountID, string(purpose)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricOTPRateLimited)
			e.auditFailure(ctx, auditEventOTPIssued, accountID, ErrOTPRateLimited)
			return "", ErrOTPRateLimited
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return "", err
	}

	if err := e.otps.Issue(ctx, accountID, email, purpose, internal.Digest(code), e.config.OTP.TTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if e.notifier != nil && email != "" {
		if err := e.notifier.SendOTP(ctx, email, purpose, code, e.config.OTP.TTL); err != nil {
			log.Printf("rapidauth: otp delivery failed for purpose %s: %v", purpose, err)
		}
	}

	e.metricInc(MetricOTPIssued)
	e.auditEmit(ctx, AuditEvent{
		EventType: auditEventOTPIssued,
		AccountID: accountID,
		Success:   true,
		Metadata:  map[string]string{"purpose": string(purpose)},
	})
	return code, nil
}

// VerifyOTP checks a submitted code against the stored one. Every call
// consumes an attempt regardless of the result: a correct code after the
// attempt budget is spent still fails with [ErrOTPAttemptsExceeded].
func (e *Engine) VerifyOTP(ctx context.Context, accountID string, purpose OTPPurpose, code string) error {
	res, err := e.VerifyOTPWithResult(ctx, accountID, purpose, code)
	if err != nil {
		return err
	}

	switch res.Outcome {
	case OTPOk:
		return nil
	case OTPExpired:
		return ErrOTPExpired
	case OTPBlocked:
		return ErrOTPAttemptsExceeded
	default:
		// Mismatch, replay of a used code, and no code on record all
		// collapse to the same caller-visible failure.
		return ErrOTPInvalid
	}
}

// VerifyOTPWithResult is VerifyOTP returning the full outcome, including the
// remaining attempt budget after a mismatch.
func (e *Engine) VerifyOTPWithResult(ctx context.Context, accountID string, purpose OTPPurpose, code string) (*OTPResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !ValidOTPPurpose(purpose) {
		return nil, fmt.Errorf("unknown otp purpose %q", purpose)
	}

	res, err := e.otps.Consume(ctx, accountID, purpose, internal.Digest(code), e.config.OTP.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch res.Outcome {
	case OTPOk:
		e.metricInc(MetricOTPVerified)
		e.auditEmit(ctx, AuditEvent{
			EventType: auditEventOTPVerified,
			AccountID: accountID,
			Success:   true,
			Metadata:  map[string]string{"purpose": string(purpose)},
		})
	case OTPBlocked:
		e.metricInc(MetricOTPBlocked)
		e.auditFailure(ctx, auditEventOTPBlocked, accountID, ErrOTPAttemptsExceeded)
	default:
		e.metricInc(MetricOTPFailure)
		e.auditFailure(ctx, auditEventOTPFailure, accountID, ErrOTPInvalid)
	}

	return res, nil
}
