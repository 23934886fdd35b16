package rapidauth

import (
	"context"
	"errors"
	"fmt"
)

// VerifyEmail consumes an email verification code and activates the account.
// Verifying an already-active account consumes the code but is otherwise a
// no-op; suspended and deactivated accounts cannot be re-activated this way.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	account, err := e.accountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Same failure as a wrong code so the endpoint cannot be used
			// to enumerate accounts.
			return ErrOTPInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.VerifyOTP(ctx, account.AccountID, PurposeEmailVerification, code); err != nil {
		return err
	}

	switch account.Status {
	case AccountPendingVerification:
	case AccountActive:
		return nil
	default:
		return ErrAccountDisabled
	}

	if err := e.provider.UpdateAccountStatus(ctx, account.AccountID, AccountActive); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricEmailVerified)
	e.auditSuccess(ctx, auditEventEmailVerified, account.AccountID)
	return nil
}

// ResendVerificationOTP issues a fresh email verification code for a
// pending account, replacing any outstanding one. Unknown emails and
// already-active accounts return nil without sending anything.
func (e *Engine) ResendVerificationOTP(ctx context.Context, email string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	account, err := e.accountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account.Status != AccountPendingVerification {
		return nil
	}

	_, err = e.IssueOTP(ctx, account.AccountID, email, PurposeEmailVerification)
	if errors.Is(err, ErrOTPRateLimited) {
		return ErrOTPRateLimited
	}
	return err
}
