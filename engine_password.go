package rapidauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ChangePassword replaces the account's password after verifying the current
// one. A successful change stamps PasswordChangedAt and revokes every
// refresh session for the account; already-issued access tokens die at the
// next [Engine.Validate] because their issue time predates the stamp.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	account, err := e.accountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(oldPassword, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.auditFailure(ctx, auditEventPasswordChangeFailure, accountID, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	if err := e.setPassword(ctx, &account, newPassword, oldPassword, "password change"); err != nil {
		e.auditFailure(ctx, auditEventPasswordChangeFailure, accountID, err)
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.auditSuccess(ctx, auditEventPasswordChanged, accountID)
	return nil
}

// RequestPasswordReset issues a password reset code for the account behind
// the given email. The result is identical whether or not the email is
// registered, so the endpoint cannot confirm account existence.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	account, err := e.accountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricPasswordResetRequest)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	_, err = e.IssueOTP(ctx, account.AccountID, email, PurposePasswordReset)
	if err != nil {
		if errors.Is(err, ErrOTPRateLimited) {
			return ErrOTPRateLimited
		}
		// Swallowed: a failed issue must look like an unknown email.
		log.Printf("rapidauth: password reset issue failed: %v", err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.auditSuccess(ctx, auditEventPasswordResetRequested, account.AccountID)
	return nil
}

// ConfirmPasswordReset consumes a reset code and installs the new password.
// Success clears any lockout, stamps PasswordChangedAt, and revokes every
// refresh session for the account.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	account, err := e.accountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			return ErrOTPInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.VerifyOTP(ctx, account.AccountID, PurposePasswordReset, code); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return err
	}

	if err := e.setPassword(ctx, &account, newPassword, "", "password reset"); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return err
	}

	// The reset proves mailbox control, so the lockout no longer serves a
	// purpose and would only lock the legitimate owner out.
	if account.FailedLoginCount > 0 || !account.LockedUntil.IsZero() {
		if err := e.provider.UpdateLoginState(ctx, account.AccountID, 0, time.Time{}); err != nil {
			log.Printf("rapidauth: login state reset failed: %v", err)
		}
	}
	if err := e.rateLimiter.ResetLogin(ctx, email, clientIPFromContext(ctx)); err != nil {
		log.Printf("rapidauth: login throttle reset failed: %v", err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.auditSuccess(ctx, auditEventPasswordResetConfirmed, account.AccountID)
	return nil
}

// setPassword enforces the password policy, rejects reuse of the current
// password, persists the new hash with a fresh PasswordChangedAt, and
// revokes the account's sessions.
func (e *Engine) setPassword(ctx context.Context, account *AccountRecord, newPassword, oldPassword, reason string) error {
	if err := e.checkPasswordPolicy(newPassword); err != nil {
		return err
	}
	if oldPassword != "" && newPassword == oldPassword {
		return ErrPasswordReuse
	}
	if oldPassword == "" {
		// Reset flow has no cleartext old password; compare against the
		// stored hash instead.
		same, err := e.hasher.Verify(newPassword, account.PasswordHash)
		if err == nil && same {
			return ErrPasswordReuse
		}
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	changedAt := time.Now()
	if err := e.provider.UpdatePasswordHash(ctx, account.AccountID, newHash, changedAt); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	account.PasswordHash = newHash
	account.PasswordChangedAt = changedAt

	revoked, err := e.sessions.RevokeAllForAccount(ctx, account.AccountID, "system", reason)
	if err != nil {
		log.Printf("rapidauth: session revocation after %s failed: %v", reason, err)
	} else if revoked > 0 {
		e.metricInc(MetricSessionRevoked)
	}
	return nil
}
