package rapidauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shrimay18/rapidcare-auth/internal/rate"
	"github.com/shrimay18/rapidcare-auth/session"
)

// Login authenticates an email and password and mints a token pair: a short
// JWT access token plus an opaque refresh token opening a new rotation
// family.
//
// Unknown email, wrong password, and an open lockout window all surface as
// [ErrInvalidCredentials]; the only account states disclosed are
// [ErrAccountUnverified] and [ErrAccountDisabled], which the client needs to
// act on.
func (e *Engine) Login(ctx context.Context, email, pass string) (*TokenPair, error) {
	return e.login(ctx, email, pass, DeviceInfo{})
}

// LoginWithDevice is Login with explicit device metadata recorded on the
// created session.
func (e *Engine) LoginWithDevice(ctx context.Context, email, pass string, device DeviceInfo) (*TokenPair, error) {
	return e.login(ctx, email, pass, device)
}

func (e *Engine) login(ctx context.Context, email, pass string, device DeviceInfo) (*TokenPair, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.auditFailure(ctx, auditEventLoginRateLimited, "", ErrLoginRateLimited)
			return nil, ErrLoginRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	account, err := e.accountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.noteLoginFailure(ctx, email, ip, "", ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.checkLogin(ctx, &account, pass); err != nil {
		e.noteLoginFailure(ctx, email, ip, account.AccountID, err)
		switch {
		case errors.Is(err, ErrAccountLocked), errors.Is(err, ErrInvalidCredentials):
			// Collapsed so the login surface cannot be used to probe
			// lockout state.
			return nil, ErrInvalidCredentials
		default:
			return nil, err
		}
	}

	switch account.Status {
	case AccountActive:
	case AccountPendingVerification:
		e.noteLoginFailure(ctx, email, ip, account.AccountID, ErrAccountUnverified)
		return nil, ErrAccountUnverified
	default:
		e.noteLoginFailure(ctx, email, ip, account.AccountID, ErrAccountDisabled)
		return nil, ErrAccountDisabled
	}

	pair, sess, err := e.issueTokens(ctx, &account, e.deviceOrContext(ctx, device))
	if err != nil {
		return nil, err
	}

	if err := e.rateLimiter.ResetLogin(ctx, email, ip); err != nil {
		log.Printf("rapidauth: login throttle reset failed: %v", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.auditEmit(ctx, AuditEvent{
		EventType: auditEventLoginSuccess,
		AccountID: account.AccountID,
		SessionID: sess.SessionID,
		FamilyID:  sess.FamilyID,
		DeviceID:  sess.Device.DeviceID,
		Success:   true,
	})
	return pair, nil
}

// checkLogin runs the lockout state machine against a candidate password.
// It returns ErrAccountLocked while the lockout window is open,
// ErrInvalidCredentials on mismatch, and nil on success. Counter updates go
// through the provider; a lost update under concurrency shifts the
// threshold by at most the number of racing attempts.
func (e *Engine) checkLogin(ctx context.Context, account *AccountRecord, pass string) error {
	now := time.Now()

	if account.Locked(now) {
		return ErrAccountLocked
	}

	ok, err := e.hasher.Verify(pass, account.PasswordHash)
	if err != nil {
		// Corrupt or foreign hash; treat as mismatch rather than exposing
		// a provider data problem on the login surface.
		ok = false
	}

	if !ok {
		failed := account.FailedLoginCount + 1
		lockedUntil := time.Time{}
		if failed >= e.config.Lockout.Threshold {
			lockedUntil = now.Add(e.config.Lockout.Duration)
		}
		if err := e.provider.UpdateLoginState(ctx, account.AccountID, failed, lockedUntil); err != nil {
			log.Printf("rapidauth: login state update failed: %v", err)
		}
		if !lockedUntil.IsZero() {
			e.metricInc(MetricAccountLocked)
			e.auditEmit(ctx, AuditEvent{
				EventType: auditEventAccountLocked,
				AccountID: account.AccountID,
				Success:   true,
				Metadata: map[string]string{
					"failed_attempts": fmt.Sprintf("%d", failed),
				},
			})
		}
		return ErrInvalidCredentials
	}

	// Success closes any past lockout and resets the counter.
	if account.FailedLoginCount > 0 || !account.LockedUntil.IsZero() {
		if err := e.provider.UpdateLoginState(ctx, account.AccountID, 0, time.Time{}); err != nil {
			log.Printf("rapidauth: login state reset failed: %v", err)
		}
	}

	e.maybeUpgradeHash(ctx, account, pass)
	return nil
}

// maybeUpgradeHash rehashes the password at the configured cost when the
// stored hash was produced with a lower one. Best effort; login proceeds
// either way.
func (e *Engine) maybeUpgradeHash(ctx context.Context, account *AccountRecord, pass string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(account.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	// PasswordChangedAt is deliberately left alone: the credential did not
	// change, only its encoding, so existing tokens stay valid.
	if err := e.provider.UpdatePasswordHash(ctx, account.AccountID, newHash, account.PasswordChangedAt); err != nil {
		log.Printf("rapidauth: password hash upgrade failed: %v", err)
	}
}

func (e *Engine) issueTokens(ctx context.Context, account *AccountRecord, device DeviceInfo) (*TokenPair, *session.Session, error) {
	access, err := e.jwtManager.CreateAccess(account.AccountID, account.Role, account.Status.String())
	if err != nil {
		return nil, nil, err
	}

	raw, sess, err := e.sessions.Create(ctx, session.CreateParams{
		AccountID:  account.AccountID,
		Device:     device,
		TTL:        e.config.Session.RefreshTTL,
		UsageLimit: e.config.Session.UsageLimit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		SessionID:        sess.SessionID,
		AccessExpiresAt:  now.Add(e.config.JWT.AccessTTL),
		RefreshExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, sess, nil
}

func (e *Engine) noteLoginFailure(ctx context.Context, email, ip, accountID string, cause error) {
	if err := e.rateLimiter.IncrementLogin(ctx, email, ip); err != nil {
		log.Printf("rapidauth: login throttle increment failed: %v", err)
	}
	e.metricInc(MetricLoginFailure)
	e.auditFailure(ctx, auditEventLoginFailure, accountID, cause)
}
