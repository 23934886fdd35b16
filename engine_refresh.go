package rapidauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shrimay18/rapidcare-auth/internal"
	"github.com/shrimay18/rapidcare-auth/internal/rate"
	"github.com/shrimay18/rapidcare-auth/session"
)

// Refresh exchanges a refresh token for a fresh token pair, rotating the
// session in place. The presented token is retired atomically; presenting it
// a second time is treated as theft evidence and revokes the whole family
// ([ErrRefreshReuse]).
//
// The new refresh token belongs to the same family and inherits the device
// record unless device carries a non-empty DeviceID.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, device DeviceInfo) (*TokenPair, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil, ErrRefreshInvalid
	}

	// The family is not known until after rotation, so the refresh window
	// is keyed on the presented token's digest instead. Rotation moves the
	// caller to a new digest each time, which caps the rate per hop.
	if err := e.rateLimiter.CheckRefresh(ctx, internal.DigestHex(refreshToken)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.auditFailure(ctx, auditEventRefreshRateLimited, "", ErrRefreshRateLimited)
			return nil, ErrRefreshRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	res, err := e.sessions.Rotate(ctx, refreshToken, e.config.Session.RefreshTTL, e.deviceOrContext(ctx, device))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch res.Outcome {
	case session.RotateReused:
		e.metricInc(MetricRefreshReuseDetected)
		e.auditEmit(ctx, AuditEvent{
			EventType: auditEventRefreshReuseDetected,
			AccountID: res.AccountID,
			FamilyID:  res.FamilyID,
			Success:   false,
			Error:     string(auditErrRefreshReuse),
			Metadata: map[string]string{
				"revoked_sessions": fmt.Sprintf("%d", res.RevokedCount),
			},
		})
		return nil, ErrRefreshReuse
	case session.RotateOK:
	default:
		e.metricInc(MetricRefreshInvalid)
		e.auditFailure(ctx, auditEventRefreshInvalid, res.AccountID, ErrRefreshInvalid)
		return nil, ErrRefreshInvalid
	}

	sess := res.Session
	account, err := e.accountByID(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.revokeAfterRotate(ctx, sess, "account missing")
			return nil, ErrRefreshInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if account.Status != AccountActive {
		e.revokeAfterRotate(ctx, sess, "account not active")
		e.metricInc(MetricRefreshInvalid)
		e.auditFailure(ctx, auditEventRefreshInvalid, account.AccountID, ErrAccountDisabled)
		return nil, ErrRefreshInvalid
	}

	// A password change after the family was opened invalidates every
	// descendant, including the one the rotation just minted.
	if !account.PasswordChangedAt.IsZero() && account.PasswordChangedAt.Unix() > sess.FamilyCreatedAt {
		if _, err := e.sessions.RevokeFamily(ctx, sess.FamilyID, "system", "password changed"); err != nil {
			log.Printf("rapidauth: family revoke after password change failed: %v", err)
		}
		e.metricInc(MetricRefreshInvalid)
		e.auditFailure(ctx, auditEventRefreshInvalid, account.AccountID, ErrRefreshInvalid)
		return nil, ErrRefreshInvalid
	}

	access, err := e.jwtManager.CreateAccess(account.AccountID, account.Role, account.Status.String())
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.auditEmit(ctx, AuditEvent{
		EventType: auditEventRefreshSuccess,
		AccountID: account.AccountID,
		SessionID: sess.SessionID,
		FamilyID:  sess.FamilyID,
		DeviceID:  sess.Device.DeviceID,
		Success:   true,
	})

	now := time.Now()
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     res.RawToken,
		SessionID:        sess.SessionID,
		AccessExpiresAt:  now.Add(e.config.JWT.AccessTTL),
		RefreshExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

func (e *Engine) revokeAfterRotate(ctx context.Context, sess *session.Session, reason string) {
	if _, err := e.sessions.Revoke(ctx, sess.SessionID, "system", reason); err != nil {
		log.Printf("rapidauth: post-rotation revoke failed: %v", err)
	}
}
