package rapidauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shrimay18/rapidcare-auth/internal/audit"
	"github.com/shrimay18/rapidcare-auth/internal/rate"
	"github.com/shrimay18/rapidcare-auth/jwt"
	"github.com/shrimay18/rapidcare-auth/password"
	"github.com/shrimay18/rapidcare-auth/session"
)

// Engine orchestrates the credential and session lifecycle: login with
// lockout, access token issue/validation, refresh rotation with reuse
// detection, one-time codes, and the account flows built on them. Build one
// with [New]; all methods are safe for concurrent use.
type Engine struct {
	config      Config
	provider    AccountProvider
	notifier    Notifier
	sessions    *session.Store
	otps        *otpStore
	rateLimiter *rate.Limiter
	hasher      *password.Hasher
	jwtManager  *jwt.Manager
	audit       *audit.Dispatcher
	metrics     *Metrics

	reaper     *session.Reaper
	reaperOnce sync.Once
}

// Close stops the background reaper and flushes the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.reaper != nil {
		e.reaper.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// StartReaper launches the background index sweep. Repeated calls are
// no-ops; a zero ReaperInterval disables the reaper entirely.
func (e *Engine) StartReaper() {
	if e == nil || e.config.Session.ReaperInterval <= 0 {
		return
	}
	e.reaperOnce.Do(func() {
		e.reaper = session.NewReaper(e.sessions, e.config.Session.ReaperInterval)
		e.reaper.Start()
	})
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Validate checks an access token and returns the authenticated identity.
// Beyond signature and claim checks it performs a live account check: the
// account must still exist, be ACTIVE, and must not have changed its
// password after the token was issued.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenInvalid
		}
	}

	account, err := e.accountByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if account.Status != AccountActive {
		return nil, ErrUnauthorized
	}

	issuedAt := time.Time{}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	// Tokens minted before the last password change are dead even if their
	// signature and expiry still check out.
	if !account.PasswordChangedAt.IsZero() && issuedAt.Before(account.PasswordChangedAt) {
		return nil, ErrUnauthorized
	}

	expiresAt := time.Time{}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &AuthResult{
		AccountID: claims.UID,
		Role:      claims.Role,
		Status:    account.Status,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Logout revokes a single session. Revoking a session that is already
// terminal is a no-op, not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	changed, err := e.sessions.Revoke(ctx, sessionID, sess.AccountID, "logout")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if changed {
		e.metricInc(MetricSessionRevoked)
	}
	e.metricInc(MetricLogout)
	e.auditEmit(ctx, AuditEvent{
		EventType: auditEventLogoutSession,
		AccountID: sess.AccountID,
		SessionID: sessionID,
		Success:   true,
	})
	return nil
}

// LogoutAll revokes every live session of an account and returns how many
// were terminated.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (int64, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.sessions.RevokeAllForAccount(ctx, accountID, accountID, "logout all")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricLogoutAll)
	e.auditSuccess(ctx, auditEventLogoutAll, accountID)
	return n, nil
}

// LogoutDevice revokes the account's live sessions bound to one device ID.
func (e *Engine) LogoutDevice(ctx context.Context, accountID, deviceID string) (int64, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.sessions.RevokeAllForDevice(ctx, accountID, deviceID, accountID, "logout device")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricLogoutDevice)
	e.auditEmit(ctx, AuditEvent{
		EventType: auditEventLogoutDevice,
		AccountID: accountID,
		DeviceID:  deviceID,
		Success:   true,
	})
	return n, nil
}

// ListSessions returns the account's live sessions as device-facing
// metadata, most recently used first. Token material is never included.
func (e *Engine) ListSessions(ctx context.Context, accountID string) ([]SessionInfo, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	sessions, err := e.sessions.ListActiveForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			SessionID:  s.SessionID,
			Device:     s.Device,
			CreatedAt:  time.Unix(s.CreatedAt, 0),
			LastUsedAt: time.Unix(s.LastUsedAt, 0),
			ExpiresAt:  time.Unix(s.ExpiresAt, 0),
		})
	}
	return out, nil
}

// Provider reads are retried once on transient failure. Writes are never
// retried; a duplicated write could double-count lockout state.
func (e *Engine) accountByEmail(ctx context.Context, email string) (AccountRecord, error) {
	account, err := e.provider.GetAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		account, err = e.provider.GetAccountByEmail(ctx, email)
	}
	return account, err
}

func (e *Engine) accountByID(ctx context.Context, accountID string) (AccountRecord, error) {
	account, err := e.provider.GetAccountByID(ctx, accountID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		account, err = e.provider.GetAccountByID(ctx, accountID)
	}
	return account, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) deviceOrContext(ctx context.Context, device DeviceInfo) DeviceInfo {
	if device.UserAgent == "" {
		device.UserAgent = userAgentFromContext(ctx)
	}
	if device.IP == "" {
		device.IP = clientIPFromContext(ctx)
	}
	return device
}
