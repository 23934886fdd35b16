package rapidauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginRateLimited       = "login_rate_limited"
	auditEventAccountLocked          = "account_locked"
	auditEventRefreshSuccess         = "refresh_success"
	auditEventRefreshInvalid         = "refresh_invalid"
	auditEventRefreshRateLimited     = "refresh_rate_limited"
	auditEventRefreshReuseDetected   = "refresh_reuse_detected"
	auditEventLogoutSession          = "logout_session"
	auditEventLogoutAll              = "logout_all"
	auditEventLogoutDevice           = "logout_device"
	auditEventOTPIssued              = "otp_issued"
	auditEventOTPVerified            = "otp_verified"
	auditEventOTPFailure             = "otp_failure"
	auditEventOTPBlocked             = "otp_blocked"
	auditEventAccountCreated         = "account_created"
	auditEventAccountCreateFailed    = "account_create_failed"
	auditEventEmailVerified          = "email_verified"
	auditEventPasswordChanged        = "password_changed"
	auditEventPasswordChangeFailure  = "password_change_failure"
	auditEventPasswordResetRequested = "password_reset_requested"
	auditEventPasswordResetConfirmed = "password_reset_confirmed"
)

// AuditErrorCode is a stable machine-readable failure code carried in audit
// events, decoupled from error message wording.
type AuditErrorCode string

const (
	auditErrNone               AuditErrorCode = ""
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate_account"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrRefreshInvalid     AuditErrorCode = "refresh_invalid"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrTokenInvalid       AuditErrorCode = "token_invalid"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrOTPInvalid         AuditErrorCode = "otp_invalid"
	auditErrOTPExpired         AuditErrorCode = "otp_expired"
	auditErrOTPAttempts        AuditErrorCode = "otp_attempts_exceeded"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrUnavailable        AuditErrorCode = "store_unavailable"
	auditErrInternal           AuditErrorCode = "internal"
)

func auditCodeForError(err error) AuditErrorCode {
	switch {
	case err == nil:
		return auditErrNone
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited),
		errors.Is(err, ErrOTPRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRefreshInvalid):
		return auditErrRefreshInvalid
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrUnauthorized):
		return auditErrTokenInvalid
	case errors.Is(err, ErrOTPExpired):
		return auditErrOTPExpired
	case errors.Is(err, ErrOTPAttemptsExceeded):
		return auditErrOTPAttempts
	case errors.Is(err, ErrOTPInvalid):
		return auditErrOTPInvalid
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) auditEmit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) auditFailure(ctx context.Context, eventType, accountID string, err error) {
	e.auditEmit(ctx, AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		Success:   false,
		Error:     string(auditCodeForError(err)),
	})
}

func (e *Engine) auditSuccess(ctx context.Context, eventType, accountID string) {
	e.auditEmit(ctx, AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		Success:   true,
	})
}
