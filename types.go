package rapidauth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/shrimay18/rapidcare-auth/internal/audit"
	"github.com/shrimay18/rapidcare-auth/session"
)

// AccountStatus represents the lifecycle state of an account.
type AccountStatus uint8

const (
	// AccountPendingVerification is the state of a freshly created account
	// whose email has not been verified yet. Login is refused with
	// [ErrAccountUnverified].
	AccountPendingVerification AccountStatus = iota
	// AccountActive accounts can log in and hold sessions.
	AccountActive
	// AccountSuspended accounts are administratively blocked.
	AccountSuspended
	// AccountInactive accounts are deactivated (soft delete).
	AccountInactive
)

func (s AccountStatus) String() string {
	switch s {
	case AccountPendingVerification:
		return "PENDING_VERIFICATION"
	case AccountActive:
		return "ACTIVE"
	case AccountSuspended:
		return "SUSPENDED"
	case AccountInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Roles recognized by the engine. The role travels inside the access token
// claims; authorization decisions belong to the caller.
const (
	RolePatient = "PATIENT"
	RoleDoctor  = "DOCTOR"
	RoleAdmin   = "ADMIN"
)

// ValidRole reports whether role is one of the recognized role names.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// AccountRecord is the account representation returned by [AccountProvider].
// Accounts live in the caller's database; the engine only reads and writes
// the credential and lockout fields through the provider interface.
type AccountRecord struct {
	AccountID         string
	Email             string
	Role              string
	Status            AccountStatus
	PasswordHash      string
	PasswordChangedAt time.Time
	FailedLoginCount  int
	LockedUntil       time.Time
}

// Locked reports whether the account's lockout window is still open.
func (a *AccountRecord) Locked(now time.Time) bool {
	return !a.LockedUntil.IsZero() && now.Before(a.LockedUntil)
}

// CreateAccountInput is the input for [AccountProvider.CreateAccount].
type CreateAccountInput struct {
	Email        string
	PasswordHash string
	Role         string
	Status       AccountStatus
}

// AccountProvider is the interface callers implement to integrate the engine
// with their account database. Implementations must return
// [ErrAccountNotFound] for missing accounts and [ErrAccountExists] when
// CreateAccount hits a duplicate email.
//
// Lockout counter updates flow through UpdateLoginState; last-write-wins
// under concurrency is acceptable, the lockout threshold tolerates an
// off-by-few count.
type AccountProvider interface {
	GetAccountByEmail(ctx context.Context, email string) (AccountRecord, error)
	GetAccountByID(ctx context.Context, accountID string) (AccountRecord, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (AccountRecord, error)
	UpdatePasswordHash(ctx context.Context, accountID, newHash string, changedAt time.Time) error
	UpdateAccountStatus(ctx context.Context, accountID string, status AccountStatus) error
	UpdateLoginState(ctx context.Context, accountID string, failedCount int, lockedUntil time.Time) error
}

// Notifier delivers one-time codes to account holders. The engine never
// persists a raw code; the notifier is the only component that sees it
// besides the IssueOTP caller.
type Notifier interface {
	SendOTP(ctx context.Context, email string, purpose OTPPurpose, code string, ttl time.Duration) error
}

// DeviceInfo describes the client device a session is bound to.
type DeviceInfo = session.Device

// TokenPair is returned by [Engine.Login] and [Engine.Refresh].
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult is returned by [Engine.Validate] for an accepted access token.
type AuthResult struct {
	AccountID string
	Role      string
	Status    AccountStatus
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionInfo is the device-facing view of a live session, returned by
// [Engine.ListSessions]. It never includes token material.
type SessionInfo struct {
	SessionID  string
	Device     DeviceInfo
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

// OTPPurpose scopes a one-time code to the flow it was issued for. A code
// issued for one purpose never verifies under another.
type OTPPurpose string

const (
	// PurposeEmailVerification codes activate PENDING_VERIFICATION accounts.
	PurposeEmailVerification OTPPurpose = "EMAIL_VERIFICATION"
	// PurposePasswordReset codes authorize ConfirmPasswordReset.
	PurposePasswordReset OTPPurpose = "PASSWORD_RESET"
	// PurposeLoginVerification codes authorize step-up login checks.
	PurposeLoginVerification OTPPurpose = "LOGIN_VERIFICATION"
)

// ValidOTPPurpose reports whether p is a recognized purpose.
func ValidOTPPurpose(p OTPPurpose) bool {
	switch p {
	case PurposeEmailVerification, PurposePasswordReset, PurposeLoginVerification:
		return true
	}
	return false
}

// OTPOutcome classifies a single verification attempt.
type OTPOutcome uint8

const (
	// OTPOk means the code matched and the record is now USED.
	OTPOk OTPOutcome = iota
	// OTPMismatch means the code did not match; the attempt was counted.
	OTPMismatch
	// OTPExpired means the code's validity window had passed.
	OTPExpired
	// OTPBlocked means the attempt cap was reached; the code is dead.
	OTPBlocked
	// OTPUsed means the code had already been consumed.
	OTPUsed
	// OTPNotFound means no code exists for the account and purpose.
	OTPNotFound
)

func (o OTPOutcome) String() string {
	switch o {
	case OTPOk:
		return "ok"
	case OTPMismatch:
		return "mismatch"
	case OTPExpired:
		return "expired"
	case OTPBlocked:
		return "blocked"
	case OTPUsed:
		return "used"
	case OTPNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// OTPResult is returned by [Engine.VerifyOTPWithResult]. RemainingAttempts
// is meaningful only for OTPMismatch.
type OTPResult struct {
	Outcome           OTPOutcome
	RemainingAttempts int
}

// CreateAccountRequest is the input for [Engine.CreateAccount]. Email and
// Password are required; Role defaults to [Config.Account.DefaultRole] when
// empty.
type CreateAccountRequest struct {
	Email    string
	Password string
	Role     string
}

// CreateAccountResult is returned by [Engine.CreateAccount]. The account
// starts in PENDING_VERIFICATION; VerificationSent reports whether the
// verification code reached the notifier.
type CreateAccountResult struct {
	AccountID        string
	Email            string
	Role             string
	Status           AccountStatus
	VerificationSent bool
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
