package rapidauth

import "errors"

var (
	// ErrUnauthorized is returned by Validate when a structurally valid
	// token fails the live account check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is the opaque login failure. Unknown email,
	// wrong password, and an open lockout window all collapse into it so
	// the login surface leaks nothing.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is returned by providers and by lookups that are
	// allowed to be specific (admin surfaces, internal flows).
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when account creation hits a duplicate
	// email.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidEmail is returned by [Engine.CreateAccount] for a malformed
	// or oversized email address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidRole is returned by [Engine.CreateAccount] for a role
	// outside the known set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrAccountUnverified is returned when a PENDING_VERIFICATION account
	// attempts to log in.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountDisabled covers SUSPENDED and INACTIVE accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked is the internal lockout signal. The public Login
	// surface converts it to ErrInvalidCredentials.
	ErrAccountLocked = errors.New("account locked")
	// ErrLoginRateLimited is returned when the login throttle denies the
	// attempt before credentials are even checked.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when the refresh throttle denies
	// the rotation attempt.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrOTPRateLimited is returned when code issuance for an account and
	// purpose exceeds the issue window.
	ErrOTPRateLimited = errors.New("otp issuance rate limited")
	// ErrOTPInvalid covers mismatched, unknown, and already-used codes.
	ErrOTPInvalid = errors.New("invalid verification code")
	// ErrOTPExpired is returned when the code's validity window has passed.
	ErrOTPExpired = errors.New("verification code expired")
	// ErrOTPAttemptsExceeded is returned once the per-code attempt cap is
	// reached; the code is dead and a new one must be issued.
	ErrOTPAttemptsExceeded = errors.New("verification attempts exceeded")
	// ErrPasswordPolicy is returned when a new password fails the policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a password change supplies the
	// current password as the new one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrTokenInvalid covers malformed access tokens, bad signatures, and
	// tokens naming unknown accounts.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for structurally valid but expired
	// access tokens.
	ErrTokenExpired = errors.New("token expired")
	// ErrRefreshInvalid covers unknown refresh tokens and sessions that
	// are revoked, exhausted, or expired.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when a retired refresh token is replayed.
	// The whole token family has been revoked; the client must log in again.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrSessionNotFound is returned by session lookups for unknown IDs.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps Redis transport failures. Callers may retry
	// reads; writes are never retried by the engine.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called on a
	// nil or incompletely built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
