package internaldefs

import (
	rapidauth "github.com/shrimay18/rapidcare-auth"
)

// CounterDef maps an engine counter onto its exported metric name.
type CounterDef struct {
	ID   rapidauth.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram onto its exported metric name.
type HistogramDef struct {
	ID   rapidauth.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every exported counter. Both exporters iterate this
// slice so the two surfaces cannot drift apart.
var CounterDefs = []CounterDef{
	{ID: rapidauth.MetricLoginSuccess, Name: "rapidauth_login_success_total", Help: "Successful login attempts."},
	{ID: rapidauth.MetricLoginFailure, Name: "rapidauth_login_failure_total", Help: "Failed login attempts."},
	{ID: rapidauth.MetricLoginRateLimited, Name: "rapidauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: rapidauth.MetricAccountLocked, Name: "rapidauth_account_locked_total", Help: "Accounts locked by the failed-login threshold."},
	{ID: rapidauth.MetricRefreshSuccess, Name: "rapidauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: rapidauth.MetricRefreshInvalid, Name: "rapidauth_refresh_invalid_total", Help: "Refresh attempts with an invalid or dead token."},
	{ID: rapidauth.MetricRefreshReuseDetected, Name: "rapidauth_refresh_reuse_detected_total", Help: "Refresh token reuses that revoked a family."},
	{ID: rapidauth.MetricRefreshRateLimited, Name: "rapidauth_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: rapidauth.MetricSessionCreated, Name: "rapidauth_session_created_total", Help: "Created refresh sessions."},
	{ID: rapidauth.MetricSessionRevoked, Name: "rapidauth_session_revoked_total", Help: "Revoked refresh sessions."},
	{ID: rapidauth.MetricLogout, Name: "rapidauth_logout_total", Help: "Single-session logout operations."},
	{ID: rapidauth.MetricLogoutAll, Name: "rapidauth_logout_all_total", Help: "Logout-all operations."},
	{ID: rapidauth.MetricLogoutDevice, Name: "rapidauth_logout_device_total", Help: "Per-device logout operations."},
	{ID: rapidauth.MetricOTPIssued, Name: "rapidauth_otp_issued_total", Help: "Issued one-time codes."},
	{ID: rapidauth.MetricOTPVerified, Name: "rapidauth_otp_verified_total", Help: "Successful one-time code verifications."},
	{ID: rapidauth.MetricOTPFailure, Name: "rapidauth_otp_failure_total", Help: "Failed one-time code verifications."},
	{ID: rapidauth.MetricOTPBlocked, Name: "rapidauth_otp_blocked_total", Help: "One-time codes blocked by the attempt cap."},
	{ID: rapidauth.MetricOTPRateLimited, Name: "rapidauth_otp_rate_limited_total", Help: "Rate-limited one-time code issues."},
	{ID: rapidauth.MetricAccountCreated, Name: "rapidauth_account_created_total", Help: "Successful account creations."},
	{ID: rapidauth.MetricAccountCreationDuplicate, Name: "rapidauth_account_creation_duplicate_total", Help: "Account creations rejected as duplicate."},
	{ID: rapidauth.MetricEmailVerified, Name: "rapidauth_email_verified_total", Help: "Successful email verifications."},
	{ID: rapidauth.MetricPasswordChangeSuccess, Name: "rapidauth_password_change_success_total", Help: "Successful password changes."},
	{ID: rapidauth.MetricPasswordChangeInvalidOld, Name: "rapidauth_password_change_invalid_old_total", Help: "Password changes rejected on the current password."},
	{ID: rapidauth.MetricPasswordResetRequest, Name: "rapidauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: rapidauth.MetricPasswordResetConfirmSuccess, Name: "rapidauth_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: rapidauth.MetricPasswordResetConfirmFailure, Name: "rapidauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
}

// HistogramDefs enumerates every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: rapidauth.MetricValidateLatency, Name: "rapidauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's fixed histogram
// buckets, in seconds, as Prometheus le label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds the same bounds encoded for use inside metric
// names, for backends without native histogram support.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
