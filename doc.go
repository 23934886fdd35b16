// Package rapidauth provides the credential and session-lifecycle core for
// RapidCare services: password login with lockout, JWT access tokens,
// rotating opaque refresh tokens with family-wide reuse detection, one-time
// codes for email verification and password reset, and Redis-backed session
// controls.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. Accounts live in the caller's database behind the
// [AccountProvider] interface; everything token- and session-shaped lives in
// Redis.
//
// # Architecture boundaries
//
// rapidauth is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, AuthResult, SessionInfo, MetricsSnapshot,
// etc.). Flow orchestration, rate limiting, and audit dispatch live under
// internal/; token signing and session storage live in the jwt/ and
// session/ sub-packages.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or key layouts in its public API.
//   - Store raw secrets: passwords are bcrypt-hashed, refresh tokens and
//     one-time codes are stored as SHA-256 digests only.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//
// # Performance contract
//
// Validate is the hot path: one JWT verification plus one provider read.
// Login, Refresh, and the OTP flows are allowed a bounded number of Redis
// round trips per call; rotation itself is a single Lua script.
package rapidauth
