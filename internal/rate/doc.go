// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for security-sensitive authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - rl:  — login per-email
//   - rli: — login per-IP
//   - rr:  — refresh per token family
//   - ro:  — OTP issuance per account+purpose
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in the engine).
//   - Be imported outside the rapidcare-auth module.
package rate
