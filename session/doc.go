// Package session implements the Redis-backed refresh session store.
//
// Each refresh session is a Redis hash keyed by session ID, with secondary
// indexes: a token-digest key resolving a presented token to its session, a
// set of session IDs per rotation family, and a set per account. Record keys
// carry a TTL of the session expiry plus a retention window, so terminal
// records (ROTATED, REVOKED, EXHAUSTED, EXPIRED) stay resolvable long enough
// for replay detection before Redis reaps them.
//
// # Rotation
//
// Rotate runs a single Lua script that resolves the presented token digest,
// classifies the session (retired, terminal, expired, exhausted), scans the
// family for concurrent ACTIVE sessions, and either retires the session and
// writes its successor or revokes the whole family. Two concurrent rotations
// of the same token therefore serialize inside Redis: exactly one wins, the
// other observes a retired token and triggers family revocation.
//
// ATOMICITY NOTE: the scripts compute key names from the stored family and
// account IDs rather than declaring them in KEYS. This is fine on a single
// node or when all keys share a hash tag, which is the deployment this store
// targets.
//
// # What this package must NOT do
//
//   - Hash passwords or verify OTPs.
//   - Issue or parse access tokens.
//   - Decide revocation policy; callers pass the revoker and reason.
package session
