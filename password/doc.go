// Package password implements password hashing and verification with bcrypt.
//
// # Output format
//
// Hashes use the standard bcrypt modular crypt format:
//
//	$2a$<cost>$<salt+hash>
//
// The [Hasher] supports transparent cost upgrades: if the stored hash was
// produced with a lower cost factor, [Hasher.NeedsUpgrade] returns true so the
// caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns the slow, salted one-way function for passwords only.
// Fast token/OTP digests live in internal (SHA-256, unsalted, so records stay
// addressable by hash). Password policy (length, reuse) is enforced by the
// Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other rapidauth package.
//   - Log plaintext passwords at runtime.
package password
