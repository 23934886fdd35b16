// Package middleware exposes HTTP adapters for access token enforcement
// built on top of rapidauth.Engine validation.
//
// # Guards
//
//   - [Authenticate] — verifies the bearer token and injects the identity.
//   - [RequireRole] — [Authenticate] plus a role allow-list.
//
// Each guard reads the Authorization header, threads the client IP and
// user agent into the request context, calls Engine.Validate, and injects
// the validated identity for downstream handlers.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject and the role check.
package middleware
