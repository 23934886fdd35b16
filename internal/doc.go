// Package internal contains helper utilities that are intentionally private to
// rapidauth, including secure random generation and digest helpers.
//
// # Sub-packages
//
//   - rate — Redis-backed fixed-window rate limit primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public rapidauth API.
//   - Be imported by any package outside the rapidcare-auth module.
package internal
