// Package jwt manages access-token issuance and verification using configured signing keys
// and strict validation semantics suitable for low-latency authentication paths.
//
// The manager is deliberately stateless: it cannot know whether an account was
// suspended or a password changed after issuance. Those live-record checks are
// the Engine's authenticated-request gate, not this package's job.
package jwt
