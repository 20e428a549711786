// Package auth implements password hashing and bearer-token issuance for
// the registry.
//
// Two token schemes are supported: opaque tokens (a random
// 256-bit secret, looked up by the SHA-256 hash of the secret) and signed
// tokens (an HMAC-SHA256 self-describing token, nothing stored but
// metadata). Passwords are hashed with argon2id.
//
// This package holds no storage of its own — it produces and validates
// values that callers persist through pkg/catalog's UserStore/TokenStore.
package auth
