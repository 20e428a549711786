package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkgforge/registry/pkg/catalog"
)

// TokenPrefix identifies registry bearer tokens in both schemes, so a
// presented credential can be told apart from, say, a GitHub PAT in logs.
const TokenPrefix = "reg_"

// OpaqueTokenLength is the random secret size in bytes (256 bits).
const OpaqueTokenLength = 32

// GenerateOpaqueToken creates a new opaque bearer token: a random 256-bit
// secret the caller presents verbatim, looked up by the SHA-256 hash of
// the secret (catalog.TokenStore.GetTokenByHash). The plaintext secret is
// returned exactly once — callers must not attempt to recover it later.
func GenerateOpaqueToken() (plaintext string, hash string, err error) {
	buf := make([]byte, OpaqueTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("auth: generate random token: %w", err)
	}
	plaintext = TokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
	hash = HashOpaqueToken(plaintext)
	return plaintext, hash, nil
}

// HashOpaqueToken returns the hex-encoded SHA-256 digest of an opaque
// token's plaintext, the only form ever persisted.
func HashOpaqueToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// SignedTokenIssuer mints and validates HMAC-signed stateless bearer
// tokens: base64url(header).base64url(payload).base64url(mac), where
// mac = HMAC-SHA256(secret, header+"."+payload).
type SignedTokenIssuer struct {
	secret []byte
}

// NewSignedTokenIssuer builds an issuer keyed by secret (the server's
// signing key; rotate by restarting with a new secret, which invalidates
// all previously-issued signed tokens).
func NewSignedTokenIssuer(secret []byte) *SignedTokenIssuer {
	return &SignedTokenIssuer{secret: secret}
}

type tokenHeader struct {
	Alg string `json:"alg"`
}

type tokenPayload struct {
	UserID int64           `json:"uid"`
	Scopes []catalog.Scope `json:"scopes"`
	IAT    int64           `json:"iat"`
	Exp    int64           `json:"exp"`
}

// Issue mints a signed token for userID carrying scopes, expiring after ttl.
func (si *SignedTokenIssuer) Issue(userID int64, scopes []catalog.Scope, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	headerJSON, err := json.Marshal(tokenHeader{Alg: "HS256"})
	if err != nil {
		return "", fmt.Errorf("auth: marshal token header: %w", err)
	}
	payloadJSON, err := json.Marshal(tokenPayload{
		UserID: userID,
		Scopes: scopes,
		IAT:    now.Unix(),
		Exp:    now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("auth: marshal token payload: %w", err)
	}

	headerPart := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadPart := base64.RawURLEncoding.EncodeToString(payloadJSON)
	mac := si.sign(headerPart, payloadPart)

	return TokenPrefix + headerPart + "." + payloadPart + "." + mac, nil
}

// Validate parses and verifies a signed token, returning its claims.
// Returns ErrInvalidCredentials for any structural, signature, or
// expiry failure — never a more specific error, so callers can't use
// timing or error text to distinguish "bad signature" from "expired".
func (si *SignedTokenIssuer) Validate(token string) (*TokenClaims, error) {
	token = strings.TrimPrefix(token, TokenPrefix)
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidCredentials
	}
	headerPart, payloadPart, macPart := parts[0], parts[1], parts[2]

	expectedMAC := si.sign(headerPart, payloadPart)
	if subtle.ConstantTimeCompare([]byte(expectedMAC), []byte(macPart)) != 1 {
		return nil, ErrInvalidCredentials
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	var payload tokenPayload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresAt := time.Unix(payload.Exp, 0)
	if time.Now().After(expiresAt) {
		return nil, ErrInvalidCredentials
	}

	return &TokenClaims{UserID: payload.UserID, Scopes: payload.Scopes, ExpiresAt: expiresAt}, nil
}

func (si *SignedTokenIssuer) sign(headerPart, payloadPart string) string {
	mac := hmac.New(sha256.New, si.secret)
	mac.Write([]byte(headerPart + "." + payloadPart))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// LooksSigned reports whether a presented token is structurally a signed
// token (three dot-separated segments) rather than an opaque secret,
// letting middleware dispatch to the right validation path without a
// catalog round-trip.
func LooksSigned(token string) bool {
	return strings.Count(strings.TrimPrefix(token, TokenPrefix), ".") == 2
}
