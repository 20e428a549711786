package auth

import (
	"errors"
	"time"

	"github.com/pkgforge/registry/pkg/catalog"
)

// ErrInvalidCredentials is returned by password verification and token
// validation for any failure that should look identical to a caller
// (wrong password, unknown user, expired/revoked token) — never reveal
// which check failed.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// AuthContext holds the authenticated identity for one request, injected by
// pkg/middleware and consulted by pkg/registryapi's handlers.
type AuthContext struct {
	User   *catalog.User
	Token  *catalog.APIToken
	Scopes []catalog.Scope
}

// HasScope reports whether the context carries scope, or the blanket
// catalog.ScopeAdmin scope.
func (ac *AuthContext) HasScope(scope catalog.Scope) bool {
	if ac == nil {
		return false
	}
	for _, s := range ac.Scopes {
		if s == catalog.ScopeAdmin || s == scope {
			return true
		}
	}
	return false
}

// IsOwner reports whether the authenticated user is either the package
// owner or an admin; ownership in this registry is a plain
// username-equals-owner check — there is no org/team model.
func (ac *AuthContext) IsOwner(packageOwner string) bool {
	if ac == nil || ac.User == nil {
		return false
	}
	return ac.User.IsAdmin || ac.User.Username == packageOwner
}

// TokenClaims is the decoded payload of a signed (HMAC) bearer token.
type TokenClaims struct {
	UserID    int64          `json:"uid"`
	Scopes    []catalog.Scope `json:"scopes"`
	ExpiresAt time.Time      `json:"exp"`
}
