package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkgforge/registry/pkg/auth"
	"github.com/pkgforge/registry/pkg/catalog"
)

// ContextKey is a type for context keys
type ContextKey string

const (
	// AuthContextKey is the context key for authentication context
	AuthContextKey ContextKey = "auth_context"
)

// Authenticator validates a presented bearer token and resolves its user,
// covering both supported schemes (opaque catalog-lookup and signed
// stateless tokens).
type Authenticator struct {
	catalog     catalog.Catalog
	signedIssuer *auth.SignedTokenIssuer
}

// NewAuthenticator builds an Authenticator. signedIssuer may be nil if the
// deployment only issues opaque tokens.
func NewAuthenticator(cat catalog.Catalog, signedIssuer *auth.SignedTokenIssuer) *Authenticator {
	return &Authenticator{catalog: cat, signedIssuer: signedIssuer}
}

// Authenticate validates token and returns the resulting AuthContext.
// Returns auth.ErrInvalidCredentials for any failure — unknown token,
// revoked, expired, or a user that cannot be loaded. Users have no
// deactivated state, so none is checked.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*auth.AuthContext, error) {
	if a.signedIssuer != nil && auth.LooksSigned(token) {
		claims, err := a.signedIssuer.Validate(token)
		if err != nil {
			return nil, err
		}
		user, err := a.catalog.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return nil, auth.ErrInvalidCredentials
		}
		return &auth.AuthContext{User: user, Scopes: claims.Scopes}, nil
	}

	hash := auth.HashOpaqueToken(token)
	apiToken, err := a.catalog.GetTokenByHash(ctx, hash)
	if err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	if apiToken.RevokedAt != nil {
		return nil, auth.ErrInvalidCredentials
	}
	if apiToken.ExpiresAt != nil && time.Now().After(*apiToken.ExpiresAt) {
		return nil, auth.ErrInvalidCredentials
	}

	user, err := a.catalog.GetUserByID(ctx, apiToken.UserID)
	if err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	_ = a.catalog.TouchTokenUse(ctx, apiToken.ID)

	return &auth.AuthContext{User: user, Token: apiToken, Scopes: apiToken.Scopes}, nil
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	authenticator *Authenticator
	optional      bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator *Authenticator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		optional:      optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		authCtx, err := m.authenticator.Authenticate(r.Context(), parts[1])
		if err != nil {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorizedResponse(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), AuthContextKey, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	ctx := r.Context().Value(AuthContextKey)
	if ctx == nil {
		return nil
	}
	authCtx, ok := ctx.(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireScope creates middleware that checks for a specific scope
func RequireScope(scope catalog.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				forbiddenResponse(w, "authentication required")
				return
			}

			if !authCtx.HasScope(scope) {
				forbiddenResponse(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwner creates middleware that checks the caller's username
// matches the owner path parameter, or that the caller holds admin —
// endpoints requiring ownership compare the caller's username against
// the URL's owner segment.
func RequireOwner(ownerFromRequest func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				forbiddenResponse(w, "authentication required")
				return
			}

			if !authCtx.IsOwner(ownerFromRequest(r)) {
				forbiddenResponse(w, "not the package owner")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func forbiddenResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
