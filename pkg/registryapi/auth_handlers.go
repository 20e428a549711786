package registryapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/pkgforge/registry/pkg/apierr"
	"github.com/pkgforge/registry/pkg/audit"
	"github.com/pkgforge/registry/pkg/auth"
	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/middleware"
)

// defaultTokenTTL bounds how long a session token minted by register/login
// stays valid before the caller must log in again.
const defaultTokenTTL = 30 * 24 * time.Hour

// defaultScopes are granted to a freshly registered or logged-in session;
// package:delete and admin are never granted this way (see DESIGN.md).
var defaultScopes = []catalog.Scope{catalog.ScopePackageRead, catalog.ScopePackageWrite, catalog.ScopeAliasWrite}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		apierr.WriteJSON(w, apierr.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	if !validIdentifier(req.Username) {
		apierr.WriteJSON(w, apierr.InvalidInput("username must be 1-64 lowercase alphanumeric characters"))
		return
	}
	if req.Email == "" || req.Password == "" {
		apierr.WriteJSON(w, apierr.InvalidInput("email and password are required"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("hash password", err))
		return
	}

	user, err := s.catalog.CreateUser(r.Context(), req.Username, req.Email, &hash)
	if err != nil {
		if errors.Is(err, catalog.ErrAlreadyExists) {
			apierr.WriteJSON(w, apierr.AlreadyExists("username or email already registered"))
			return
		}
		apierr.WriteJSON(w, apierr.Internal("create user", err))
		return
	}

	s.audit.LogAuthentication(r.Context(), audit.EventTypeAdminUserCreate, &user.ID, user.Username,
		audit.EventStatusSuccess, "account registered")
	s.issueSessionToken(w, r, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		apierr.WriteJSON(w, apierr.InvalidInput("invalid request body: "+err.Error()))
		return
	}

	user, err := s.catalog.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		s.audit.LogAuthentication(r.Context(), audit.EventTypeAuthLoginFailed, nil, req.Username,
			audit.EventStatusFailure, "unknown username")
		apierr.WriteJSON(w, apierr.Unauthorized("invalid username or password"))
		return
	}
	if user.PasswordHash == nil {
		s.audit.LogAuthentication(r.Context(), audit.EventTypeAuthLoginFailed, &user.ID, user.Username,
			audit.EventStatusFailure, "account has no local password")
		apierr.WriteJSON(w, apierr.Unauthorized("this account has no local password; use an SSO provider or POST /api/v1/auth/password once signed in"))
		return
	}
	ok, err := auth.VerifyPassword(req.Password, *user.PasswordHash)
	if err != nil || !ok {
		s.audit.LogAuthentication(r.Context(), audit.EventTypeAuthLoginFailed, &user.ID, user.Username,
			audit.EventStatusFailure, "password mismatch")
		apierr.WriteJSON(w, apierr.Unauthorized("invalid username or password"))
		return
	}

	_ = s.catalog.TouchLastLogin(r.Context(), user.ID)
	s.audit.LogAuthentication(r.Context(), audit.EventTypeAuthLogin, &user.ID, user.Username,
		audit.EventStatusSuccess, "login succeeded")
	s.issueSessionToken(w, r, user)
}

// issueSessionToken mints an opaque, revocable token for user and persists
// it, so handleLogout has something concrete to revoke — unlike a signed
// stateless token, which can't be invalidated before it expires.
func (s *Server) issueSessionToken(w http.ResponseWriter, r *http.Request, user *catalog.User) {
	plaintext, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("generate token", err))
		return
	}
	expiresAt := time.Now().Add(defaultTokenTTL)

	_, err = s.catalog.CreateToken(r.Context(), &catalog.APIToken{
		UserID:    user.ID,
		Name:      "session",
		Kind:      catalog.TokenKindOpaque,
		TokenHash: hash,
		Scopes:    defaultScopes,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("persist token", err))
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponseJSON{Token: plaintext, User: newUserJSON(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.Token == nil {
		apierr.WriteJSON(w, apierr.InvalidInput("logout requires an opaque session token, not a signed token"))
		return
	}
	if err := s.catalog.RevokeToken(r.Context(), authCtx.Token.ID); err != nil {
		apierr.WriteJSON(w, apierr.Internal("revoke token", err))
		return
	}
	s.audit.LogAuthentication(r.Context(), audit.EventTypeAuthTokenRevoke, &authCtx.User.ID, authCtx.User.Username,
		audit.EventStatusSuccess, "session revoked")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		apierr.WriteJSON(w, apierr.Unauthorized("authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, newUserJSON(authCtx.User))
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// handleSetPassword lets a federated-only account (PasswordHash == nil)
// set a local password without a prior one, once authenticated via SSO.
// Resolves SPEC_FULL.md's open question on bridging federated and local
// login for the same account.
func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		apierr.WriteJSON(w, apierr.Unauthorized("authentication required"))
		return
	}

	var req setPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		apierr.WriteJSON(w, apierr.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	if req.Password == "" {
		apierr.WriteJSON(w, apierr.InvalidInput("password is required"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("hash password", err))
		return
	}
	if err := s.catalog.SetPasswordHash(r.Context(), authCtx.User.ID, hash); err != nil {
		apierr.WriteJSON(w, apierr.Internal("set password", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
