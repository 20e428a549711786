package sso

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/pkgforge/registry/pkg/auth"
	"github.com/pkgforge/registry/pkg/catalog"
)

// sessionTokenTTL bounds how long a token minted by an SSO login stays
// valid, matching registryapi's local-login session lifetime.
const sessionTokenTTL = 30 * 24 * time.Hour

// defaultScopes are granted to any JIT-provisioned or linked SSO account;
// package:delete and admin are never granted this way.
var defaultScopes = []catalog.Scope{catalog.ScopePackageRead, catalog.ScopePackageWrite, catalog.ScopeAliasWrite}

// Handlers handles SSO-related HTTP requests: provider configuration CRUD
// and the login/callback/logout flow. Provider config lives in its own
// sso_providers table (Storage); account identity and session issuance run
// through the catalog, reusing the same opaque-token scheme as local
// username/password login (registryapi.issueSessionToken).
type Handlers struct {
	storage     *Storage
	factory     *ProviderFactory
	provisioner *UserProvisioner
	tokens      catalog.TokenStore
	baseURL     string
}

// NewHandlers creates a new SSO handlers instance. db backs provider
// configuration storage; users/tokens back account provisioning and
// session issuance.
func NewHandlers(db *sql.DB, users catalog.UserStore, tokens catalog.TokenStore, baseURL string) *Handlers {
	return &Handlers{
		storage:     NewStorage(db),
		factory:     NewProviderFactory(baseURL),
		provisioner: NewUserProvisioner(users),
		tokens:      tokens,
		baseURL:     baseURL,
	}
}

// RegisterRoutes registers SSO routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Provider configuration routes
	router.HandleFunc("/sso/providers", h.listProviders).Methods("GET")
	router.HandleFunc("/sso/providers", h.createProvider).Methods("POST")
	router.HandleFunc("/sso/providers/{name}", h.getProvider).Methods("GET")
	router.HandleFunc("/sso/providers/{name}", h.updateProvider).Methods("PUT")
	router.HandleFunc("/sso/providers/{name}", h.deleteProvider).Methods("DELETE")

	// SSO authentication routes
	router.HandleFunc("/auth/sso/{provider}/login", h.initiateLogin).Methods("GET")
	router.HandleFunc("/auth/sso/{provider}/callback", h.handleCallback).Methods("GET", "POST")

	// SAML metadata endpoint
	router.HandleFunc("/sso/metadata/{provider}", h.getSAMLMetadata).Methods("GET")
}

// listProviders handles GET /sso/providers
func (h *Handlers) listProviders(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"

	providers, err := h.storage.ListProviders(enabledOnly)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for _, p := range providers {
		h.sanitizeProvider(p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(providers)
}

// createProvider handles POST /sso/providers
func (h *Handlers) createProvider(w http.ResponseWriter, r *http.Request) {
	var config ProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if config.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if config.ProviderType == "" {
		http.Error(w, "provider_type is required", http.StatusBadRequest)
		return
	}

	exists, err := h.storage.ProviderExists(config.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if exists {
		http.Error(w, "provider with this name already exists", http.StatusConflict)
		return
	}

	provider, err := h.factory.CreateProvider(&config)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid provider config: %v", err), http.StatusBadRequest)
		return
	}
	if err := provider.ValidateConfig(); err != nil {
		http.Error(w, fmt.Sprintf("invalid provider config: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.storage.CreateProvider(&config); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.sanitizeProvider(&config)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(config)
}

// getProvider handles GET /sso/providers/{name}
func (h *Handlers) getProvider(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	config, err := h.storage.GetProvider(name)
	if err == sql.ErrNoRows {
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.sanitizeProvider(config)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(config)
}

// updateProvider handles PUT /sso/providers/{name}
func (h *Handlers) updateProvider(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	existing, err := h.storage.GetProvider(name)
	if err == sql.ErrNoRows {
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var config ProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	config.ID = existing.ID
	config.Name = existing.Name

	provider, err := h.factory.CreateProvider(&config)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid provider config: %v", err), http.StatusBadRequest)
		return
	}
	if err := provider.ValidateConfig(); err != nil {
		http.Error(w, fmt.Sprintf("invalid provider config: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.storage.UpdateProvider(&config); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.sanitizeProvider(&config)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(config)
}

// deleteProvider handles DELETE /sso/providers/{name}
func (h *Handlers) deleteProvider(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	if err := h.storage.DeleteProvider(name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// initiateLogin handles GET /auth/sso/{provider}/login
func (h *Handlers) initiateLogin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	providerName := vars["provider"]

	config, err := h.storage.GetProvider(providerName)
	if err == sql.ErrNoRows {
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !config.Enabled {
		http.Error(w, "provider is disabled", http.StatusForbidden)
		return
	}

	provider, err := h.factory.CreateProvider(config)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     "sso_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "sso_provider",
		Value:    providerName,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})

	if returnURL := r.URL.Query().Get("return_url"); returnURL != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     "sso_return_url",
			Value:    returnURL,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   600,
		})
	}

	if err := provider.InitiateLogin(w, r, state); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// handleCallback handles GET/POST /auth/sso/{provider}/callback. On
// success it mints the same opaque session token local login uses and
// redirects the browser back to the SPA with the token in the URL
// fragment, where client-side code lifts it into storage (the fragment
// never reaches the server on the next request, unlike a query string).
func (h *Handlers) handleCallback(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	providerName := vars["provider"]

	stateCookie, err := r.Cookie("sso_state")
	if err != nil {
		http.Error(w, "missing state cookie", http.StatusBadRequest)
		return
	}

	stateParam := r.URL.Query().Get("state")
	if r.Method == "POST" {
		stateParam = r.FormValue("RelayState") // SAML uses RelayState
	}
	if stateParam != stateCookie.Value {
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	config, err := h.storage.GetProvider(providerName)
	if err == sql.ErrNoRows {
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	provider, err := h.factory.CreateProvider(config)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ssoUser, err := provider.HandleCallback(w, r)
	if err != nil {
		http.Error(w, fmt.Sprintf("authentication failed: %v", err), http.StatusUnauthorized)
		return
	}

	user, err := h.provisioner.ProvisionUser(r.Context(), ssoUser, config)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to provision user: %v", err), http.StatusInternalServerError)
		return
	}

	token, err := h.issueSessionToken(r.Context(), user)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "sso_state", MaxAge: -1, Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "sso_provider", MaxAge: -1, Path: "/"})

	returnURL := "/auth"
	if returnCookie, err := r.Cookie("sso_return_url"); err == nil {
		returnURL = returnCookie.Value
		http.SetCookie(w, &http.Cookie{Name: "sso_return_url", MaxAge: -1, Path: "/"})
	}

	http.Redirect(w, r, returnURL+"#token="+url.QueryEscape(token), http.StatusFound)
}

// issueSessionToken mints an opaque, revocable session token for user,
// mirroring registryapi.issueSessionToken so SSO-authenticated sessions
// are indistinguishable from locally-authenticated ones to the rest of
// the API surface.
func (h *Handlers) issueSessionToken(ctx context.Context, user *catalog.User) (string, error) {
	plaintext, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().Add(sessionTokenTTL)

	_, err = h.tokens.CreateToken(ctx, &catalog.APIToken{
		UserID:    user.ID,
		Name:      "sso-session",
		Kind:      catalog.TokenKindOpaque,
		TokenHash: hash,
		Scopes:    defaultScopes,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		return "", err
	}

	return plaintext, nil
}

// getSAMLMetadata handles GET /sso/metadata/{provider}
func (h *Handlers) getSAMLMetadata(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	providerName := vars["provider"]

	config, err := h.storage.GetProvider(providerName)
	if err == sql.ErrNoRows {
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if config.ProviderType != ProviderTypeSAML {
		http.Error(w, "provider is not SAML", http.StatusBadRequest)
		return
	}

	provider, err := h.factory.CreateProvider(config)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	samlProvider, ok := provider.(*SAMLProvider)
	if !ok {
		http.Error(w, "provider is not SAML", http.StatusInternalServerError)
		return
	}

	metadata, err := samlProvider.GetMetadata()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write(metadata)
}

// sanitizeProvider removes sensitive information from provider config
func (h *Handlers) sanitizeProvider(config *ProviderConfig) {
	if config.SAMLConfig != nil {
		config.SAMLConfig.PrivateKey = ""
	}
	if config.OAuth2Config != nil {
		config.OAuth2Config.ClientSecret = ""
	}
	if config.OIDCConfig != nil {
		config.OIDCConfig.ClientSecret = ""
	}
}
