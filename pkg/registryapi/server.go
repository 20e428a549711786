package registryapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/pkgforge/registry/pkg/audit"
	"github.com/pkgforge/registry/pkg/auth"
	"github.com/pkgforge/registry/pkg/blobstore"
	"github.com/pkgforge/registry/pkg/blobstore/backup"
	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/config"
	"github.com/pkgforge/registry/pkg/discovery"
	"github.com/pkgforge/registry/pkg/middleware"
	"github.com/pkgforge/registry/pkg/observability"
)

// Version is the registry's build identifier, reported by the health
// endpoint. Overridden at link time via -ldflags "-X ... Version=...".
var Version = "dev"

// Server is the registry's public HTTP API: packages, releases, search,
// aliases, auth, and the discovery proxy, wired against one *mux.Router.
type Server struct {
	router *mux.Router

	catalog      catalog.Catalog
	blobs        *blobstore.FileSystemStore
	mirror       *backup.Mirror // nil disables S3 backup mirroring
	discovery    *discovery.Client // nil disables the discovery proxy
	authenticator *middleware.Authenticator
	signedIssuer *auth.SignedTokenIssuer
	cfg          *config.Config
	logger       *observability.Logger
	// audit receives a record of auth and publish/delete events. Defaults
	// to a no-op logger (via audit.FromContext on a bare context) until
	// SetAuditLogger wires in a real backend.
	audit audit.Logger

	downloadsMu sync.Mutex
	// pendingDownloads batches per-release download increments in memory;
	// pkg/jobs flushes it to the catalog on a timer rather than taking a
	// write on every single download request.
	pendingDownloads map[int64]int64
}

// NewServer wires the dependencies into a ready-to-serve router.
func NewServer(
	cat catalog.Catalog,
	blobs *blobstore.FileSystemStore,
	mirror *backup.Mirror,
	disco *discovery.Client,
	signedIssuer *auth.SignedTokenIssuer,
	cfg *config.Config,
	logger *observability.Logger,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		catalog:          cat,
		blobs:            blobs,
		mirror:           mirror,
		discovery:        disco,
		authenticator:    middleware.NewAuthenticator(cat, signedIssuer),
		signedIssuer:     signedIssuer,
		cfg:              cfg,
		logger:           logger,
		audit:            audit.FromContext(context.Background()),
		pendingDownloads: make(map[int64]int64),
	}
	s.setupRoutes()
	return s
}

// SetAuditLogger replaces the server's audit sink. Call it once during
// startup wiring, before serving traffic; unset, auth and release handlers
// log to a no-op sink.
func (s *Server) SetAuditLogger(l audit.Logger) {
	s.audit = l
}

// UseMiddleware appends additional middleware to the router, applied to
// every request regardless of whether it's registered before or after
// setupRoutes — gorilla/mux walks the middleware chain at serve time, not
// registration time. Used at startup to wire a rate limiter once the
// deployment's Redis availability is known.
func (s *Server) UseMiddleware(mw mux.MiddlewareFunc) {
	s.router.Use(mw)
}

// RouteRegistrar lets a concern register its own routes against the
// shared router, keeping each feature area's handler set self-contained.
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	optionalAuth := middleware.NewAuthMiddleware(s.authenticator, true)
	requireAuth := middleware.NewAuthMiddleware(s.authenticator, false)

	packages := api.PathPrefix("/packages/{owner}/{repo}").Subrouter()
	packages.Use(optionalAuth.Handler)
	packages.HandleFunc("", s.handleGetPackage).Methods(http.MethodGet)
	packages.HandleFunc("/releases", s.handleListReleases).Methods(http.MethodGet)
	packages.HandleFunc("/releases/{tag}", s.handleGetRelease).Methods(http.MethodGet)
	packages.HandleFunc("/tags", s.handleListTags).Methods(http.MethodGet)
	packages.HandleFunc("/download/{tag}", s.handleDownloadRelease).Methods(http.MethodGet)

	publishRoute := api.PathPrefix("/packages/{owner}/{repo}/releases").Subrouter()
	publishRoute.Use(requireAuth.Handler)
	publishRoute.Handle("", middleware.RequireOwner(ownerFromPathVars)(
		http.HandlerFunc(s.handlePublishRelease))).Methods(http.MethodPost)

	deleteRoute := api.PathPrefix("/packages/{owner}/{repo}/releases/{tag}").Subrouter()
	deleteRoute.Use(requireAuth.Handler)
	deleteRoute.Handle("", middleware.RequireOwner(ownerFromPathVars)(
		http.HandlerFunc(s.handleDeleteRelease))).Methods(http.MethodDelete)

	api.Handle("/search", optionalAuth.Handler(http.HandlerFunc(s.handleSearch))).Methods(http.MethodGet)
	api.Handle("/resolve/{short_name}", optionalAuth.Handler(http.HandlerFunc(s.handleResolveAlias))).Methods(http.MethodGet)

	aliasRoute := api.PathPrefix("/aliases/{short_name}").Subrouter()
	aliasRoute.Use(requireAuth.Handler, middleware.RequireScope(catalog.ScopeAliasWrite))
	aliasRoute.HandleFunc("", s.handlePutAlias).Methods(http.MethodPut)

	api.HandleFunc("/registry/config", s.handleRegistryConfig).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	if s.discovery != nil {
		api.HandleFunc("/discover", s.handleDiscoverSearch).Methods(http.MethodGet)
		api.HandleFunc("/trending", s.handleDiscoverTrending).Methods(http.MethodGet)
		api.HandleFunc("/browse", s.handleDiscoverBrowse).Methods(http.MethodGet)
	}

	authRoute := api.PathPrefix("/auth").Subrouter()
	authRoute.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	authRoute.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	meRoute := authRoute.PathPrefix("").Subrouter()
	meRoute.Use(requireAuth.Handler)
	meRoute.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	meRoute.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	meRoute.HandleFunc("/password", s.handleSetPassword).Methods(http.MethodPost)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// RegisterRoutes lets a caller (e.g. pkg/static's SPA fallback) attach
// additional routes to the same router after API routes are registered.
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func ownerFromPathVars(r *http.Request) string {
	return mux.Vars(r)["owner"]
}

func requestLogger(r *http.Request, logger *observability.Logger) *observability.Logger {
	l := logger
	if reqID := observability.GetRequestID(r.Context()); reqID != "" {
		l = l.WithField("request_id", reqID)
	}
	return l.WithFields(map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
	})
}

// loggingMiddleware logs one line per request at debug level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestLogger(r, s.logger).Debug("handling request")
		next.ServeHTTP(w, r)
	})
}
