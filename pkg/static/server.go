package static

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
)

// spaRoutePrefixes is the allowlist of client-routed paths that serve the
// SPA's index document instead of a 404.
var spaRoutePrefixes = []string{"/", "/packages", "/search", "/trending", "/docs", "/auth"}

// assetExtensions maps a file extension to its Content-Type, restricting
// what the asset handler will serve.
var assetExtensions = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".wasm": "application/wasm",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".ico":  "image/x-icon",
}

// Server serves the SPA index document and its static assets.
type Server struct {
	root      string
	indexPath string
}

// NewServer builds a static asset server rooted at root, whose index
// document is indexPath (e.g. filepath.Join(root, "index.html")).
func NewServer(root string) *Server {
	return &Server{
		root:      root,
		indexPath: filepath.Join(root, "index.html"),
	}
}

// RegisterRoutes attaches the SPA fallback and asset routes to router,
// satisfying registryapi.RouteRegistrar.
func (s *Server) RegisterRoutes(router *mux.Router) {
	for _, prefix := range spaRoutePrefixes {
		if prefix == "/" {
			router.HandleFunc("/", s.serveIndex).Methods(http.MethodGet)
			continue
		}
		router.PathPrefix(prefix).HandlerFunc(s.serveIndex).Methods(http.MethodGet)
	}

	router.PathPrefix("/").HandlerFunc(s.serveAsset).Methods(http.MethodGet)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.indexPath)
}

// serveAsset serves a single file under the asset root by extension,
// rejecting any path that escapes root via "..".
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	clean := filepath.Clean(r.URL.Path)
	if strings.Contains(clean, "..") {
		http.NotFound(w, r)
		return
	}

	ext := strings.ToLower(filepath.Ext(clean))
	contentType, ok := assetExtensions[ext]
	if !ok {
		http.NotFound(w, r)
		return
	}

	fullPath := filepath.Join(s.root, clean)
	if !strings.HasPrefix(fullPath, s.root) {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, fullPath)
}
