package registryapi

import (
	"errors"
	"net/http"

	"github.com/pkgforge/registry/pkg/apierr"
)

// Discovery proxy handlers forward to the optional external discovery
// provider (pkg/discovery); when s.discovery is nil these routes are never
// registered (see setupRoutes).

func (s *Server) handleDiscoverSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		apierr.WriteJSON(w, apierr.InvalidInput("q is required"))
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), defaultSearchLimit, maxSearchLimit)
	packages, err := s.discovery.Search(r.Context(), q, limit)
	s.writeDiscoveryResult(w, packages, err)
}

func (s *Server) handleDiscoverTrending(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	limit := parseLimit(r.URL.Query().Get("limit"), defaultSearchLimit, maxSearchLimit)
	packages, err := s.discovery.Trending(r.Context(), category, limit)
	s.writeDiscoveryResult(w, packages, err)
}

func (s *Server) handleDiscoverBrowse(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	limit := parseLimit(r.URL.Query().Get("limit"), defaultSearchLimit, maxSearchLimit)
	packages, err := s.discovery.Browse(r.Context(), category, limit)
	s.writeDiscoveryResult(w, packages, err)
}

func (s *Server) writeDiscoveryResult(w http.ResponseWriter, packages interface{}, err error) {
	if err != nil {
		var deadline interface{ Timeout() bool }
		if errors.As(err, &deadline) && deadline.Timeout() {
			apierr.WriteJSON(w, apierr.New(apierr.KindBadGateway, "discovery provider timed out"))
			return
		}
		apierr.WriteJSON(w, apierr.BadGateway("discovery provider request failed", err))
		return
	}
	writeJSON(w, http.StatusOK, packages)
}
