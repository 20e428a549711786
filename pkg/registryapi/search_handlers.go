package registryapi

import (
	"net/http"
	"strconv"

	"github.com/pkgforge/registry/pkg/apierr"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		apierr.WriteJSON(w, apierr.InvalidInput("q is required"))
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), defaultSearchLimit, maxSearchLimit)

	packages, total, err := s.catalog.SearchPackages(r.Context(), q, limit)
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("search packages", err))
		return
	}

	items := make([]PackageJSON, 0, len(packages))
	for _, p := range packages {
		items = append(items, newPackageJSON(p))
	}
	writeJSON(w, http.StatusOK, SearchResultJSON{Items: items, TotalCount: total})
}

func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
