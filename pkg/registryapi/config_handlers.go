package registryapi

import (
	"net/http"
	"time"

	"github.com/pkgforge/registry/pkg/apierr"
)

func (s *Server) handleRegistryConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RegistryConfigJSON{
		Name:           s.cfg.Server.RegistryName,
		Domain:         s.cfg.Server.Domain,
		MaxPackageSize: s.cfg.Blobstore.MaxPackageSize,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	features := []string{"packages", "releases", "search", "aliases", "auth"}

	if err := s.catalog.HealthCheck(r.Context()); err != nil {
		status = "degraded"
	}
	if err := s.blobs.HealthCheck(r.Context()); err != nil {
		status = "degraded"
	}
	if s.discovery != nil {
		features = append(features, "discovery")
	}
	if s.mirror != nil {
		features = append(features, "backup")
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthJSON{
		Status:    status,
		Timestamp: unixSeconds(time.Now()),
		Version:   Version,
		Features:  features,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.GetStats(r.Context())
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("get stats", err))
		return
	}
	writeJSON(w, http.StatusOK, newStatsJSON(stats))
}
