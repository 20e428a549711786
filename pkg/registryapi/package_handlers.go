package registryapi

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pkgforge/registry/pkg/apierr"
)

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, repo := vars["owner"], vars["repo"]
	if !validIdentifier(owner) || !validIdentifier(repo) {
		apierr.WriteJSON(w, apierr.InvalidInput("owner and repo must be 1-64 lowercase alphanumeric characters"))
		return
	}

	pkg, err := s.catalog.GetPackage(r.Context(), owner, repo)
	if err != nil {
		writePackageLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPackageJSON(pkg))
}

func (s *Server) handleListReleases(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, repo := vars["owner"], vars["repo"]

	if _, err := s.catalog.GetPackage(r.Context(), owner, repo); err != nil {
		writePackageLookupError(w, err)
		return
	}

	releases, err := s.catalog.ListReleases(r.Context(), owner, repo)
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("list releases", err))
		return
	}

	out := make([]ReleaseJSON, 0, len(releases))
	for _, rel := range releases {
		out = append(out, newReleaseJSON(owner, repo, rel))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRelease(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, repo, tag := vars["owner"], vars["repo"], vars["tag"]

	rel, err := s.catalog.GetRelease(r.Context(), owner, repo, tag)
	if err != nil {
		if isNotFound(err) {
			apierr.WriteJSON(w, apierr.NotFound("release not found"))
			return
		}
		apierr.WriteJSON(w, apierr.Internal("get release", err))
		return
	}
	writeJSON(w, http.StatusOK, newReleaseJSON(owner, repo, rel))
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, repo := vars["owner"], vars["repo"]

	releases, err := s.catalog.ListReleases(r.Context(), owner, repo)
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("list tags", err))
		return
	}

	tags := make([]string, 0, len(releases))
	for _, rel := range releases {
		if rel.Draft {
			continue
		}
		tags = append(tags, rel.Tag)
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleDownloadRelease(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, repo, tag := vars["owner"], vars["repo"], vars["tag"]

	rel, err := s.catalog.GetRelease(r.Context(), owner, repo, tag)
	if err != nil {
		if isNotFound(err) {
			apierr.WriteJSON(w, apierr.NotFound("release not found"))
			return
		}
		apierr.WriteJSON(w, apierr.Internal("get release", err))
		return
	}
	if rel.Draft {
		apierr.WriteJSON(w, apierr.NotFound("release not found"))
		return
	}

	body, size, err := s.blobs.Retrieve(r.Context(), owner, repo, tag)
	if err != nil {
		s.downloadFromMirror(w, r, owner, repo, tag, rel)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+repo+`-`+tag+`.zpkg"`)
	w.Header().Set("X-Content-SHA256", rel.Fingerprint)
	w.Header().Set("Content-Length", itoa64(size))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err == nil {
		s.recordDownload(rel.ID)
	}
}

func writePackageLookupError(w http.ResponseWriter, err error) {
	if isNotFound(err) {
		apierr.WriteJSON(w, apierr.NotFound("package not found"))
		return
	}
	apierr.WriteJSON(w, apierr.Internal("get package", err))
}
