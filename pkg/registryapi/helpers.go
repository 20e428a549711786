package registryapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/pkgforge/registry/pkg/apierr"
	"github.com/pkgforge/registry/pkg/catalog"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}

// recordDownload buffers a single-release download increment in memory.
// pkg/jobs periodically calls FlushDownloadCounts to persist the batch.
func (s *Server) recordDownload(releaseID int64) {
	s.downloadsMu.Lock()
	defer s.downloadsMu.Unlock()
	s.pendingDownloads[releaseID]++
}

// FlushDownloadCounts drains the in-memory download tally into the catalog.
// Safe to call concurrently with request handling; called on a timer by
// pkg/jobs. Nothing calls it at shutdown, so counts recorded since the last
// scheduled flush are not persisted when the process stops.
func (s *Server) FlushDownloadCounts(ctx context.Context) error {
	s.downloadsMu.Lock()
	if len(s.pendingDownloads) == 0 {
		s.downloadsMu.Unlock()
		return nil
	}
	deltas := s.pendingDownloads
	s.pendingDownloads = make(map[int64]int64)
	s.downloadsMu.Unlock()

	return s.catalog.IncrementDownloadCounts(ctx, deltas)
}

// downloadFromMirror serves a release's bytes from the S3 backup mirror
// when the local filesystem blobstore doesn't have it (e.g. after a disk
// was replaced and restored from backup lazily on first request).
func (s *Server) downloadFromMirror(w http.ResponseWriter, r *http.Request, owner, repo, tag string, rel *catalog.Release) {
	if s.mirror == nil {
		apierr.WriteJSON(w, apierr.NotFound("release archive not found"))
		return
	}

	body, err := s.mirror.Download(r.Context(), owner, repo, tag)
	if err != nil {
		apierr.WriteJSON(w, apierr.NotFound("release archive not found"))
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+repo+`-`+tag+`.zpkg"`)
	w.Header().Set("X-Content-SHA256", rel.Fingerprint)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err == nil {
		s.recordDownload(rel.ID)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, catalog.ErrNotFound)
}
