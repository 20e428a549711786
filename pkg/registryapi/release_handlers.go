package registryapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pkgforge/registry/pkg/apierr"
	"github.com/pkgforge/registry/pkg/audit"
	"github.com/pkgforge/registry/pkg/blobstore"
	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/middleware"
	"github.com/pkgforge/registry/pkg/semver"
)

// maxMultipartMemory bounds how much of a publish request's non-file form
// fields are buffered in memory before spilling to a temp file; the file
// part itself streams straight into the blobstore regardless.
const maxMultipartMemory = 1 << 20 // 1 MiB

func (s *Server) handlePublishRelease(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, repo := vars["owner"], vars["repo"]
	if !validIdentifier(owner) || !validIdentifier(repo) {
		apierr.WriteJSON(w, apierr.InvalidInput("owner and repo must be 1-64 lowercase alphanumeric characters"))
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		apierr.WriteJSON(w, apierr.UnsupportedMediaType("request must be multipart/form-data: "+err.Error()))
		return
	}

	tag := r.FormValue("tag_name")
	if tag == "" {
		apierr.WriteJSON(w, apierr.InvalidInput("tag_name is required"))
		return
	}
	if _, err := semver.Parse(tag); err != nil {
		apierr.WriteJSON(w, apierr.InvalidInput("tag_name must be valid semver: "+err.Error()))
		return
	}

	draft, _ := strconv.ParseBool(r.FormValue("draft"))
	prerelease, _ := strconv.ParseBool(r.FormValue("prerelease"))

	file, _, err := r.FormFile("file")
	if err != nil {
		apierr.WriteJSON(w, apierr.InvalidInput("file part is required: "+err.Error()))
		return
	}
	defer file.Close()

	pkg, err := s.catalog.GetPackage(r.Context(), owner, repo)
	if isNotFound(err) {
		pkg, err = s.catalog.CreatePackage(r.Context(), owner, repo)
	}
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("resolve package", err))
		return
	}

	if _, err := s.catalog.GetRelease(r.Context(), owner, repo, tag); err == nil {
		apierr.WriteJSON(w, apierr.AlreadyExists("release "+tag+" already exists"))
		return
	} else if !isNotFound(err) {
		apierr.WriteJSON(w, apierr.Internal("check existing release", err))
		return
	}

	meta, err := s.blobs.Store(r.Context(), owner, repo, tag, file)
	if err != nil {
		if errors.Is(err, blobstore.ErrTooLarge) {
			apierr.WriteJSON(w, apierr.New(apierr.KindPayloadTooLarge, "archive exceeds the configured size limit"))
			return
		}
		apierr.WriteJSON(w, apierr.Internal("store archive", err))
		return
	}

	rel, err := s.catalog.CreateRelease(r.Context(), &catalog.Release{
		PackageID:   pkg.ID,
		Tag:         tag,
		Name:        r.FormValue("name"),
		Body:        r.FormValue("body"),
		Fingerprint: meta.Fingerprint,
		SizeBytes:   meta.SizeBytes,
		Draft:       draft,
		Prerelease:  prerelease,
	})
	if err != nil {
		apierr.WriteJSON(w, apierr.Internal("create release", err))
		return
	}

	if !draft {
		rel, err = s.catalog.PublishRelease(r.Context(), owner, repo, tag)
		if err != nil {
			apierr.WriteJSON(w, apierr.Internal("publish release", err))
			return
		}
	}

	if s.mirror != nil {
		go s.mirrorUpload(owner, repo, tag)
	}

	if authCtx := middleware.GetAuthContext(r); authCtx != nil {
		s.audit.LogDataMutation(r.Context(), audit.EventTypeDataReleaseCreate, &authCtx.User.ID,
			audit.ResourceTypeRelease, owner+"/"+repo+"@"+tag, nil, "release published")
	}

	writeJSON(w, http.StatusCreated, newReleaseJSON(owner, repo, rel))
}

// mirrorUpload best-effort copies a just-published archive to the S3 backup
// mirror. Failures are logged, not surfaced — the local blobstore write
// already succeeded and is the source of truth for downloads.
func (s *Server) mirrorUpload(owner, repo, tag string) {
	body, _, err := s.blobs.Retrieve(context.Background(), owner, repo, tag)
	if err != nil {
		s.logger.WithError(err).Warn("mirror upload: re-read local blob failed")
		return
	}
	defer body.Close()

	if err := s.mirror.Upload(context.Background(), owner, repo, tag, body); err != nil {
		s.logger.WithError(err).Warn("mirror upload failed")
	}
}

func (s *Server) handleDeleteRelease(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, repo, tag := vars["owner"], vars["repo"], vars["tag"]

	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || !authCtx.HasScope(catalog.ScopePackageDelete) {
		apierr.WriteJSON(w, apierr.Forbidden("package:delete scope required"))
		return
	}

	if err := s.catalog.DeleteRelease(r.Context(), owner, repo, tag); err != nil {
		if isNotFound(err) {
			apierr.WriteJSON(w, apierr.NotFound("release not found"))
			return
		}
		apierr.WriteJSON(w, apierr.Internal("delete release", err))
		return
	}

	s.audit.LogDataMutation(r.Context(), audit.EventTypeDataReleaseDelete, &authCtx.User.ID,
		audit.ResourceTypeRelease, owner+"/"+repo+"@"+tag, nil, "release deleted")

	if err := s.blobs.Delete(r.Context(), owner, repo, tag); err != nil {
		s.logger.WithError(err).Warn("delete blob after release deletion failed")
	}
	if s.mirror != nil {
		go func() {
			if err := s.mirror.Delete(context.Background(), owner, repo, tag); err != nil {
				s.logger.WithError(err).Warn("delete mirror blob after release deletion failed")
			}
		}()
	}

	w.WriteHeader(http.StatusNoContent)
}
