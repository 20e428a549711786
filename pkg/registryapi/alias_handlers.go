package registryapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pkgforge/registry/pkg/apierr"
	"github.com/pkgforge/registry/pkg/catalog"
)

func (s *Server) handleResolveAlias(w http.ResponseWriter, r *http.Request) {
	shortName := mux.Vars(r)["short_name"]

	pkg, err := s.catalog.ResolveAlias(r.Context(), shortName)
	if err != nil {
		if isNotFound(err) {
			apierr.WriteJSON(w, apierr.NotFound("alias not found"))
			return
		}
		apierr.WriteJSON(w, apierr.Internal("resolve alias", err))
		return
	}
	writeJSON(w, http.StatusOK, newPackageJSON(pkg))
}

type putAliasRequest struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (s *Server) handlePutAlias(w http.ResponseWriter, r *http.Request) {
	shortName := mux.Vars(r)["short_name"]
	if !validIdentifier(shortName) {
		apierr.WriteJSON(w, apierr.InvalidInput("short_name must be 1-64 lowercase alphanumeric characters"))
		return
	}

	var req putAliasRequest
	if err := decodeJSON(r, &req); err != nil {
		apierr.WriteJSON(w, apierr.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	if !validIdentifier(req.Owner) || !validIdentifier(req.Repo) {
		apierr.WriteJSON(w, apierr.InvalidInput("owner and repo must be 1-64 lowercase alphanumeric characters"))
		return
	}

	if _, err := s.catalog.GetPackage(r.Context(), req.Owner, req.Repo); err != nil {
		writePackageLookupError(w, err)
		return
	}

	alias, err := s.catalog.CreateAlias(r.Context(), shortName, req.Owner, req.Repo)
	if err != nil {
		if errors.Is(err, catalog.ErrAlreadyExists) {
			apierr.WriteJSON(w, apierr.AlreadyExists("alias "+shortName+" already exists"))
			return
		}
		apierr.WriteJSON(w, apierr.Internal("create alias", err))
		return
	}

	writeJSON(w, http.StatusCreated, AliasJSON{
		ShortName: alias.ShortName,
		FullName:  req.Owner + "/" + req.Repo,
		Owner:     req.Owner,
		Repo:      req.Repo,
		CreatedAt: unixSeconds(alias.CreatedAt),
	})
}
