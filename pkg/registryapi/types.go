package registryapi

import (
	"time"

	"github.com/pkgforge/registry/pkg/catalog"
)

// unixSeconds renders t the way every timestamp field in this API's wire
// format is specified: a JSON integer, not json.Encode's default RFC3339
// string.
func unixSeconds(t time.Time) int64 {
	return t.Unix()
}

// unixSecondsPtr is unixSeconds for the optional timestamps (e.g.
// Release.PublishedAt, nil while a release is a draft), preserving
// omitempty behavior on the JSON side.
func unixSecondsPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	u := t.Unix()
	return &u
}

// PackageJSON is the wire shape of a package. catalog.Package
// carries only owner/repo/full_name/timestamps; the upstream-repository
// metadata fields below (description, topics, license, ...) have no backing
// column (see DESIGN.md) and are always reported as their zero value.
type PackageJSON struct {
	Owner           string   `json:"owner"`
	Repo            string   `json:"repo"`
	FullName        string   `json:"full_name"`
	Description     string   `json:"description"`
	Topics          []string `json:"topics"`
	License         string   `json:"license"`
	Homepage        string   `json:"homepage"`
	GithubURL       string   `json:"github_url"`
	StargazersCount int64    `json:"stargazers_count"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
	Private         bool     `json:"private"`
}

func newPackageJSON(p *catalog.Package) PackageJSON {
	return PackageJSON{
		Owner:     p.Owner,
		Repo:      p.Repo,
		FullName:  p.FullName,
		Topics:    []string{},
		CreatedAt: unixSeconds(p.CreatedAt),
		UpdatedAt: unixSeconds(p.UpdatedAt),
	}
}

// ReleaseJSON is the wire shape of a release.
type ReleaseJSON struct {
	ID          int64      `json:"id"`
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	Draft       bool       `json:"draft"`
	Prerelease  bool       `json:"prerelease"`
	CreatedAt   int64      `json:"created_at"`
	PublishedAt *int64     `json:"published_at,omitempty"`
	TarballURL  string     `json:"tarball_url"`
	ZipballURL  string     `json:"zipball_url"`
	DownloadURL string     `json:"download_url"`
	FileSize    int64      `json:"file_size"`
	SHA256      string     `json:"sha256"`
}

func newReleaseJSON(owner, repo string, r *catalog.Release) ReleaseJSON {
	downloadURL := "/api/v1/packages/" + owner + "/" + repo + "/download/" + r.Tag
	return ReleaseJSON{
		ID:          r.ID,
		TagName:     r.Tag,
		Name:        r.Name,
		Body:        r.Body,
		Draft:       r.Draft,
		Prerelease:  r.Prerelease,
		CreatedAt:   unixSeconds(r.CreatedAt),
		PublishedAt: unixSecondsPtr(r.PublishedAt),
		TarballURL:  downloadURL,
		ZipballURL:  downloadURL,
		DownloadURL: downloadURL,
		FileSize:    r.SizeBytes,
		SHA256:      r.Fingerprint,
	}
}

// SearchResultJSON is the wire shape of a search response.
type SearchResultJSON struct {
	Items      []PackageJSON `json:"items"`
	TotalCount int64         `json:"total_count"`
}

// AliasJSON is the wire shape of an alias.
type AliasJSON struct {
	ShortName string `json:"short_name"`
	FullName  string `json:"full_name"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	CreatedAt int64  `json:"created_at"`
	CreatedBy string `json:"created_by,omitempty"`
}

// HealthJSON is the wire shape of the health endpoint.
type HealthJSON struct {
	Status    string   `json:"status"`
	Timestamp int64    `json:"timestamp"`
	Version   string   `json:"version"`
	Features  []string `json:"features"`
}

// RegistryConfigJSON is the wire shape of the read-only registry config
// endpoint. Mutating it at runtime has no route in this API — operators
// change it via the environment and restart (see DESIGN.md's Open
// Questions section).
type RegistryConfigJSON struct {
	Name           string `json:"name"`
	Domain         string `json:"domain"`
	MaxPackageSize int64  `json:"max_package_size"`
}

// StatsJSON is the wire shape of the stats endpoint.
type StatsJSON struct {
	TotalPackages  int64 `json:"total_packages"`
	TotalReleases  int64 `json:"total_releases"`
	TotalDownloads int64 `json:"total_downloads"`
	DownloadsToday int64 `json:"downloads_today"`
}

func newStatsJSON(s *catalog.Stats) StatsJSON {
	return StatsJSON{
		TotalPackages:  s.TotalPackages,
		TotalReleases:  s.TotalReleases,
		TotalDownloads: s.TotalDownloads,
		DownloadsToday: s.DownloadsToday,
	}
}

// UserJSON is the wire shape of an authenticated account, returned by
// register/login/me.
type UserJSON struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt int64  `json:"created_at"`
}

func newUserJSON(u *catalog.User) UserJSON {
	return UserJSON{Username: u.Username, Email: u.Email, IsAdmin: u.IsAdmin, CreatedAt: unixSeconds(u.CreatedAt)}
}

// AuthResponseJSON wraps a bearer token alongside the account it belongs to,
// returned by register/login.
type AuthResponseJSON struct {
	Token string   `json:"token"`
	User  UserJSON `json:"user"`
}
