package registryapi

import (
	"context"
	"strings"
	"time"

	"github.com/pkgforge/registry/pkg/catalog"
)

// fakeCatalog is a small in-memory catalog.Catalog for registryapi handler
// tests, covering enough real behavior (uniqueness, not-found, ownership)
// that handlers exercise their actual branches rather than always hitting
// a stub error.
type fakeCatalog struct {
	nextID   int64
	packages map[string]*catalog.Package // keyed by owner/repo
	releases map[int64][]*catalog.Release
	aliases  map[string]*catalog.Alias
	users    map[int64]*catalog.User
	tokens   map[string]*catalog.APIToken
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		packages: map[string]*catalog.Package{},
		releases: map[int64][]*catalog.Release{},
		aliases:  map[string]*catalog.Alias{},
		users:    map[int64]*catalog.User{},
		tokens:   map[string]*catalog.APIToken{},
	}
}

func (f *fakeCatalog) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeCatalog) CreatePackage(ctx context.Context, owner, repo string) (*catalog.Package, error) {
	key := owner + "/" + repo
	if _, ok := f.packages[key]; ok {
		return nil, catalog.ErrAlreadyExists
	}
	now := time.Now()
	p := &catalog.Package{ID: f.id(), Owner: owner, Repo: repo, FullName: key, CreatedAt: now, UpdatedAt: now}
	f.packages[key] = p
	return p, nil
}

func (f *fakeCatalog) GetPackage(ctx context.Context, owner, repo string) (*catalog.Package, error) {
	if p, ok := f.packages[owner+"/"+repo]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) ListPackages(ctx context.Context, limit, offset int) ([]*catalog.Package, int64, error) {
	var out []*catalog.Package
	for _, p := range f.packages {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeCatalog) DeletePackage(ctx context.Context, owner, repo string) error {
	key := owner + "/" + repo
	if _, ok := f.packages[key]; !ok {
		return catalog.ErrNotFound
	}
	delete(f.packages, key)
	return nil
}

func (f *fakeCatalog) SearchPackages(ctx context.Context, query string, limit int) ([]*catalog.Package, int64, error) {
	var matches []*catalog.Package
	for _, p := range f.packages {
		if strings.Contains(p.FullName, query) {
			matches = append(matches, p)
		}
	}
	total := int64(len(matches))
	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, total, nil
}

func (f *fakeCatalog) CreateRelease(ctx context.Context, r *catalog.Release) (*catalog.Release, error) {
	for _, existing := range f.releases[r.PackageID] {
		if existing.Tag == r.Tag {
			return nil, catalog.ErrAlreadyExists
		}
	}
	rel := *r
	rel.ID = f.id()
	rel.CreatedAt = time.Now()
	f.releases[r.PackageID] = append(f.releases[r.PackageID], &rel)
	return &rel, nil
}

func (f *fakeCatalog) findRelease(owner, repo, tag string) (*catalog.Release, error) {
	p, err := f.GetPackage(context.Background(), owner, repo)
	if err != nil {
		return nil, err
	}
	for _, rel := range f.releases[p.ID] {
		if rel.Tag == tag {
			return rel, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) GetRelease(ctx context.Context, owner, repo, tag string) (*catalog.Release, error) {
	return f.findRelease(owner, repo, tag)
}

func (f *fakeCatalog) GetLatestRelease(ctx context.Context, owner, repo string) (*catalog.Release, error) {
	p, err := f.GetPackage(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	releases := f.releases[p.ID]
	if len(releases) == 0 {
		return nil, catalog.ErrNotFound
	}
	return releases[len(releases)-1], nil
}

func (f *fakeCatalog) ListReleases(ctx context.Context, owner, repo string) ([]*catalog.Release, error) {
	p, err := f.GetPackage(ctx, owner, repo)
	if err != nil {
		return nil, nil
	}
	return f.releases[p.ID], nil
}

func (f *fakeCatalog) PublishRelease(ctx context.Context, owner, repo, tag string) (*catalog.Release, error) {
	rel, err := f.findRelease(owner, repo, tag)
	if err != nil {
		return nil, err
	}
	rel.Draft = false
	now := time.Now()
	rel.PublishedAt = &now
	return rel, nil
}

func (f *fakeCatalog) DeleteRelease(ctx context.Context, owner, repo, tag string) error {
	p, err := f.GetPackage(ctx, owner, repo)
	if err != nil {
		return err
	}
	list := f.releases[p.ID]
	for i, rel := range list {
		if rel.Tag == tag {
			f.releases[p.ID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return catalog.ErrNotFound
}

func (f *fakeCatalog) IncrementDownloadCounts(ctx context.Context, deltas map[int64]int64) error {
	for _, list := range f.releases {
		for _, rel := range list {
			if d, ok := deltas[rel.ID]; ok {
				rel.DownloadCount += d
			}
		}
	}
	return nil
}

func (f *fakeCatalog) CreateAlias(ctx context.Context, shortName, owner, repo string) (*catalog.Alias, error) {
	if _, ok := f.aliases[shortName]; ok {
		return nil, catalog.ErrAlreadyExists
	}
	p, err := f.GetPackage(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	a := &catalog.Alias{ID: f.id(), ShortName: shortName, PackageID: p.ID, CreatedAt: time.Now()}
	f.aliases[shortName] = a
	return a, nil
}

func (f *fakeCatalog) ResolveAlias(ctx context.Context, shortName string) (*catalog.Package, error) {
	a, ok := f.aliases[shortName]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	for _, p := range f.packages {
		if p.ID == a.PackageID {
			return p, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) DeleteAlias(ctx context.Context, shortName string) error {
	if _, ok := f.aliases[shortName]; !ok {
		return catalog.ErrNotFound
	}
	delete(f.aliases, shortName)
	return nil
}

func (f *fakeCatalog) CreateUser(ctx context.Context, username, email string, passwordHash *string) (*catalog.User, error) {
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return nil, catalog.ErrAlreadyExists
		}
	}
	u := &catalog.User{ID: f.id(), Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeCatalog) GetUserByUsername(ctx context.Context, username string) (*catalog.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) GetUserByEmail(ctx context.Context, email string) (*catalog.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) GetUserByID(ctx context.Context, id int64) (*catalog.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) SetPasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	u, ok := f.users[userID]
	if !ok {
		return catalog.ErrNotFound
	}
	u.PasswordHash = &passwordHash
	return nil
}

func (f *fakeCatalog) TouchLastLogin(ctx context.Context, userID int64) error {
	if u, ok := f.users[userID]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

func (f *fakeCatalog) LinkIdentity(ctx context.Context, userID int64, provider, providerUserID, email string) error {
	return nil
}

func (f *fakeCatalog) GetUserByIdentity(ctx context.Context, provider, providerUserID string) (*catalog.User, error) {
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) CreateToken(ctx context.Context, t *catalog.APIToken) (*catalog.APIToken, error) {
	tok := *t
	tok.ID = f.id()
	f.tokens[tok.TokenHash] = &tok
	return &tok, nil
}

func (f *fakeCatalog) GetTokenByHash(ctx context.Context, tokenHash string) (*catalog.APIToken, error) {
	if t, ok := f.tokens[tokenHash]; ok {
		return t, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) ListUserTokens(ctx context.Context, userID int64) ([]*catalog.APIToken, error) {
	var out []*catalog.APIToken
	for _, t := range f.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeCatalog) RevokeToken(ctx context.Context, tokenID int64) error {
	for _, t := range f.tokens {
		if t.ID == tokenID {
			now := time.Now()
			t.RevokedAt = &now
			return nil
		}
	}
	return catalog.ErrNotFound
}

func (f *fakeCatalog) TouchTokenUse(ctx context.Context, tokenID int64) error { return nil }

func (f *fakeCatalog) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeCatalog) GetStats(ctx context.Context) (*catalog.Stats, error) {
	var totalReleases, totalDownloads int64
	for _, list := range f.releases {
		totalReleases += int64(len(list))
		for _, rel := range list {
			totalDownloads += rel.DownloadCount
		}
	}
	return &catalog.Stats{
		TotalPackages:  int64(len(f.packages)),
		TotalReleases:  totalReleases,
		TotalDownloads: totalDownloads,
	}, nil
}

func (f *fakeCatalog) Close() error                          { return nil }
func (f *fakeCatalog) HealthCheck(ctx context.Context) error { return nil }

var _ catalog.Catalog = (*fakeCatalog)(nil)
