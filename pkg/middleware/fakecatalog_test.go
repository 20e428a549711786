package middleware

import (
	"context"
	"time"

	"github.com/pkgforge/registry/pkg/catalog"
)

// fakeCatalog is a minimal in-memory catalog.Catalog for middleware tests.
// Only the users/tokens surface is meaningfully implemented; everything
// else returns ErrNotFound since auth middleware never touches it.
type fakeCatalog struct {
	users  map[int64]*catalog.User
	tokens map[string]*catalog.APIToken // keyed by hash
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{users: map[int64]*catalog.User{}, tokens: map[string]*catalog.APIToken{}}
}

func (f *fakeCatalog) CreatePackage(ctx context.Context, owner, repo string) (*catalog.Package, error) {
	return nil, catalog.ErrNotFound
}
func (f *fakeCatalog) GetPackage(ctx context.Context, owner, repo string) (*catalog.Package, error) {
	return nil, catalog.ErrNotFound
}
func (f *fakeCatalog) ListPackages(ctx context.Context, limit, offset int) ([]*catalog.Package, int64, error) {
	return nil, 0, nil
}
func (f *fakeCatalog) DeletePackage(ctx context.Context, owner, repo string) error {
	return catalog.ErrNotFound
}
func (f *fakeCatalog) SearchPackages(ctx context.Context, query string, limit int) ([]*catalog.Package, int64, error) {
	return nil, 0, nil
}

func (f *fakeCatalog) CreateRelease(ctx context.Context, r *catalog.Release) (*catalog.Release, error) {
	return nil, catalog.ErrNotFound
}
func (f *fakeCatalog) GetRelease(ctx context.Context, owner, repo, tag string) (*catalog.Release, error) {
	return nil, catalog.ErrNotFound
}
func (f *fakeCatalog) GetLatestRelease(ctx context.Context, owner, repo string) (*catalog.Release, error) {
	return nil, catalog.ErrNotFound
}
func (f *fakeCatalog) ListReleases(ctx context.Context, owner, repo string) ([]*catalog.Release, error) {
	return nil, nil
}
func (f *fakeCatalog) PublishRelease(ctx context.Context, owner, repo, tag string) (*catalog.Release, error) {
	return nil, catalog.ErrNotFound
}
func (f *fakeCatalog) DeleteRelease(ctx context.Context, owner, repo, tag string) error {
	return catalog.ErrNotFound
}
func (f *fakeCatalog) IncrementDownloadCounts(ctx context.Context, deltas map[int64]int64) error {
	return nil
}

func (f *fakeCatalog) CreateAlias(ctx context.Context, shortName, owner, repo string) (*catalog.Alias, error) {
	return nil, catalog.ErrNotFound
}
func (f *fakeCatalog) ResolveAlias(ctx context.Context, shortName string) (*catalog.Package, error) {
	return nil, catalog.ErrNotFound
}
func (f *fakeCatalog) DeleteAlias(ctx context.Context, shortName string) error {
	return catalog.ErrNotFound
}

func (f *fakeCatalog) CreateUser(ctx context.Context, username, email string, passwordHash *string) (*catalog.User, error) {
	u := &catalog.User{ID: int64(len(f.users) + 1), Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
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
	return nil
}
func (f *fakeCatalog) LinkIdentity(ctx context.Context, userID int64, provider, providerUserID, email string) error {
	return nil
}
func (f *fakeCatalog) GetUserByIdentity(ctx context.Context, provider, providerUserID string) (*catalog.User, error) {
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) CreateToken(ctx context.Context, t *catalog.APIToken) (*catalog.APIToken, error) {
	t.ID = int64(len(f.tokens) + 1)
	f.tokens[t.TokenHash] = t
	return t, nil
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
func (f *fakeCatalog) TouchTokenUse(ctx context.Context, tokenID int64) error {
	return nil
}
func (f *fakeCatalog) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeCatalog) GetStats(ctx context.Context) (*catalog.Stats, error) {
	return &catalog.Stats{}, nil
}

func (f *fakeCatalog) Close() error                          { return nil }
func (f *fakeCatalog) HealthCheck(ctx context.Context) error { return nil }

var _ catalog.Catalog = (*fakeCatalog)(nil)
