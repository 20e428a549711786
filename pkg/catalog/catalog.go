// Package catalog defines the registry's metadata store: packages,
// releases, aliases, users, and API tokens. Two backends implement the
// same Catalog interface — pkg/catalog/sqlite for single-node deployments
// and pkg/catalog/postgres for multi-replica deployments — selected at
// startup by the shape of DB_PATH.
package catalog

import (
	"context"
	"errors"
	"time"
)

// Package is a published source module, identified by its owner/repo pair.
type Package struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Repo      string    `json:"repo"`
	FullName  string    `json:"full_name"` // owner/repo, kept denormalized for fast lookups
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Release is one published, tagged artifact of a Package.
type Release struct {
	ID            int64      `json:"id"`
	PackageID     int64      `json:"package_id"`
	Tag           string     `json:"tag"`  // semver 2.0.0, "v"-prefix optional
	Name          string     `json:"name"` // display title, distinct from Tag
	Body          string     `json:"body"` // release notes, markdown
	Fingerprint   string     `json:"fingerprint"` // sha256 of the blob, hex-encoded
	SizeBytes     int64      `json:"size_bytes"`
	Draft         bool       `json:"draft"`
	Prerelease    bool       `json:"prerelease"`
	PublishedAt   *time.Time `json:"published_at,omitempty"` // nil while Draft
	CreatedAt     time.Time  `json:"created_at"`
	DownloadCount int64      `json:"download_count"`
}

// Alias is a short, global name pointing at a specific package.
type Alias struct {
	ID        int64     `json:"id"`
	ShortName string    `json:"short_name"`
	PackageID int64     `json:"package_id"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a registry account, local or federated (or both).
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"` // nil for federated-only accounts
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// LinkedIdentity ties a User to an external SSO provider account.
type LinkedIdentity struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Provider       string    `json:"provider"` // e.g. "github-oidc", "okta-saml"
	ProviderUserID string    `json:"provider_user_id"`
	Email          string    `json:"email"`
	CreatedAt      time.Time `json:"created_at"`
}

// Scope is a capability granted to an API token.
type Scope string

const (
	ScopePackageRead   Scope = "package:read"
	ScopePackageWrite  Scope = "package:write"
	ScopePackageDelete Scope = "package:delete"
	ScopeAliasWrite    Scope = "alias:write"
	ScopeAdmin         Scope = "admin"
)

// TokenKind distinguishes the two bearer-token schemes a token may use.
type TokenKind string

const (
	TokenKindOpaque TokenKind = "opaque" // random 256-bit secret, stored as its SHA-256 hash
	TokenKindSigned TokenKind = "signed" // HMAC-SHA256 self-describing token, nothing stored but metadata
)

// APIToken is a bearer credential belonging to a User.
type APIToken struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	Kind       TokenKind  `json:"kind"`
	TokenHash  string     `json:"-"` // sha256(secret) for opaque tokens; empty for signed
	Scopes     []Scope    `json:"scopes"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Sentinel errors. Backends must return these (or wrap them with %w) rather
// than leaking driver-specific error values, so callers can use errors.Is.
var (
	ErrNotFound      = errors.New("catalog: not found")
	ErrAlreadyExists = errors.New("catalog: already exists")
)

// PackageStore covers package lifecycle operations.
type PackageStore interface {
	CreatePackage(ctx context.Context, owner, repo string) (*Package, error)
	GetPackage(ctx context.Context, owner, repo string) (*Package, error)
	ListPackages(ctx context.Context, limit, offset int) ([]*Package, int64, error)
	DeletePackage(ctx context.Context, owner, repo string) error
	// SearchPackages returns packages whose owner/repo/full_name match query,
	// ordered by total download count (highest first), then most-recently-updated.
	SearchPackages(ctx context.Context, query string, limit int) ([]*Package, int64, error)
}

// ReleaseStore covers release lifecycle and query operations.
type ReleaseStore interface {
	CreateRelease(ctx context.Context, r *Release) (*Release, error)
	GetRelease(ctx context.Context, owner, repo, tag string) (*Release, error)
	// GetLatestRelease returns the highest-precedence, non-draft,
	// non-prerelease release, per semver ordering.
	GetLatestRelease(ctx context.Context, owner, repo string) (*Release, error)
	ListReleases(ctx context.Context, owner, repo string) ([]*Release, error)
	PublishRelease(ctx context.Context, owner, repo, tag string) (*Release, error)
	DeleteRelease(ctx context.Context, owner, repo, tag string) error
	// IncrementDownloadCounts applies a batch of (releaseID -> delta)
	// increments atomically; see pkg/jobs for the flush cadence.
	IncrementDownloadCounts(ctx context.Context, deltas map[int64]int64) error
}

// AliasStore covers the global short-name namespace.
type AliasStore interface {
	CreateAlias(ctx context.Context, shortName, owner, repo string) (*Alias, error)
	ResolveAlias(ctx context.Context, shortName string) (*Package, error)
	DeleteAlias(ctx context.Context, shortName string) error
}

// UserStore covers account management.
type UserStore interface {
	CreateUser(ctx context.Context, username, email string, passwordHash *string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	SetPasswordHash(ctx context.Context, userID int64, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID int64) error

	LinkIdentity(ctx context.Context, userID int64, provider, providerUserID, email string) error
	GetUserByIdentity(ctx context.Context, provider, providerUserID string) (*User, error)
}

// TokenStore covers bearer-token issuance and validation bookkeeping.
type TokenStore interface {
	CreateToken(ctx context.Context, t *APIToken) (*APIToken, error)
	GetTokenByHash(ctx context.Context, tokenHash string) (*APIToken, error)
	ListUserTokens(ctx context.Context, userID int64) ([]*APIToken, error)
	RevokeToken(ctx context.Context, tokenID int64) error
	TouchTokenUse(ctx context.Context, tokenID int64) error
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// Stats summarizes catalog-wide counters, as surfaced by the discovery and
// admin surfaces.
type Stats struct {
	TotalPackages   int64 `json:"total_packages"`
	TotalReleases   int64 `json:"total_releases"`
	TotalDownloads  int64 `json:"total_downloads"`
	DownloadsToday  int64 `json:"downloads_today"`
}

// StatsStore exposes catalog-wide aggregates.
type StatsStore interface {
	GetStats(ctx context.Context) (*Stats, error)
}

// Catalog is the full metadata-store surface the registry API depends on.
type Catalog interface {
	PackageStore
	ReleaseStore
	AliasStore
	UserStore
	TokenStore
	StatsStore

	// Close releases any underlying connections.
	Close() error
	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}
