// Package sqlite implements pkg/catalog.Catalog on top of a local SQLite
// file. This is the default catalog backend for a single-node deployment
// (DB_PATH pointing at a filesystem path rather than a postgres:// DSN).
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/semver"
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner TEXT NOT NULL,
	repo TEXT NOT NULL,
	full_name TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(owner, repo)
);

CREATE TABLE IF NOT EXISTS releases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	draft INTEGER NOT NULL DEFAULT 1,
	prerelease INTEGER NOT NULL DEFAULT 0,
	published_at DATETIME,
	created_at DATETIME NOT NULL,
	download_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE(package_id, tag)
);

CREATE TABLE IF NOT EXISTS aliases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	short_name TEXT NOT NULL UNIQUE,
	package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT,
	is_admin INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	last_login_at DATETIME
);

CREATE TABLE IF NOT EXISTS linked_identities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider TEXT NOT NULL,
	provider_user_id TEXT NOT NULL,
	email TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(provider, provider_user_id)
);

CREATE TABLE IF NOT EXISTS api_tokens (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	token_hash TEXT NOT NULL DEFAULT '',
	scopes TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME,
	last_used_at DATETIME,
	revoked_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_api_tokens_hash ON api_tokens(token_hash);
CREATE INDEX IF NOT EXISTS idx_releases_package ON releases(package_id);
`

// Catalog implements catalog.Catalog against a SQLite database.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// SQLite permits only one writer at a time; serialize through a single
	// connection so concurrent callers wait in database/sql's pool instead
	// of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying connection, for callers that need to share it
// with another component (pkg/sso's provider storage, pkg/audit's DBLogger).
func (c *Catalog) DB() *sql.DB { return c.db }

func hashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// --- packages ---

func (c *Catalog) CreatePackage(ctx context.Context, owner, repo string) (*catalog.Package, error) {
	now := time.Now().UTC()
	fullName := owner + "/" + repo
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO packages (owner, repo, full_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		owner, repo, fullName, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, catalog.ErrAlreadyExists
		}
		return nil, fmt.Errorf("sqlite: create package: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: create package: %w", err)
	}
	return &catalog.Package{ID: id, Owner: owner, Repo: repo, FullName: fullName, CreatedAt: now, UpdatedAt: now}, nil
}

func (c *Catalog) GetPackage(ctx context.Context, owner, repo string) (*catalog.Package, error) {
	p := &catalog.Package{}
	err := c.db.QueryRowContext(ctx,
		`SELECT id, owner, repo, full_name, created_at, updated_at FROM packages WHERE owner = ? AND repo = ?`,
		owner, repo,
	).Scan(&p.ID, &p.Owner, &p.Repo, &p.FullName, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get package: %w", err)
	}
	return p, nil
}

func (c *Catalog) ListPackages(ctx context.Context, limit, offset int) ([]*catalog.Package, int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count packages: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, owner, repo, full_name, created_at, updated_at FROM packages ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: list packages: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Package
	for rows.Next() {
		p := &catalog.Package{}
		if err := rows.Scan(&p.ID, &p.Owner, &p.Repo, &p.FullName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scan package: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (c *Catalog) SearchPackages(ctx context.Context, query string, limit int) ([]*catalog.Package, int64, error) {
	like := "%" + query + "%"
	var total int64
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM packages WHERE full_name LIKE ? OR owner LIKE ? OR repo LIKE ?`,
		like, like, like,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count search matches: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT p.id, p.owner, p.repo, p.full_name, p.created_at, p.updated_at
		FROM packages p
		LEFT JOIN (
			SELECT package_id, SUM(download_count) AS downloads
			FROM releases GROUP BY package_id
		) d ON d.package_id = p.id
		WHERE p.full_name LIKE ? OR p.owner LIKE ? OR p.repo LIKE ?
		ORDER BY COALESCE(d.downloads, 0) DESC, p.updated_at DESC
		LIMIT ?`,
		like, like, like, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: search packages: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Package
	for rows.Next() {
		p := &catalog.Package{}
		if err := rows.Scan(&p.ID, &p.Owner, &p.Repo, &p.FullName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scan search result: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (c *Catalog) DeletePackage(ctx context.Context, owner, repo string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM packages WHERE owner = ? AND repo = ?`, owner, repo)
	if err != nil {
		return fmt.Errorf("sqlite: delete package: %w", err)
	}
	return checkAffected(res)
}

// --- releases ---

func (c *Catalog) CreateRelease(ctx context.Context, r *catalog.Release) (*catalog.Release, error) {
	now := time.Now().UTC()
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO releases (package_id, tag, name, body, fingerprint, size_bytes, draft, prerelease, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PackageID, r.Tag, r.Name, r.Body, r.Fingerprint, r.SizeBytes, boolToInt(r.Draft), boolToInt(r.Prerelease), now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, catalog.ErrAlreadyExists
		}
		return nil, fmt.Errorf("sqlite: create release: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: create release: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	return r, nil
}

func (c *Catalog) GetRelease(ctx context.Context, owner, repo, tag string) (*catalog.Release, error) {
	r := &catalog.Release{}
	var draft, prerelease int
	var publishedAt sql.NullTime
	err := c.db.QueryRowContext(ctx, `
		SELECT r.id, r.package_id, r.tag, r.name, r.body, r.fingerprint, r.size_bytes, r.draft, r.prerelease,
		       r.published_at, r.created_at, r.download_count
		FROM releases r
		JOIN packages p ON p.id = r.package_id
		WHERE p.owner = ? AND p.repo = ? AND r.tag = ?
	`, owner, repo, tag).Scan(&r.ID, &r.PackageID, &r.Tag, &r.Name, &r.Body, &r.Fingerprint, &r.SizeBytes,
		&draft, &prerelease, &publishedAt, &r.CreatedAt, &r.DownloadCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get release: %w", err)
	}
	r.Draft = draft != 0
	r.Prerelease = prerelease != 0
	if publishedAt.Valid {
		r.PublishedAt = &publishedAt.Time
	}
	return r, nil
}

func (c *Catalog) GetLatestRelease(ctx context.Context, owner, repo string) (*catalog.Release, error) {
	releases, err := c.ListReleases(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	var candidates []*catalog.Release
	for _, r := range releases {
		if !r.Draft && !r.Prerelease {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, catalog.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		vi, erri := semver.Parse(candidates[i].Tag)
		vj, errj := semver.Parse(candidates[j].Tag)
		if erri != nil || errj != nil {
			return candidates[i].Tag < candidates[j].Tag
		}
		return semver.Less(vi, vj)
	})
	return candidates[len(candidates)-1], nil
}

func (c *Catalog) ListReleases(ctx context.Context, owner, repo string) ([]*catalog.Release, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT r.id, r.package_id, r.tag, r.name, r.body, r.fingerprint, r.size_bytes, r.draft, r.prerelease,
		       r.published_at, r.created_at, r.download_count
		FROM releases r
		JOIN packages p ON p.id = r.package_id
		WHERE p.owner = ? AND p.repo = ?
	`, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list releases: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Release
	for rows.Next() {
		r := &catalog.Release{}
		var draft, prerelease int
		var publishedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.PackageID, &r.Tag, &r.Name, &r.Body, &r.Fingerprint, &r.SizeBytes,
			&draft, &prerelease, &publishedAt, &r.CreatedAt, &r.DownloadCount); err != nil {
			return nil, fmt.Errorf("sqlite: scan release: %w", err)
		}
		r.Draft = draft != 0
		r.Prerelease = prerelease != 0
		if publishedAt.Valid {
			r.PublishedAt = &publishedAt.Time
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortReleasesBySemverDesc(out)
	return out, nil
}

// sortReleasesBySemverDesc orders releases newest-first by semver precedence,
// the same fallback-to-tag comparison GetLatestRelease uses for tags that
// don't parse as semver.
func sortReleasesBySemverDesc(releases []*catalog.Release) {
	sort.Slice(releases, func(i, j int) bool {
		vi, erri := semver.Parse(releases[i].Tag)
		vj, errj := semver.Parse(releases[j].Tag)
		if erri != nil || errj != nil {
			return releases[i].Tag > releases[j].Tag
		}
		return semver.Less(vj, vi)
	})
}

func (c *Catalog) PublishRelease(ctx context.Context, owner, repo, tag string) (*catalog.Release, error) {
	now := time.Now().UTC()
	res, err := c.db.ExecContext(ctx, `
		UPDATE releases SET draft = 0, published_at = ?
		WHERE published_at IS NULL AND id = (
			SELECT r.id FROM releases r JOIN packages p ON p.id = r.package_id
			WHERE p.owner = ? AND p.repo = ? AND r.tag = ?
		)
	`, now, owner, repo, tag)
	if err != nil {
		return nil, fmt.Errorf("sqlite: publish release: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return nil, err
	}
	return c.GetRelease(ctx, owner, repo, tag)
}

func (c *Catalog) DeleteRelease(ctx context.Context, owner, repo, tag string) error {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM releases WHERE id = (
			SELECT r.id FROM releases r JOIN packages p ON p.id = r.package_id
			WHERE p.owner = ? AND p.repo = ? AND r.tag = ?
		)
	`, owner, repo, tag)
	if err != nil {
		return fmt.Errorf("sqlite: delete release: %w", err)
	}
	return checkAffected(res)
}

func (c *Catalog) IncrementDownloadCounts(ctx context.Context, deltas map[int64]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE releases SET download_count = download_count + ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare increment: %w", err)
	}
	defer stmt.Close()

	for id, delta := range deltas {
		if _, err := stmt.ExecContext(ctx, delta, id); err != nil {
			return fmt.Errorf("sqlite: increment download count for %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// --- aliases ---

func (c *Catalog) CreateAlias(ctx context.Context, shortName, owner, repo string) (*catalog.Alias, error) {
	pkg, err := c.GetPackage(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO aliases (short_name, package_id, created_at) VALUES (?, ?, ?)`,
		shortName, pkg.ID, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, catalog.ErrAlreadyExists
		}
		return nil, fmt.Errorf("sqlite: create alias: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: create alias: %w", err)
	}
	return &catalog.Alias{ID: id, ShortName: shortName, PackageID: pkg.ID, CreatedAt: now}, nil
}

func (c *Catalog) ResolveAlias(ctx context.Context, shortName string) (*catalog.Package, error) {
	p := &catalog.Package{}
	err := c.db.QueryRowContext(ctx, `
		SELECT p.id, p.owner, p.repo, p.full_name, p.created_at, p.updated_at
		FROM aliases a JOIN packages p ON p.id = a.package_id
		WHERE a.short_name = ?
	`, shortName).Scan(&p.ID, &p.Owner, &p.Repo, &p.FullName, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: resolve alias: %w", err)
	}
	return p, nil
}

func (c *Catalog) DeleteAlias(ctx context.Context, shortName string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM aliases WHERE short_name = ?`, shortName)
	if err != nil {
		return fmt.Errorf("sqlite: delete alias: %w", err)
	}
	return checkAffected(res)
}

// --- users ---

func (c *Catalog) CreateUser(ctx context.Context, username, email string, passwordHash *string) (*catalog.User, error) {
	now := time.Now().UTC()
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, catalog.ErrAlreadyExists
		}
		return nil, fmt.Errorf("sqlite: create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: create user: %w", err)
	}
	return &catalog.User{ID: id, Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func scanUser(row interface{ Scan(...any) error }) (*catalog.User, error) {
	u := &catalog.User{}
	var passwordHash sql.NullString
	var isAdmin int
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.Email, &passwordHash, &isAdmin, &u.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan user: %w", err)
	}
	if passwordHash.Valid {
		u.PasswordHash = &passwordHash.String
	}
	u.IsAdmin = isAdmin != 0
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return u, nil
}

const userColumns = `id, username, email, password_hash, is_admin, created_at, last_login_at`

func (c *Catalog) GetUserByUsername(ctx context.Context, username string) (*catalog.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (c *Catalog) GetUserByEmail(ctx context.Context, email string) (*catalog.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (c *Catalog) GetUserByID(ctx context.Context, id int64) (*catalog.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (c *Catalog) SetPasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("sqlite: set password hash: %w", err)
	}
	return checkAffected(res)
}

func (c *Catalog) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := c.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("sqlite: touch last login: %w", err)
	}
	return nil
}

func (c *Catalog) LinkIdentity(ctx context.Context, userID int64, provider, providerUserID, email string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO linked_identities (user_id, provider, provider_user_id, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, provider, providerUserID, email, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrAlreadyExists
		}
		return fmt.Errorf("sqlite: link identity: %w", err)
	}
	return nil
}

func (c *Catalog) GetUserByIdentity(ctx context.Context, provider, providerUserID string) (*catalog.User, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.is_admin, u.created_at, u.last_login_at
		FROM linked_identities li JOIN users u ON u.id = li.user_id
		WHERE li.provider = ? AND li.provider_user_id = ?
	`, provider, providerUserID)
	return scanUser(row)
}

// --- tokens ---

func (c *Catalog) CreateToken(ctx context.Context, t *catalog.APIToken) (*catalog.APIToken, error) {
	now := time.Now().UTC()
	scopes := joinScopes(t.Scopes)
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO api_tokens (user_id, name, kind, token_hash, scopes, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.UserID, t.Name, string(t.Kind), t.TokenHash, scopes, now, t.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: create token: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: create token: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	return t, nil
}

func scanToken(row interface{ Scan(...any) error }) (*catalog.APIToken, error) {
	t := &catalog.APIToken{}
	var scopes string
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Kind, &t.TokenHash, &scopes, &t.CreatedAt,
		&expiresAt, &lastUsedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan token: %w", err)
	}
	t.Scopes = splitScopes(scopes)
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		t.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return t, nil
}

const tokenColumns = `id, user_id, name, kind, token_hash, scopes, created_at, expires_at, last_used_at, revoked_at`

func (c *Catalog) GetTokenByHash(ctx context.Context, tokenHash string) (*catalog.APIToken, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE token_hash = ? AND revoked_at IS NULL`, tokenHash)
	return scanToken(row)
}

func (c *Catalog) ListUserTokens(ctx context.Context, userID int64) ([]*catalog.APIToken, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tokens: %w", err)
	}
	defer rows.Close()

	var out []*catalog.APIToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *Catalog) RevokeToken(ctx context.Context, tokenID int64) error {
	res, err := c.db.ExecContext(ctx, `UPDATE api_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), tokenID)
	if err != nil {
		return fmt.Errorf("sqlite: revoke token: %w", err)
	}
	return checkAffected(res)
}

func (c *Catalog) TouchTokenUse(ctx context.Context, tokenID int64) error {
	_, err := c.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), tokenID)
	if err != nil {
		return fmt.Errorf("sqlite: touch token use: %w", err)
	}
	return nil
}

func (c *Catalog) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}

// --- stats ---

func (c *Catalog) GetStats(ctx context.Context) (*catalog.Stats, error) {
	s := &catalog.Stats{}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&s.TotalPackages); err != nil {
		return nil, fmt.Errorf("sqlite: stats packages: %w", err)
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM releases`).Scan(&s.TotalReleases); err != nil {
		return nil, fmt.Errorf("sqlite: stats releases: %w", err)
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(download_count), 0) FROM releases`).Scan(&s.TotalDownloads); err != nil {
		return nil, fmt.Errorf("sqlite: stats downloads: %w", err)
	}
	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	if err := c.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(download_count), 0) FROM releases WHERE created_at >= ?`, dayAgo,
	).Scan(&s.DownloadsToday); err != nil {
		return nil, fmt.Errorf("sqlite: stats downloads today: %w", err)
	}
	return s, nil
}

// --- helpers ---

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func joinScopes(scopes []catalog.Scope) string {
	parts := make([]string, len(scopes))
	for i, s := range scopes {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func splitScopes(s string) []catalog.Scope {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]catalog.Scope, len(parts))
	for i, p := range parts {
		out[i] = catalog.Scope(p)
	}
	return out
}

var _ catalog.Catalog = (*Catalog)(nil)
