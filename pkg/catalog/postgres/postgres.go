// Package postgres implements pkg/catalog.Catalog against PostgreSQL, with
// primary/replica connection routing for multi-node deployments (DB_PATH set
// to a postgres:// DSN, optionally with DB_REPLICA_URLS).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/observability"
	"github.com/pkgforge/registry/pkg/semver"
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	id SERIAL PRIMARY KEY,
	owner TEXT NOT NULL,
	repo TEXT NOT NULL,
	full_name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE(owner, repo)
);

CREATE TABLE IF NOT EXISTS releases (
	id SERIAL PRIMARY KEY,
	package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	draft BOOLEAN NOT NULL DEFAULT TRUE,
	prerelease BOOLEAN NOT NULL DEFAULT FALSE,
	published_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	download_count BIGINT NOT NULL DEFAULT 0,
	UNIQUE(package_id, tag)
);

CREATE TABLE IF NOT EXISTS aliases (
	id SERIAL PRIMARY KEY,
	short_name TEXT NOT NULL UNIQUE,
	package_id INTEGER NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	last_login_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS linked_identities (
	id SERIAL PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider TEXT NOT NULL,
	provider_user_id TEXT NOT NULL,
	email TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(provider, provider_user_id)
);

CREATE TABLE IF NOT EXISTS api_tokens (
	id SERIAL PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	token_hash TEXT NOT NULL DEFAULT '',
	scopes TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	last_used_at TIMESTAMPTZ,
	revoked_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_api_tokens_hash ON api_tokens(token_hash);
CREATE INDEX IF NOT EXISTS idx_releases_package ON releases(package_id);
`

// Catalog implements catalog.Catalog against PostgreSQL. Writes and
// strongly-consistent reads go to the primary; list/get operations that can
// tolerate replica lag are routed through the ConnectionManager's
// round-robin replica selection.
type Catalog struct {
	conn   *ConnectionManager
	logger *observability.Logger
}

// Open connects to the primary at primaryURL plus each replica in
// replicaURLs and applies the schema against the primary.
func Open(primaryURL string, replicaURLs []string, logger *observability.Logger) (*Catalog, error) {
	conn, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL:  primaryURL,
		ReplicaURLs: replicaURLs,
		MaxConns:    20,
		MinConns:    2,
		Timeout:     10 * time.Second,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}, logger)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Primary().Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &Catalog{conn: conn, logger: logger}, nil
}

func (c *Catalog) Close() error { return c.conn.Close() }

func (c *Catalog) HealthCheck(ctx context.Context) error { return c.conn.HealthCheck(ctx) }

// DB returns the primary connection, for callers that need to share it
// with another component (pkg/sso's provider storage, pkg/audit's DBLogger).
func (c *Catalog) DB() *sql.DB { return c.conn.Primary() }

// --- packages ---

func (c *Catalog) CreatePackage(ctx context.Context, owner, repo string) (*catalog.Package, error) {
	now := time.Now().UTC()
	fullName := owner + "/" + repo
	p := &catalog.Package{Owner: owner, Repo: repo, FullName: fullName, CreatedAt: now, UpdatedAt: now}
	err := c.conn.Primary().QueryRowContext(ctx, `
		INSERT INTO packages (owner, repo, full_name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, owner, repo, fullName, now, now).Scan(&p.ID)
	if isUniqueViolation(err) {
		return nil, catalog.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: create package: %w", err)
	}
	return p, nil
}

func (c *Catalog) GetPackage(ctx context.Context, owner, repo string) (*catalog.Package, error) {
	p := &catalog.Package{}
	err := c.conn.Replica().QueryRowContext(ctx,
		`SELECT id, owner, repo, full_name, created_at, updated_at FROM packages WHERE owner = $1 AND repo = $2`,
		owner, repo,
	).Scan(&p.ID, &p.Owner, &p.Repo, &p.FullName, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get package: %w", err)
	}
	return p, nil
}

func (c *Catalog) ListPackages(ctx context.Context, limit, offset int) ([]*catalog.Package, int64, error) {
	var total int64
	if err := c.conn.Replica().QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count packages: %w", err)
	}

	rows, err := c.conn.Replica().QueryContext(ctx,
		`SELECT id, owner, repo, full_name, created_at, updated_at FROM packages ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list packages: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Package
	for rows.Next() {
		p := &catalog.Package{}
		if err := rows.Scan(&p.ID, &p.Owner, &p.Repo, &p.FullName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("postgres: scan package: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (c *Catalog) SearchPackages(ctx context.Context, query string, limit int) ([]*catalog.Package, int64, error) {
	like := "%" + query + "%"
	db := c.conn.Replica()

	var total int64
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM packages WHERE full_name ILIKE $1 OR owner ILIKE $1 OR repo ILIKE $1`,
		like,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count search matches: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT p.id, p.owner, p.repo, p.full_name, p.created_at, p.updated_at
		FROM packages p
		LEFT JOIN (
			SELECT package_id, SUM(download_count) AS downloads
			FROM releases GROUP BY package_id
		) d ON d.package_id = p.id
		WHERE p.full_name ILIKE $1 OR p.owner ILIKE $1 OR p.repo ILIKE $1
		ORDER BY COALESCE(d.downloads, 0) DESC, p.updated_at DESC
		LIMIT $2`,
		like, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: search packages: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Package
	for rows.Next() {
		p := &catalog.Package{}
		if err := rows.Scan(&p.ID, &p.Owner, &p.Repo, &p.FullName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("postgres: scan search result: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (c *Catalog) DeletePackage(ctx context.Context, owner, repo string) error {
	res, err := c.conn.Primary().ExecContext(ctx, `DELETE FROM packages WHERE owner = $1 AND repo = $2`, owner, repo)
	if err != nil {
		return fmt.Errorf("postgres: delete package: %w", err)
	}
	return checkAffected(res)
}

// --- releases ---

func (c *Catalog) CreateRelease(ctx context.Context, r *catalog.Release) (*catalog.Release, error) {
	now := time.Now().UTC()
	err := c.conn.Primary().QueryRowContext(ctx, `
		INSERT INTO releases (package_id, tag, name, body, fingerprint, size_bytes, draft, prerelease, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, r.PackageID, r.Tag, r.Name, r.Body, r.Fingerprint, r.SizeBytes, r.Draft, r.Prerelease, now).Scan(&r.ID)
	if isUniqueViolation(err) {
		return nil, catalog.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: create release: %w", err)
	}
	r.CreatedAt = now
	return r, nil
}

func (c *Catalog) GetRelease(ctx context.Context, owner, repo, tag string) (*catalog.Release, error) {
	r := &catalog.Release{}
	var publishedAt sql.NullTime
	err := c.conn.Replica().QueryRowContext(ctx, `
		SELECT r.id, r.package_id, r.tag, r.name, r.body, r.fingerprint, r.size_bytes, r.draft, r.prerelease,
		       r.published_at, r.created_at, r.download_count
		FROM releases r
		JOIN packages p ON p.id = r.package_id
		WHERE p.owner = $1 AND p.repo = $2 AND r.tag = $3
	`, owner, repo, tag).Scan(&r.ID, &r.PackageID, &r.Tag, &r.Name, &r.Body, &r.Fingerprint, &r.SizeBytes,
		&r.Draft, &r.Prerelease, &publishedAt, &r.CreatedAt, &r.DownloadCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get release: %w", err)
	}
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
	rows, err := c.conn.Replica().QueryContext(ctx, `
		SELECT r.id, r.package_id, r.tag, r.name, r.body, r.fingerprint, r.size_bytes, r.draft, r.prerelease,
		       r.published_at, r.created_at, r.download_count
		FROM releases r
		JOIN packages p ON p.id = r.package_id
		WHERE p.owner = $1 AND p.repo = $2
	`, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("postgres: list releases: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Release
	for rows.Next() {
		r := &catalog.Release{}
		var publishedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.PackageID, &r.Tag, &r.Name, &r.Body, &r.Fingerprint, &r.SizeBytes,
			&r.Draft, &r.Prerelease, &publishedAt, &r.CreatedAt, &r.DownloadCount); err != nil {
			return nil, fmt.Errorf("postgres: scan release: %w", err)
		}
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
	res, err := c.conn.Primary().ExecContext(ctx, `
		UPDATE releases SET draft = FALSE, published_at = $1
		WHERE published_at IS NULL AND id = (
			SELECT r.id FROM releases r JOIN packages p ON p.id = r.package_id
			WHERE p.owner = $2 AND p.repo = $3 AND r.tag = $4
		)
	`, now, owner, repo, tag)
	if err != nil {
		return nil, fmt.Errorf("postgres: publish release: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return nil, err
	}
	return c.GetRelease(ctx, owner, repo, tag)
}

func (c *Catalog) DeleteRelease(ctx context.Context, owner, repo, tag string) error {
	res, err := c.conn.Primary().ExecContext(ctx, `
		DELETE FROM releases WHERE id = (
			SELECT r.id FROM releases r JOIN packages p ON p.id = r.package_id
			WHERE p.owner = $1 AND p.repo = $2 AND r.tag = $3
		)
	`, owner, repo, tag)
	if err != nil {
		return fmt.Errorf("postgres: delete release: %w", err)
	}
	return checkAffected(res)
}

func (c *Catalog) IncrementDownloadCounts(ctx context.Context, deltas map[int64]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	tx, err := c.conn.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE releases SET download_count = download_count + $1 WHERE id = $2`)
	if err != nil {
		return fmt.Errorf("postgres: prepare increment: %w", err)
	}
	defer stmt.Close()

	for id, delta := range deltas {
		if _, err := stmt.ExecContext(ctx, delta, id); err != nil {
			return fmt.Errorf("postgres: increment download count for %d: %w", id, err)
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
	a := &catalog.Alias{ShortName: shortName, PackageID: pkg.ID, CreatedAt: now}
	err = c.conn.Primary().QueryRowContext(ctx,
		`INSERT INTO aliases (short_name, package_id, created_at) VALUES ($1, $2, $3) RETURNING id`,
		shortName, pkg.ID, now).Scan(&a.ID)
	if isUniqueViolation(err) {
		return nil, catalog.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: create alias: %w", err)
	}
	return a, nil
}

func (c *Catalog) ResolveAlias(ctx context.Context, shortName string) (*catalog.Package, error) {
	p := &catalog.Package{}
	err := c.conn.Replica().QueryRowContext(ctx, `
		SELECT p.id, p.owner, p.repo, p.full_name, p.created_at, p.updated_at
		FROM aliases a JOIN packages p ON p.id = a.package_id
		WHERE a.short_name = $1
	`, shortName).Scan(&p.ID, &p.Owner, &p.Repo, &p.FullName, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: resolve alias: %w", err)
	}
	return p, nil
}

func (c *Catalog) DeleteAlias(ctx context.Context, shortName string) error {
	res, err := c.conn.Primary().ExecContext(ctx, `DELETE FROM aliases WHERE short_name = $1`, shortName)
	if err != nil {
		return fmt.Errorf("postgres: delete alias: %w", err)
	}
	return checkAffected(res)
}

// --- users ---

func (c *Catalog) CreateUser(ctx context.Context, username, email string, passwordHash *string) (*catalog.User, error) {
	now := time.Now().UTC()
	u := &catalog.User{Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: now}
	err := c.conn.Primary().QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		username, email, passwordHash, now).Scan(&u.ID)
	if isUniqueViolation(err) {
		return nil, catalog.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: create user: %w", err)
	}
	return u, nil
}

func scanUser(row interface{ Scan(...any) error }) (*catalog.User, error) {
	u := &catalog.User{}
	var passwordHash sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.Email, &passwordHash, &u.IsAdmin, &u.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	if passwordHash.Valid {
		u.PasswordHash = &passwordHash.String
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return u, nil
}

const userColumns = `id, username, email, password_hash, is_admin, created_at, last_login_at`

func (c *Catalog) GetUserByUsername(ctx context.Context, username string) (*catalog.User, error) {
	row := c.conn.Replica().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (c *Catalog) GetUserByEmail(ctx context.Context, email string) (*catalog.User, error) {
	row := c.conn.Replica().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (c *Catalog) GetUserByID(ctx context.Context, id int64) (*catalog.User, error) {
	row := c.conn.Replica().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (c *Catalog) SetPasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	res, err := c.conn.Primary().ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("postgres: set password hash: %w", err)
	}
	return checkAffected(res)
}

func (c *Catalog) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := c.conn.Primary().ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("postgres: touch last login: %w", err)
	}
	return nil
}

func (c *Catalog) LinkIdentity(ctx context.Context, userID int64, provider, providerUserID, email string) error {
	_, err := c.conn.Primary().ExecContext(ctx,
		`INSERT INTO linked_identities (user_id, provider, provider_user_id, email, created_at) VALUES ($1, $2, $3, $4, $5)`,
		userID, provider, providerUserID, email, time.Now().UTC())
	if isUniqueViolation(err) {
		return catalog.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: link identity: %w", err)
	}
	return nil
}

func (c *Catalog) GetUserByIdentity(ctx context.Context, provider, providerUserID string) (*catalog.User, error) {
	row := c.conn.Replica().QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.is_admin, u.created_at, u.last_login_at
		FROM linked_identities li JOIN users u ON u.id = li.user_id
		WHERE li.provider = $1 AND li.provider_user_id = $2
	`, provider, providerUserID)
	return scanUser(row)
}

// --- tokens ---

func (c *Catalog) CreateToken(ctx context.Context, t *catalog.APIToken) (*catalog.APIToken, error) {
	now := time.Now().UTC()
	err := c.conn.Primary().QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, name, kind, token_hash, scopes, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, t.UserID, t.Name, string(t.Kind), t.TokenHash, pq.Array(scopesToStrings(t.Scopes)), now, t.ExpiresAt).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: create token: %w", err)
	}
	t.CreatedAt = now
	return t, nil
}

func scanToken(row interface{ Scan(...any) error }) (*catalog.APIToken, error) {
	t := &catalog.APIToken{}
	var scopes []string
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Kind, &t.TokenHash, pq.Array(&scopes), &t.CreatedAt,
		&expiresAt, &lastUsedAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan token: %w", err)
	}
	t.Scopes = stringsToScopes(scopes)
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
	row := c.conn.Replica().QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE token_hash = $1 AND revoked_at IS NULL`, tokenHash)
	return scanToken(row)
}

func (c *Catalog) ListUserTokens(ctx context.Context, userID int64) ([]*catalog.APIToken, error) {
	rows, err := c.conn.Replica().QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
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
	res, err := c.conn.Primary().ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`, time.Now().UTC(), tokenID)
	if err != nil {
		return fmt.Errorf("postgres: revoke token: %w", err)
	}
	return checkAffected(res)
}

func (c *Catalog) TouchTokenUse(ctx context.Context, tokenID int64) error {
	_, err := c.conn.Primary().ExecContext(ctx, `UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), tokenID)
	if err != nil {
		return fmt.Errorf("postgres: touch token use: %w", err)
	}
	return nil
}

func (c *Catalog) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := c.conn.Primary().ExecContext(ctx, `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}

// --- stats ---

func (c *Catalog) GetStats(ctx context.Context) (*catalog.Stats, error) {
	s := &catalog.Stats{}
	db := c.conn.Replica()
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&s.TotalPackages); err != nil {
		return nil, fmt.Errorf("postgres: stats packages: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM releases`).Scan(&s.TotalReleases); err != nil {
		return nil, fmt.Errorf("postgres: stats releases: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(download_count), 0) FROM releases`).Scan(&s.TotalDownloads); err != nil {
		return nil, fmt.Errorf("postgres: stats downloads: %w", err)
	}
	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(download_count), 0) FROM releases WHERE created_at >= $1`, dayAgo,
	).Scan(&s.DownloadsToday); err != nil {
		return nil, fmt.Errorf("postgres: stats downloads today: %w", err)
	}
	return s, nil
}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected: %w", err)
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scopesToStrings(scopes []catalog.Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}

func stringsToScopes(scopes []string) []catalog.Scope {
	if len(scopes) == 0 {
		return nil
	}
	out := make([]catalog.Scope, len(scopes))
	for i, s := range scopes {
		out[i] = catalog.Scope(s)
	}
	return out
}

var _ catalog.Catalog = (*Catalog)(nil)
