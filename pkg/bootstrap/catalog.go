// Package bootstrap holds the catalog-backend-selection logic shared by
// cmd/registryd (the server) and cmd/registryctl (the operator CLI), so
// both pick sqlite vs. postgres the same way from the same DB_PATH value.
package bootstrap

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/catalog/postgres"
	"github.com/pkgforge/registry/pkg/catalog/sqlite"
	"github.com/pkgforge/registry/pkg/observability"
)

// IsPostgresDSN reports whether dbPath names a PostgreSQL connection
// string rather than a sqlite file path.
func IsPostgresDSN(dbPath string) bool {
	return strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://")
}

// CatalogKind returns "postgres" or "sqlite", for a startup log line.
func CatalogKind(dbPath string) string {
	if IsPostgresDSN(dbPath) {
		return "postgres"
	}
	return "sqlite"
}

// OpenCatalog opens the backend named by dbPath's shape and returns both
// the catalog.Catalog and its underlying *sql.DB — the latter so callers
// can share the connection with components that talk to the database
// directly (pkg/sso's provider storage, pkg/audit's DBLogger) instead of
// opening a second one. DB_REPLICA_URLS (comma-separated) is consulted for
// a postgres DSN, matching pkg/catalog/postgres's primary/replica split.
func OpenCatalog(dbPath string, logger *observability.Logger) (catalog.Catalog, *sql.DB, error) {
	if IsPostgresDSN(dbPath) {
		var replicaURLs []string
		if raw := os.Getenv("DB_REPLICA_URLS"); raw != "" {
			replicaURLs = strings.Split(raw, ",")
		}
		cat, err := postgres.Open(dbPath, replicaURLs, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres catalog: %w", err)
		}
		return cat, cat.DB(), nil
	}

	cat, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	return cat, cat.DB(), nil
}
