package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/registry/pkg/audit"
	"github.com/pkgforge/registry/pkg/observability"
)

func TestBuildAuditLoggerFileOnlyWhenNotPostgres(t *testing.T) {
	orig := auditBasePath
	auditBasePath = filepath.Join(t.TempDir(), "audit")
	defer func() { auditBasePath = orig }()

	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
	auditLogger, err := buildAuditLogger(nil, false, logger)
	require.NoError(t, err)

	_, isFile := auditLogger.(*audit.FileLogger)
	assert.True(t, isFile, "expected a bare *audit.FileLogger when the catalog isn't PostgreSQL")

	assert.Nil(t, newAuditStore(auditLogger), "a file-only logger has no queryable Store")
}
