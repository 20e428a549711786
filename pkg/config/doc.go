// Package config loads and validates registry configuration from
// environment variables, with sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	BIND_ADDRESS="0.0.0.0"
//	PORT="8080"
//	HEALTH_PORT="9090"
//	READ_TIMEOUT="15s"
//	UPLOAD_TIMEOUT="300s"
//
// Catalog and blob store settings:
//
//	DB_PATH="registry.db"              # sqlite file path or postgres:// DSN
//	STORAGE_PATH="/var/registry/data"
//	MAX_PACKAGE_SIZE="52428800"        # 50 MiB
//
// Auth and identity settings:
//
//	SECRET_KEY="..."                   # >=32 bytes, signs stateless tokens
//	REDIRECT_BASE_URL="https://registry.example.com"
//	OIDC_GITHUB_ISSUER="https://github.com/login/oauth"
//	OIDC_GITHUB_CLIENT_ID="..."
//	OIDC_GITHUB_CLIENT_SECRET="..."
//
// Cache and rate-limiting settings:
//
//	REDIS_URL="redis://localhost:6379"
//	DISCOVERY_URL="https://discover.example.com"
//
// Observability settings:
//
//	LOG_LEVEL="info"  # debug, info, warn, error
//	METRICS_ENABLED="true"
//	OTEL_ENABLED="true"
//	OTEL_ENDPOINT="otel-collector:4317"
//
// # YAML overlay
//
// Setting REGISTRY_CONFIG_FILE to a path reads a YAML file first; any
// environment variable that is also set overrides the corresponding
// overlay value.
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
