// Package config loads the registry's configuration from environment
// variables, with a YAML overlay file read first so operators can check a
// base config into their deploy repo and still override any field via env
// at the edge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pkgforge/registry/pkg/observability"
)

// Config holds everything the registry reads at boot.
type Config struct {
	Server        ServerConfig
	Catalog       CatalogConfig
	Blobstore     BlobstoreConfig
	Auth          AuthConfig
	Discovery     DiscoveryConfig
	Redis         RedisConfig
	OIDCProviders map[string]OIDCProviderConfig
	OAuthProviders map[string]OAuthProviderConfig
	Observability ObservabilityConfig
}

// ServerConfig controls the listen address and request timeouts.
type ServerConfig struct {
	BindAddress     string
	Port            string
	HealthPort      string
	RegistryName    string
	Domain          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// UploadTimeout is the deadline for publish requests — longer than
	// the deadline for everything else, since archive uploads can be large.
	UploadTimeout time.Duration
	// StaticRoot is the directory pkg/static serves the web UI's built
	// assets and SPA index document from.
	StaticRoot string
}

// CatalogConfig selects and configures the metadata store backend.
type CatalogConfig struct {
	// DBPath is a sqlite file path or a postgres:// DSN; pkg/catalog
	// dispatches on its shape at startup.
	DBPath string
}

// BlobstoreConfig controls the content-addressed archive store.
type BlobstoreConfig struct {
	StoragePath    string
	MaxPackageSize int64

	// Backup mirrors published archives to S3-compatible storage; empty
	// Bucket disables it.
	BackupEndpoint     string
	BackupRegion       string
	BackupBucket       string
	BackupAccessKey    string
	BackupSecretKey    string
	BackupUsePathStyle bool
}

// AuthConfig controls local bearer-token issuance.
type AuthConfig struct {
	// SecretKey signs stateless tokens; must be >= 32 bytes.
	SecretKey string
	// RedirectBaseURL is the public base used to construct OAuth/OIDC
	// callback URLs.
	RedirectBaseURL string
}

// DiscoveryConfig points at the optional upstream discovery provider.
type DiscoveryConfig struct {
	URL string
}

// RedisConfig configures the shared Redis connection (discovery cache L2,
// distributed rate limiting). Empty URL disables both.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// OIDCProviderConfig is one OIDC_<NAME>_* provider, keyed by <NAME> lowercased.
type OIDCProviderConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
}

// OAuthProviderConfig is one OAUTH_<NAME>_* provider, keyed by <NAME> lowercased.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// ObservabilityConfig holds logging/metrics/tracing settings.
type ObservabilityConfig struct {
	LogLevel           observability.LogLevel
	MetricsEnabled     bool
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// yamlOverlay mirrors the subset of Config fields an operator can check
// into a deploy repo; env vars (loaded after) take precedence over any
// value set here.
type yamlOverlay struct {
	BindAddress    string `yaml:"bind_address"`
	Port           string `yaml:"port"`
	HealthPort     string `yaml:"health_port"`
	RegistryName   string `yaml:"registry_name"`
	Domain         string `yaml:"domain"`
	DBPath         string `yaml:"db_path"`
	StoragePath    string `yaml:"storage_path"`
	MaxPackageSize int64  `yaml:"max_package_size"`
	LogLevel       string `yaml:"log_level"`
	DiscoveryURL   string `yaml:"discovery_url"`
	RedisURL       string `yaml:"redis_url"`
}

// LoadConfig loads configuration: first a YAML overlay file (if
// REGISTRY_CONFIG_FILE is set), then environment variables, which always
// win over the file.
func LoadConfig() (*Config, error) {
	overlay, err := loadYAMLOverlay(os.Getenv("REGISTRY_CONFIG_FILE"))
	if err != nil {
		return nil, fmt.Errorf("config: load yaml overlay: %w", err)
	}

	cfg := &Config{
		Server:         loadServerConfig(overlay),
		Catalog:        loadCatalogConfig(overlay),
		Blobstore:      loadBlobstoreConfig(overlay),
		Auth:           loadAuthConfig(),
		Discovery:      loadDiscoveryConfig(overlay),
		Redis:          loadRedisConfig(overlay),
		OIDCProviders:  loadOIDCProviders(),
		OAuthProviders: loadOAuthProviders(),
		Observability:  loadObservabilityConfig(overlay),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

func loadYAMLOverlay(path string) (*yamlOverlay, error) {
	if path == "" {
		return &yamlOverlay{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var o yamlOverlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &o, nil
}

func loadServerConfig(o *yamlOverlay) ServerConfig {
	return ServerConfig{
		BindAddress:     getEnv("BIND_ADDRESS", o.BindAddress, "0.0.0.0"),
		Port:            getEnv("PORT", o.Port, "8080"),
		HealthPort:      getEnv("HEALTH_PORT", o.HealthPort, "9090"),
		RegistryName:    getEnv("REGISTRY_NAME", o.RegistryName, "pkgforge registry"),
		Domain:          getEnv("DOMAIN", o.Domain, "localhost"),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		UploadTimeout:   getEnvDuration("UPLOAD_TIMEOUT", 300*time.Second),
		StaticRoot:      getEnv("STATIC_ROOT", "", "./web/dist"),
	}
}

func loadCatalogConfig(o *yamlOverlay) CatalogConfig {
	return CatalogConfig{
		DBPath: getEnv("DB_PATH", o.DBPath, "registry.db"),
	}
}

func loadBlobstoreConfig(o *yamlOverlay) BlobstoreConfig {
	maxSize := getEnvInt64("MAX_PACKAGE_SIZE", o.MaxPackageSize)
	if maxSize <= 0 {
		maxSize = 50 * 1024 * 1024
	}
	return BlobstoreConfig{
		StoragePath:        getEnv("STORAGE_PATH", o.StoragePath, "./data/packages"),
		MaxPackageSize:     maxSize,
		BackupEndpoint:     getEnv("BACKUP_S3_ENDPOINT", "", ""),
		BackupRegion:       getEnv("BACKUP_S3_REGION", "", "us-east-1"),
		BackupBucket:       getEnv("BACKUP_S3_BUCKET", "", ""),
		BackupAccessKey:    getEnv("BACKUP_S3_ACCESS_KEY", "", ""),
		BackupSecretKey:    getEnv("BACKUP_S3_SECRET_KEY", "", ""),
		BackupUsePathStyle: getEnvBool("BACKUP_S3_USE_PATH_STYLE", false),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SecretKey:       getEnv("SECRET_KEY", "", ""),
		RedirectBaseURL: getEnv("REDIRECT_BASE_URL", "", "http://localhost:8080"),
	}
}

func loadDiscoveryConfig(o *yamlOverlay) DiscoveryConfig {
	return DiscoveryConfig{URL: getEnv("DISCOVERY_URL", o.DiscoveryURL, "")}
}

func loadRedisConfig(o *yamlOverlay) RedisConfig {
	return RedisConfig{
		URL:        getEnv("REDIS_URL", o.RedisURL, ""),
		Password:   getEnv("REDIS_PASSWORD", "", ""),
		DB:         getEnvInt("REDIS_DB", 0),
		MaxRetries: getEnvInt("REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("REDIS_POOL_SIZE", 10),
	}
}

// loadOIDCProviders scans the environment for OIDC_<NAME>_ISSUER /
// OIDC_<NAME>_CLIENT_ID / OIDC_<NAME>_CLIENT_SECRET triples. Provider
// names are whatever identifier an operator picks, e.g. OIDC_GITHUB_ISSUER.
func loadOIDCProviders() map[string]OIDCProviderConfig {
	providers := map[string]OIDCProviderConfig{}
	for _, kv := range os.Environ() {
		name, suffix, ok := splitProviderEnv(kv, "OIDC_", "_ISSUER")
		if !ok {
			continue
		}
		p := providers[name]
		p.IssuerURL = suffix
		p.ClientID = getEnv("OIDC_"+strings.ToUpper(name)+"_CLIENT_ID", "", "")
		p.ClientSecret = getEnv("OIDC_"+strings.ToUpper(name)+"_CLIENT_SECRET", "", "")
		providers[name] = p
	}
	return providers
}

// loadOAuthProviders mirrors loadOIDCProviders for the OAUTH_<NAME>_*
// prefix (no issuer; just client credentials).
func loadOAuthProviders() map[string]OAuthProviderConfig {
	providers := map[string]OAuthProviderConfig{}
	for _, kv := range os.Environ() {
		name, _, ok := splitProviderEnv(kv, "OAUTH_", "_CLIENT_ID")
		if !ok {
			continue
		}
		providers[name] = OAuthProviderConfig{
			ClientID:     getEnv("OAUTH_"+strings.ToUpper(name)+"_CLIENT_ID", "", ""),
			ClientSecret: getEnv("OAUTH_"+strings.ToUpper(name)+"_CLIENT_SECRET", "", ""),
		}
	}
	return providers
}

// splitProviderEnv reports whether kv (a "KEY=VALUE" os.Environ entry)
// matches prefix + "<NAME>" + suffix, returning NAME lowercased and the
// value.
func splitProviderEnv(kv, prefix, suffix string) (name, value string, ok bool) {
	eq := strings.IndexByte(kv, '=')
	if eq < 0 {
		return "", "", false
	}
	key, val := kv[:eq], kv[eq+1:]
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return "", "", false
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
	if middle == "" {
		return "", "", false
	}
	return strings.ToLower(middle), val, true
}

func loadObservabilityConfig(o *yamlOverlay) ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("LOG_LEVEL", o.LogLevel, "info")),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("OTEL_ENDPOINT", "", "localhost:4317"),
		OTelServiceName:    getEnv("OTEL_SERVICE_NAME", "", "registryd"),
		OTelServiceVersion: getEnv("OTEL_SERVICE_VERSION", "", "1.0.0"),
		OTelInsecure:       getEnvBool("OTEL_INSECURE", true),
	}
}

// Validate checks invariants that would otherwise surface as confusing
// failures deep in server startup.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Catalog.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Blobstore.StoragePath == "" {
		return fmt.Errorf("STORAGE_PATH is required")
	}
	if c.Auth.SecretKey != "" && len(c.Auth.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 bytes")
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OTEL_ENDPOINT is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OTEL_SERVICE_NAME is required when OTel is enabled")
		}
	}
	return nil
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns the env var at key, falling back to overlayValue (from a
// YAML file) if the env var is unset, then to defaultValue.
func getEnv(key, overlayValue, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if overlayValue != "" {
		return overlayValue
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
