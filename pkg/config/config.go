package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/httputil"
	"github.com/platinummonkey/iam/pkg/observability"
	"github.com/platinummonkey/iam/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Token signing and verification
	JWT JWTConfig

	// Credential hashing
	Password PasswordConfig

	// Request audit trail
	Audit AuditConfig

	// Cross-origin settings
	CORS httputil.CORSConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// JWTConfig holds token settings
type JWTConfig struct {
	Algorithm      string
	Expiry         time.Duration
	Issuer         string
	Audience       string
	SigningKeyFile string

	// Ordered label=path pairs, current key first
	VerificationKeys []KeySource

	// YAML key-set file. Takes precedence over VerificationKeys and is
	// watched for changes.
	VerificationKeysFile string

	// Cron schedule for a periodic key-set reload; empty disables it
	ReloadSchedule string
}

// PasswordConfig holds credential hashing settings
type PasswordConfig struct {
	BcryptCost int
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	Dir         string
	MaxFileSize int64
	MaxFiles    int

	// Optional S3 archive for rotated files
	ArchiveBucket       string
	ArchivePrefix       string
	ArchiveRegion       string
	ArchiveEndpoint     string
	ArchiveAccessKey    string
	ArchiveSecretKey    string
	ArchiveUsePathStyle bool
}

// ArchiveEnabled reports whether rotated audit files are shipped to S3
func (a AuditConfig) ArchiveEnabled() bool {
	return a.ArchiveBucket != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	jwtCfg, err := loadJWTConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		JWT:           jwtCfg,
		Password:      PasswordConfig{BcryptCost: getEnvInt("IAM_BCRYPT_COST", 12)},
		Audit:         loadAuditConfig(),
		CORS:          loadCORSConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("IAM_HOST", "0.0.0.0"),
		Port:            getEnv("IAM_PORT", "8000"),
		ReadTimeout:     getEnvDuration("IAM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("IAM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("IAM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("IAM_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("IAM_MAX_BODY_BYTES", 1<<20),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if driver := getEnv("IAM_DB_DRIVER", ""); driver != "" {
		cfg.Driver = driver
	}
	if dbURL := getEnv("IAM_DATABASE_URL", ""); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if maxConns := getEnvInt("IAM_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("IAM_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("IAM_DB_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	// Redis config
	if redisURL := getEnv("IAM_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("IAM_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("IAM_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("IAM_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("IAM_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	cfg.CacheEnabled = getEnvBool("IAM_CACHE_ENABLED", cfg.CacheEnabled)
	if ttl := getEnvDuration("IAM_CACHE_TTL", 0); ttl > 0 {
		cfg.CacheTTL = ttl
	}
	if l1CacheSize := getEnvInt("IAM_L1_CACHE_SIZE", 0); l1CacheSize > 0 {
		cfg.L1CacheSize = l1CacheSize
	}
	if l1TTL := getEnvDuration("IAM_L1_CACHE_TTL", 0); l1TTL > 0 {
		cfg.L1CacheTTL = l1TTL
	}

	return cfg
}

// loadJWTConfig loads token configuration from environment
func loadJWTConfig() (JWTConfig, error) {
	sources, err := ParseKeySources(getEnv("IAM_JWT_VERIFICATION_KEYS", "current=keys/sample/public.pem"))
	if err != nil {
		return JWTConfig{}, fmt.Errorf("IAM_JWT_VERIFICATION_KEYS: %w", err)
	}

	return JWTConfig{
		Algorithm:            getEnv("IAM_JWT_ALGORITHM", "RS256"),
		Expiry:               time.Duration(getEnvInt("IAM_JWT_EXPIRY_SECONDS", 3600)) * time.Second,
		Issuer:               getEnv("IAM_JWT_ISSUER", "iam-service"),
		Audience:             getEnv("IAM_JWT_AUDIENCE", "iam-service"),
		SigningKeyFile:       getEnv("IAM_JWT_SIGNING_KEY_FILE", "keys/sample/private.pem"),
		VerificationKeys:     sources,
		VerificationKeysFile: getEnv("IAM_JWT_VERIFICATION_KEYS_FILE", ""),
		ReloadSchedule:       getEnv("IAM_JWT_KEYS_RELOAD_SCHEDULE", ""),
	}, nil
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Dir:                 getEnv("IAM_AUDIT_LOG_DIR", "."),
		MaxFileSize:         getEnvInt64("IAM_AUDIT_MAX_FILE_SIZE", 100*1024*1024),
		MaxFiles:            getEnvInt("IAM_AUDIT_MAX_FILES", 10),
		ArchiveBucket:       getEnv("IAM_AUDIT_S3_BUCKET", ""),
		ArchivePrefix:       getEnv("IAM_AUDIT_S3_PREFIX", "audit/"),
		ArchiveRegion:       getEnv("IAM_AUDIT_S3_REGION", "us-east-1"),
		ArchiveEndpoint:     getEnv("IAM_AUDIT_S3_ENDPOINT", ""),
		ArchiveAccessKey:    getEnv("IAM_AUDIT_S3_ACCESS_KEY", ""),
		ArchiveSecretKey:    getEnv("IAM_AUDIT_S3_SECRET_KEY", ""),
		ArchiveUsePathStyle: getEnvBool("IAM_AUDIT_S3_USE_PATH_STYLE", false),
	}
}

// loadCORSConfig loads cross-origin settings from environment
func loadCORSConfig() httputil.CORSConfig {
	cfg := httputil.DefaultCORSConfig()
	if origins := getEnv("IAM_CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("IAM_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("IAM_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("IAM_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("IAM_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("IAM_OTEL_SERVICE_NAME", "iam-service"),
		OTelServiceVersion: getEnv("IAM_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("IAM_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Driver {
	case "sqlite3", "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite3 or postgres)", c.Storage.Driver)
	}
	if c.Storage.CacheEnabled && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required when the user cache is enabled")
	}

	if !auth.SupportedAlgorithm(c.JWT.Algorithm) {
		return fmt.Errorf("unsupported JWT algorithm: %s", c.JWT.Algorithm)
	}
	if c.JWT.Expiry <= 0 {
		return fmt.Errorf("JWT expiry must be positive")
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		return fmt.Errorf("JWT issuer and audience are required")
	}
	if c.JWT.SigningKeyFile == "" {
		return fmt.Errorf("JWT signing key file is required")
	}
	if c.JWT.VerificationKeysFile == "" && len(c.JWT.VerificationKeys) == 0 {
		return fmt.Errorf("at least one JWT verification key is required")
	}

	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.Audit.Dir == "" {
		return fmt.Errorf("audit log directory is required")
	}
	if c.Audit.MaxFileSize <= 0 || c.Audit.MaxFiles <= 0 {
		return fmt.Errorf("audit rotation size and file count must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// splitList splits a comma separated list, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
