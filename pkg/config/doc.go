// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings, and keeps the token verification key set
// current while the service runs.
//
// # Configuration Structure
//
// Server settings:
//
//	IAM_HOST="0.0.0.0"
//	IAM_PORT="8000"
//	IAM_READ_TIMEOUT="15s"
//	IAM_MAX_BODY_BYTES="1048576"
//
// Storage settings:
//
//	IAM_DB_DRIVER="sqlite3"  # sqlite3, postgres
//	IAM_DATABASE_URL="file:iam.db?_foreign_keys=on"
//	IAM_CACHE_ENABLED="true"
//	IAM_REDIS_URL="redis://localhost:6379"
//
// Token settings:
//
//	IAM_JWT_ALGORITHM="RS256"
//	IAM_JWT_EXPIRY_SECONDS="3600"
//	IAM_JWT_ISSUER="iam-service"
//	IAM_JWT_AUDIENCE="iam-service"
//	IAM_JWT_SIGNING_KEY_FILE="keys/sample/private.pem"
//	IAM_JWT_VERIFICATION_KEYS="current=keys/current.pem,previous=keys/previous.pem"
//	IAM_JWT_VERIFICATION_KEYS_FILE="/etc/iam/keys.yaml"
//	IAM_JWT_KEYS_RELOAD_SCHEDULE="*/5 * * * *"
//
// Audit settings:
//
//	IAM_AUDIT_LOG_DIR="/var/log/iam"
//	IAM_AUDIT_MAX_FILE_SIZE="104857600"
//	IAM_AUDIT_S3_BUCKET="iam-audit"
//
// Observability settings:
//
//	IAM_LOG_LEVEL="info"  # debug, info, warn, error
//	IAM_METRICS_ENABLED="true"
//	IAM_OTEL_ENABLED="true"
//	IAM_OTEL_ENDPOINT="otel-collector:4317"
//
// # Key Rotation
//
// The verification key set is ordered, current key first. Publish a new key
// by adding it to the set, switch the signing key, and remove the old key
// once every token it signed has expired. KeyWatcher picks up edits to the
// key-set file without a restart:
//
//	watcher := config.NewKeyWatcher(cfg.JWT, ring, logger, metrics)
//	if err := watcher.Start(ctx); err != nil {
//		return err
//	}
//	defer watcher.Stop()
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/auth: Key set and token codec
//   - pkg/observability: Uses observability configuration
package config
