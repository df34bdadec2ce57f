package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/iam/pkg/auth"
	"github.com/platinummonkey/iam/pkg/config"
	"github.com/platinummonkey/iam/pkg/observability"
	"github.com/platinummonkey/iam/pkg/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	store := storage.DefaultConfig()
	store.DatabaseURL = "file:" + filepath.Join(dir, "iam.db") + "?_foreign_keys=on"

	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			ShutdownTimeout: time.Second,
		},
		Storage: store,
		JWT: config.JWTConfig{
			Algorithm:      "RS256",
			SigningKeyFile: filepath.Join(dir, "missing-private.pem"),
			Issuer:         "iam-service",
			Audience:       "iam-service",
		},
		Password: config.PasswordConfig{BcryptCost: 4},
		Audit:    config.AuditConfig{Dir: filepath.Join(dir, "audit")},
		Observability: config.ObservabilityConfig{
			LogLevel:        observability.DebugLevel,
			OTelServiceName: "iam-test",
		},
	}
}

func TestRun_StartupFailureReleasesResources(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, cfg *config.Config)
		wantErr string
	}{
		{
			name:    "missing signing key",
			setup:   func(*testing.T, *config.Config) {},
			wantErr: "failed to load signing key",
		},
		{
			name: "empty verification key set",
			setup: func(t *testing.T, cfg *config.Config) {
				dir := filepath.Dir(cfg.JWT.SigningKeyFile)
				privPEM, _, err := auth.GenerateKeyPair("RS256", auth.MinRSABits)
				require.NoError(t, err)

				cfg.JWT.SigningKeyFile = filepath.Join(dir, "private.pem")
				require.NoError(t, os.WriteFile(cfg.JWT.SigningKeyFile, privPEM, 0o600))

				cfg.JWT.VerificationKeysFile = filepath.Join(dir, "keys.yaml")
				require.NoError(t, os.WriteFile(cfg.JWT.VerificationKeysFile, []byte("keys: []\n"), 0o600))
			},
			wantErr: "verification key set is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.setup(t, cfg)

			var logs bytes.Buffer
			logger := observability.NewLogger(observability.DebugLevel, &logs)

			err := run(context.Background(), cfg, logger)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Contains(t, logs.String(), "Shutdown of database complete")
		})
	}
}
