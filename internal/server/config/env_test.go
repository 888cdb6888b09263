package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_Overlays(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", testKey)
	t.Setenv("STRIPE_SECRET_KEY", "sk_env")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_env")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("CREDENTIAL_ITERATIONS", "220000")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("S3_REGION", "")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, testKey, cfg.EncryptionKey)
	assert.Equal(t, "sk_env", cfg.ProviderSecretKey)
	assert.Equal(t, "whsec_env", cfg.WebhookSecret)
	assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 220000, cfg.CredentialIterations)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, "us-east-1", cfg.S3Region, "empty variable keeps the default")
	require.NoError(t, cfg.Validate())
}

func TestParseEnv_BadNumberPanics(t *testing.T) {
	t.Setenv("PROVIDER_MAX_RETRIES", "lots")

	cfg := &Config{}
	require.Panics(t, func() { parseEnv(cfg) })
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CASEVAULT_DOTENV_PROBE=from-file\nCASEVAULT_DOTENV_SET=from-file\n"), 0o600))

	t.Setenv("CASEVAULT_DOTENV_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("CASEVAULT_DOTENV_PROBE") })

	loadDotEnv(path)

	assert.Equal(t, "from-file", os.Getenv("CASEVAULT_DOTENV_PROBE"))
	assert.Equal(t, "from-env", os.Getenv("CASEVAULT_DOTENV_SET"), "existing variables win")
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	require.NotPanics(t, func() { loadDotEnv(filepath.Join(t.TempDir(), "absent.env")) })
}
