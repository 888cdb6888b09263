package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const dotEnvFile = ".env"

// loadDotEnv copies variables from a .env file into the process
// environment. Variables already set win. A missing file is not an error.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
}

// parseEnv overlays Config with environment variables. Unset or empty
// variables leave the current value alone; malformed numbers panic, like a
// malformed JSON file does.
func parseEnv(config *Config) {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				panic(err)
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}

	str("HTTP_ADDRESS", &config.EndpointAddrHTTP)
	str("GRPC_ADDRESS", &config.EndpointAddrGRPC)
	str("DATABASE_URL", &config.DatabaseDSN)
	str("JWT_SECRET", &config.SecretKey)
	duration("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	str("ENCRYPTION_KEY", &config.EncryptionKey)
	integer("CREDENTIAL_ITERATIONS", &config.CredentialIterations)
	integer("LEGACY_CREDENTIAL_ITERATIONS", &config.LegacyCredentialIterations)
	str("STRIPE_SECRET_KEY", &config.ProviderSecretKey)
	str("STRIPE_WEBHOOK_SECRET", &config.WebhookSecret)
	duration("PROVIDER_TIMEOUT", &config.ProviderTimeout)
	integer("PROVIDER_MAX_RETRIES", &config.ProviderMaxRetries)
	str("CURRENCY", &config.Currency)
	if v, ok := os.LookupEnv("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		config.MaxUploadBytes = n
	}
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("LOG_LEVEL", &config.LogLevel)
}
