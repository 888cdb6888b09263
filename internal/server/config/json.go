package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/casevault/internal/flagx"
	"github.com/dmitrijs2005/casevault/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON configuration file. Duration
// fields use timex.Duration so both "1m" and integer nanoseconds parse.
// Zero values are treated as "not set" and leave the current value alone.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	EncryptionKey               string         `json:"encryption_key"`
	CredentialIterations        int            `json:"credential_iterations"`
	LegacyCredentialIterations  int            `json:"legacy_credential_iterations"`
	ProviderSecretKey           string         `json:"provider_secret_key"`
	WebhookSecret               string         `json:"webhook_secret"`
	ProviderTimeout             timex.Duration `json:"provider_timeout"`
	ProviderMaxRetries          int            `json:"provider_max_retries"`
	Currency                    string         `json:"currency"`
	MaxUploadBytes              int64          `json:"max_upload_bytes"`
	RateLimitPerSecond          float64        `json:"rate_limit_per_second"`
	RateLimitBurst              int            `json:"rate_limit_burst"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the
// -c / -config flag into config. Without the flag nothing is loaded.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	setString(&config.EncryptionKey, c.EncryptionKey)
	if c.CredentialIterations != 0 {
		config.CredentialIterations = c.CredentialIterations
	}
	if c.LegacyCredentialIterations != 0 {
		config.LegacyCredentialIterations = c.LegacyCredentialIterations
	}
	setString(&config.ProviderSecretKey, c.ProviderSecretKey)
	setString(&config.WebhookSecret, c.WebhookSecret)
	if c.ProviderTimeout.Duration != 0 {
		config.ProviderTimeout = c.ProviderTimeout.Duration
	}
	if c.ProviderMaxRetries != 0 {
		config.ProviderMaxRetries = c.ProviderMaxRetries
	}
	setString(&config.Currency, c.Currency)
	if c.MaxUploadBytes != 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.RateLimitPerSecond != 0 {
		config.RateLimitPerSecond = c.RateLimitPerSecond
	}
	if c.RateLimitBurst != 0 {
		config.RateLimitBurst = c.RateLimitBurst
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
