package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophtube/internal/flagx"
	"github.com/dmitrijs2005/gophtube/internal/timex"
)

// JsonConfig is the on-disk shape of the server config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Absent (zero) fields leave the current value untouched.
type JsonConfig struct {
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string          `json:"database_dsn"`
	AccessTokenSecret            string          `json:"access_token_secret"`
	RefreshTokenSecret           string          `json:"refresh_token_secret"`
	AccessTokenValidityDuration  timex.Duration  `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration  `json:"refresh_token_validity_duration"`
	S3RootUser                   string          `json:"s3_root_user"`
	S3RootPassword               string          `json:"s3_root_password"`
	S3Bucket                     string          `json:"s3_bucket"`
	S3Region                     string          `json:"s3_region"`
	S3BaseEndpoint               string          `json:"s3_base_endpoint"`
	S3PublicBaseURL              string          `json:"s3_public_base_url"`
	S3KeyPrefix                  string          `json:"s3_key_prefix"`
	RedisAddr                    string          `json:"redis_addr"`
	SessionStore                 string          `json:"session_store"`
	RotationLock                 string          `json:"rotation_lock"`
	SecureCookies                *bool           `json:"secure_cookies"`
	UploadDir                    string          `json:"upload_dir"`
	MaxUploadBytes               int64           `json:"max_upload_bytes"`
	StoreTimeout                 timex.Duration  `json:"store_timeout"`
	SweepInterval                *timex.Duration `json:"sweep_interval"`
	SweepGracePeriod             timex.Duration  `json:"sweep_grace_period"`
	RateLimitPerSecond           int             `json:"rate_limit_per_second"`
	RateLimitBurst               int             `json:"rate_limit_burst"`
	TrustedProxies               []string        `json:"trusted_proxies"`
	LogLevel                     string          `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c / -config onto
// config. Without the flag nothing is loaded. Unreadable or invalid files
// panic: the server must not start on a config it could not read.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.S3KeyPrefix, c.S3KeyPrefix)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SessionStore, c.SessionStore)
	setString(&config.RotationLock, c.RotationLock)
	setString(&config.UploadDir, c.UploadDir)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.StoreTimeout.Duration != 0 {
		config.StoreTimeout = c.StoreTimeout.Duration
	}
	// explicit 0 disables the sweeper, so presence matters here
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.SweepGracePeriod.Duration != 0 {
		config.SweepGracePeriod = c.SweepGracePeriod.Duration
	}
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
	if c.MaxUploadBytes != 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.RateLimitPerSecond != 0 {
		config.RateLimitPerSecond = c.RateLimitPerSecond
	}
	if c.RateLimitBurst != 0 {
		config.RateLimitBurst = c.RateLimitBurst
	}
	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
