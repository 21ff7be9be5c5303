package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	apiKeyEnvVar  = "API_KEY"
	domainEnvVar  = "COOKIE_DOMAIN"
	redisEnvVar   = "REDIS_ADDR"
	dsnEnvVar     = "DATABASE_DSN"
	baseURLVar    = "BASE_URL"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetAPIKey() string
	GetCookieDomain() string
	GetRedisAddr() string
	GetDatabaseDSN() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Token Service")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the externally visible base URL of this service,
// used as the issuer claim in signed access tokens.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetAPIKey returns the shared API key expected in the XApiKey request header.
// Empty disables the API key gate (DEV only).
func (EnvVars) GetAPIKey() string {
	return GetEnv(apiKeyEnvVar, "")
}

// GetCookieDomain returns the domain attribute for the refresh token cookie.
func (EnvVars) GetCookieDomain() string {
	return GetEnv(domainEnvVar, "")
}

// GetRedisAddr returns the Redis address for the access token cache and the
// logout broadcast transport. Empty means run without Redis (no-op fallbacks).
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisEnvVar, "")
}

// GetDatabaseDSN returns the Postgres DSN for the refresh token store.
// Empty means run with the in-memory store (DEV only).
func (EnvVars) GetDatabaseDSN() string {
	return GetEnv(dsnEnvVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
