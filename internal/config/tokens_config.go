package config

import "time"

type TokenConfig interface {
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetRefreshSecretLength() int
	GetSweepInterval() time.Duration
	GetPrivateKeyPath() string
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetAccessTokenTTL() time.Duration {
	return 1 * time.Hour
}

func (Tokens) GetRefreshTokenTTL() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

func (Tokens) GetRefreshSecretLength() int {
	return 64 // 64 bytes = 512 bits
}

func (Tokens) GetSweepInterval() time.Duration {
	return 10 * time.Minute
}

// GetPrivateKeyPath returns the path of the PEM-encoded RSA signing key.
// Empty means generate an ephemeral key at startup (DEV only).
func (Tokens) GetPrivateKeyPath() string {
	return GetEnv("JWT_PRIVATE_KEY_PATH", "")
}
