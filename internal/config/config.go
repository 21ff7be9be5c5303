package config

type Config interface {
	EnvConfig
	TokenConfig
	UpstreamConfig
}

type mainConfig struct {
	EnvVars
	Tokens
	Upstream
}

func New() Config {
	return mainConfig{}
}
