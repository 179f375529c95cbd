package config

import (
	"time"

	"github.com/spf13/viper"
)

// EngineConfig holds the lifetimes used by the in-process decision engine.
type EngineConfig interface {
	GetAuthCodeTimeout() time.Duration
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultIDTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
	GetPushedRequestExpiry() time.Duration
	GetClientsFile() string
}

type Engine struct {
	v *viper.Viper
}

var _ EngineConfig = Engine{}

func (e Engine) GetAuthCodeTimeout() time.Duration {
	return e.v.GetDuration("engine.code_ttl")
}

func (e Engine) GetDefaultAccessTokenExpiry() time.Duration {
	return e.v.GetDuration("engine.access_token_ttl")
}

func (e Engine) GetDefaultIDTokenExpiry() time.Duration {
	return e.v.GetDuration("engine.id_token_ttl")
}

func (e Engine) GetDefaultRefreshTokenExpiry() time.Duration {
	return e.v.GetDuration("engine.refresh_token_ttl") // 7 days by default
}

func (e Engine) GetPushedRequestExpiry() time.Duration {
	return e.v.GetDuration("engine.par_ttl")
}

func (e Engine) GetClientsFile() string {
	return e.v.GetString("engine.clients_file")
}
