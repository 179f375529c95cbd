package config

import (
	"strings"

	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
	"github.com/spf13/viper"
)

const envPrefix = "AUTHFRONT"

type Config interface {
	EnvConfig
	CorsConfig
	BackendConfig
	TicketConfig
	StoreConfig
	EngineConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetRealm() string
	GetLogLevel() string
	GetLogFormat() string
	GetMetricsEnabled() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// LoadOptions controls where configuration values come from. Values in
// Overrides win over AUTHFRONT_* environment variables, which win over the
// file and then the defaults.
type LoadOptions struct {
	File      string
	Overrides map[string]any
}

type mainConfig struct {
	EnvVars
	Cors
	Backend
	Tickets
	Store
	Engine
}

// New returns the configuration built from defaults and the environment.
func New() Config {
	c, err := Load(LoadOptions{})
	if err != nil {
		// Without a file the only failure is an invalid override, which can't happen here.
		panic(err)
	}
	return c
}

// Load builds a Config from defaults, the environment, an optional file and overrides.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "reading %s: %v", opts.File, err)
		}
	}

	for k, val := range opts.Overrides {
		v.Set(k, val)
	}

	c := mainConfig{
		EnvVars: EnvVars{v: v},
		Cors:    Cors{v: v},
		Backend: Backend{v: v},
		Tickets: Tickets{v: v},
		Store:   Store{v: v},
		Engine:  Engine{v: v},
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c mainConfig) validate() error {
	switch c.GetBackendKind() {
	case BackendLocal:
	case BackendAuthlete:
		if c.GetAuthleteServiceID() == "" || c.GetAuthleteAccessToken() == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "authlete backend requires service_id and access_token")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown backend kind %q", c.GetBackendKind())
	}

	switch c.GetTicketStore() {
	case TicketStoreMemory, TicketStoreRedis:
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown ticket store %q", c.GetTicketStore())
	}

	if c.GetTicketTTL() <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "tickets.ttl must be positive")
	}
	return nil
}
