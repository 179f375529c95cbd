package config

import (
	"strings"

	"github.com/spf13/viper"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.GetString("port")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString("app_name")
}

func (e EnvVars) GetEnv() string {
	env := e.v.GetString("env")
	if env == "" {
		return "DEV"
	}
	return strings.ToUpper(env)
}

// GetBaseURL returns the public base URL of the server (e.g., "https://auth.example.com").
// It is used as the issuer and to build every endpoint URL in discovery documents.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.v.GetString("base_url"), "/")
}

// GetRealm is the realm advertised in WWW-Authenticate challenges.
func (e EnvVars) GetRealm() string {
	return e.v.GetString("realm")
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString("log_level")
}

func (e EnvVars) GetLogFormat() string {
	return e.v.GetString("log_format")
}

func (e EnvVars) GetMetricsEnabled() bool {
	return e.v.GetBool("metrics.enabled")
}
