package config

import (
	"time"

	"github.com/spf13/viper"
)

// BackendKind selects the decision backend implementation.
type BackendKind string

const (
	BackendLocal    BackendKind = "local"
	BackendAuthlete BackendKind = "authlete"
)

type BackendConfig interface {
	GetBackendKind() BackendKind
	GetBackendTimeout() time.Duration
	GetAuthleteBaseURL() string
	GetAuthleteServiceID() string
	GetAuthleteAccessToken() string
}

type Backend struct {
	v *viper.Viper
}

var _ BackendConfig = Backend{}

func (b Backend) GetBackendKind() BackendKind {
	return BackendKind(b.v.GetString("backend.kind"))
}

func (b Backend) GetBackendTimeout() time.Duration {
	return b.v.GetDuration("backend.timeout")
}

func (b Backend) GetAuthleteBaseURL() string {
	return b.v.GetString("backend.authlete.base_url")
}

func (b Backend) GetAuthleteServiceID() string {
	return b.v.GetString("backend.authlete.service_id")
}

func (b Backend) GetAuthleteAccessToken() string {
	return b.v.GetString("backend.authlete.access_token")
}
