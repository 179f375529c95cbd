package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-frontend/internal/config"
	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, config.BackendLocal, c.GetBackendKind())
	require.Equal(t, config.TicketStoreMemory, c.GetTicketStore())
	require.Equal(t, 10*time.Minute, c.GetTicketTTL())
	require.Equal(t, "authfront:", c.GetRedisKeyPrefix())
	require.Empty(t, c.GetUsersFile())
	require.Empty(t, c.GetAllowedOrigins())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("AUTHFRONT_PORT", ":9090")
	t.Setenv("AUTHFRONT_TICKETS_TTL", "2m")
	t.Setenv("AUTHFRONT_BASE_URL", "https://auth.example.com/")

	c, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, 2*time.Minute, c.GetTicketTTL())
	require.Equal(t, "https://auth.example.com", c.GetBaseURL())
}

func TestFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authfront.yaml")
	content := `
env: prod
cors:
  allowed_origins: ["https://app.example.com"]
tickets:
  store: redis
  redis:
    addr: redis:6379
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := config.Load(config.LoadOptions{
		File:      path,
		Overrides: map[string]any{"port": "7000"},
	})
	require.NoError(t, err)
	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, ":7000", c.GetPort())
	require.Equal(t, config.TicketStoreRedis, c.GetTicketStore())
	require.Equal(t, "redis:6379", c.GetRedisAddr())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://app.example.com"))
}

func TestValidation(t *testing.T) {
	t.Run("authlete without credentials", func(t *testing.T) {
		_, err := config.Load(config.LoadOptions{Overrides: map[string]any{"backend.kind": "authlete"}})
		require.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("unknown ticket store", func(t *testing.T) {
		_, err := config.Load(config.LoadOptions{Overrides: map[string]any{"tickets.store": "etcd"}})
		require.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(config.LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml")})
		require.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("authlete configured", func(t *testing.T) {
		c, err := config.Load(config.LoadOptions{Overrides: map[string]any{
			"backend.kind":                  "authlete",
			"backend.authlete.service_id":   "123",
			"backend.authlete.access_token": "tok",
		}})
		require.NoError(t, err)
		require.Equal(t, config.BackendAuthlete, c.GetBackendKind())
	})
}
