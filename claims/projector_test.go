package claims_test

import (
	"testing"

	"github.com/jrsteele09/go-oauth-frontend/claims"
	"github.com/jrsteele09/go-oauth-frontend/credentials"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func testUser() *credentials.User {
	return &credentials.User{
		LoginID:       "max",
		Subject:       "1003",
		Name:          "Max Meier",
		GivenName:     "Max",
		Email:         "max@example.com",
		EmailVerified: boolPtr(true),
		Address: &credentials.Address{
			Locality: "München",
			Country:  "DE",
		},
	}
}

func TestProject(t *testing.T) {
	user := testUser()

	t.Run("sub is unconditional", func(t *testing.T) {
		got := claims.Project(user, nil)
		require.Equal(t, map[string]any{"sub": "1003"}, got)
	})

	t.Run("only permitted claims are released", func(t *testing.T) {
		got := claims.Project(user, []string{"email", "email_verified"})
		require.Equal(t, map[string]any{
			"sub":            "1003",
			"email":          "max@example.com",
			"email_verified": true,
		}, got)
		require.NotContains(t, got, "name")
	})

	t.Run("unpopulated claims are omitted", func(t *testing.T) {
		got := claims.Project(user, []string{"phone_number", "phone_number_verified", "birthdate", "updated_at"})
		require.Equal(t, map[string]any{"sub": "1003"}, got)
	})

	t.Run("unknown names are ignored", func(t *testing.T) {
		got := claims.Project(user, []string{"favourite_colour", "name", "password"})
		require.Equal(t, map[string]any{"sub": "1003", "name": "Max Meier"}, got)
	})

	t.Run("address is structured", func(t *testing.T) {
		got := claims.Project(user, []string{"address"})
		require.Equal(t, map[string]any{"locality": "München", "country": "DE"}, got["address"])
	})

	t.Run("sub cannot be overridden", func(t *testing.T) {
		got := claims.Project(user, []string{"sub"})
		require.Equal(t, "1003", got["sub"])
	})
}

func TestSupported(t *testing.T) {
	names := claims.Supported()
	require.Contains(t, names, "sub")
	require.Contains(t, names, "address")
	require.Len(t, names, 20)
}
