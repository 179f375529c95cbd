package local

// TokenResponse is the token endpoint success body (RFC 6749 section 5.1),
// extended with the grant management grant_id.
type TokenResponse struct {
	// AccessToken is an opaque bearer token.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int64 `json:"expires_in"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Rotates on each use.
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the signed OpenID Connect ID token.
	// Only present: when "openid" scope was granted on an authorization code exchange
	IDToken string `json:"id_token,omitempty"`

	// Scope lists the granted scopes, space separated.
	Scope string `json:"scope,omitempty"`

	// GrantID identifies the grant created or updated for this authorization (RFC 9356).
	GrantID string `json:"grant_id,omitempty"`
}
