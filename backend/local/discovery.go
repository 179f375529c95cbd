package local

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/claims"
	"github.com/pkg/errors"
)

// Endpoint paths advertised in the discovery document.
const (
	AuthorizationPath   = "/api/authorization"
	TokenPath           = "/api/token"
	IntrospectionPath   = "/api/introspection"
	RevocationPath      = "/api/revocation"
	PARPath             = "/api/par"
	RegistrationPath    = "/api/register"
	GrantManagementPath = "/api/gm"
	UserInfoPath        = "/api/userinfo"
	JWKSPath            = "/api/jwks"
	FederationRegPath   = "/api/federation/register"
)

// discoveryDocument builds the OpenID Provider metadata (OpenID Connect Discovery 1.0).
func (e *Engine) discoveryDocument() map[string]any {
	return map[string]any{
		"issuer":                 e.issuer,
		"authorization_endpoint": e.issuer + AuthorizationPath,
		"token_endpoint":         e.issuer + TokenPath,
		"introspection_endpoint": e.issuer + IntrospectionPath,
		"revocation_endpoint":    e.issuer + RevocationPath,
		"registration_endpoint":  e.issuer + RegistrationPath,
		"userinfo_endpoint":      e.issuer + UserInfoPath,
		"jwks_uri":               e.issuer + JWKSPath,

		// Extensions
		"pushed_authorization_request_endpoint": e.issuer + PARPath,
		"grant_management_endpoint":             e.issuer + GrantManagementPath,
		"grant_management_actions_supported":    []string{grantActionCreate, grantActionUpdate},

		// Supported response types
		"response_types_supported": []string{codeResponseType},
		"response_modes_supported": []string{"query", "fragment", "form_post"},
		"subject_types_supported":  []string{"public"},
		"grant_types_supported":    []string{string(AuthorizationCodeGrant), string(RefreshTokenGrant), string(ClientCredentialsGrant)},

		// Signing algorithms
		"id_token_signing_alg_values_supported": []string{e.keys.Algorithm},

		"scopes_supported": DefaultScopes,
		"claims_supported": claims.Supported(),

		// Client authentication and PKCE
		"code_challenge_methods_supported":              []string{string(CodeMethodTypeS256), string(CodeMethodTypePlain)},
		"token_endpoint_auth_methods_supported":         []string{"client_secret_basic", "client_secret_post", "none"},
		"revocation_endpoint_auth_methods_supported":    []string{"client_secret_basic", "client_secret_post"},
		"introspection_endpoint_auth_methods_supported": []string{"client_secret_basic"},

		"authorization_response_iss_parameter_supported": true,
	}
}

// ServiceConfiguration returns the discovery document as JSON.
func (e *Engine) ServiceConfiguration(_ context.Context) ([]byte, error) {
	data, err := json.Marshal(e.discoveryDocument())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal discovery document")
	}
	return data, nil
}

// ServiceJWKS returns the public signing keys as a JWK Set.
func (e *Engine) ServiceJWKS(_ context.Context) ([]byte, error) {
	data, err := json.Marshal(e.keys.JWKS())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal jwks")
	}
	return data, nil
}

// CredentialIssuerMetadata returns the OpenID4VCI metadata when configured.
func (e *Engine) CredentialIssuerMetadata(_ context.Context) (*backend.Verdict, error) {
	if e.credentialIssuerMetadata == nil {
		return errorVerdict(backend.ActionNotFound, "not_found", "This server is not a credential issuer."), nil
	}
	body := make(map[string]any, len(e.credentialIssuerMetadata)+1)
	for k, v := range e.credentialIssuerMetadata {
		body[k] = v
	}
	if _, ok := body["credential_issuer"]; !ok {
		body["credential_issuer"] = e.issuer
	}
	return jsonVerdict(backend.ActionOK, body), nil
}
