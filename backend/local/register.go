package local

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth-frontend/backend"
)

// ClientMetadata is the subset of RFC 7591 client metadata the engine honours.
type ClientMetadata struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

type registrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope"`
}

// RegisterClient implements dynamic client registration (RFC 7591).
func (e *Engine) RegisterClient(_ context.Context, metadata []byte) (*backend.Verdict, error) {
	var md ClientMetadata
	if err := json.Unmarshal(metadata, &md); err != nil {
		return errorVerdict(backend.ActionBadRequest, "invalid_client_metadata", "The registration request is not a JSON object."), nil
	}
	v, _ := e.register(md)
	return v, nil
}

// register validates metadata and stores a new client.
func (e *Engine) register(md ClientMetadata) (*backend.Verdict, *Client) {
	if len(md.RedirectURIs) == 0 {
		return errorVerdict(backend.ActionBadRequest, "invalid_redirect_uri", "At least one redirect_uri is required."), nil
	}
	for _, uri := range md.RedirectURIs {
		u, err := url.Parse(uri)
		if err != nil || !u.IsAbs() || u.Fragment != "" {
			return errorVerdict(backend.ActionBadRequest, "invalid_redirect_uri", "The redirect_uri '"+uri+"' is not an absolute URI without a fragment."), nil
		}
	}

	authMethod := md.TokenEndpointAuthMethod
	switch authMethod {
	case "":
		authMethod = "client_secret_basic"
	case "client_secret_basic", "client_secret_post", "none":
	default:
		return errorVerdict(backend.ActionBadRequest, "invalid_client_metadata", "Unsupported token_endpoint_auth_method '"+authMethod+"'."), nil
	}

	scopes := splitScopes(md.Scope)
	for _, s := range scopes {
		if !slices.Contains(DefaultScopes, s) {
			return errorVerdict(backend.ActionBadRequest, "invalid_client_metadata", "The scope '"+s+"' is not supported."), nil
		}
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	grantTypes := md.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{string(AuthorizationCodeGrant), string(RefreshTokenGrant)}
	}
	responseTypes := md.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{codeResponseType}
	}

	client := &Client{
		ID:           uuid.NewString(),
		Type:         ClientTypeConfidential,
		Name:         md.ClientName,
		RedirectURIs: md.RedirectURIs,
		Scopes:       scopes,
		IssuedAt:     e.nowTime(),
	}
	if authMethod == "none" {
		client.Type = ClientTypePublic
	} else {
		secret, err := randomToken()
		if err != nil {
			return internalErrorVerdict(err), nil
		}
		client.Secret = secret
	}
	e.clients.Upsert(client)

	return jsonVerdict(backend.ActionCreated, registrationResponse{
		ClientID:                client.ID,
		ClientSecret:            client.Secret,
		ClientIDIssuedAt:        client.IssuedAt.Unix(),
		ClientSecretExpiresAt:   0,
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		TokenEndpointAuthMethod: authMethod,
		Scope:                   strings.Join(scopes, " "),
	}), client
}
