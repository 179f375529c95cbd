package local

import (
	"net/url"
	"strings"
)

// ResponseModeType denotes how the authorization response parameters are returned to the client.
type ResponseModeType string

const (
	// QueryResponseMode returns parameters in the URL query string.
	// Example: https://client.example.com/callback?code=ABC123&state=xyz
	QueryResponseMode ResponseModeType = "query"

	// FragmentResponseMode returns parameters in the URL fragment (after #).
	FragmentResponseMode ResponseModeType = "fragment"

	// FormPostResponseMode returns parameters via an auto-submitting HTML form.
	FormPostResponseMode ResponseModeType = "form_post"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
type CodeMethodType string

const (
	// CodeMethodTypeS256: code_challenge = BASE64URL(SHA256(code_verifier))
	CodeMethodTypeS256 CodeMethodType = "S256"

	// CodeMethodTypePlain: code_challenge = code_verifier
	CodeMethodTypePlain CodeMethodType = "plain"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	AuthorizationCodeGrant GrantType = "authorization_code"
	ClientCredentialsGrant GrantType = "client_credentials"
	RefreshTokenGrant      GrantType = "refresh_token"
	PasswordGrant          GrantType = "password"
)

const (
	codeResponseType = "code"
	requestURIPrefix = "urn:ietf:params:oauth:request_uri:"

	// Grant management (RFC 9356)
	grantActionCreate = "create"
	grantActionUpdate = "update"
	scopeGrantQuery   = "grant_management_query"
	scopeGrantRevoke  = "grant_management_revoke"
)

// AuthorizationParameters holds the parameters of an authorization request
// after normalization. Query and form requests produce the same value.
type AuthorizationParameters struct {
	ClientID            string
	ResponseType        string
	RedirectURI         string
	ResponseMode        ResponseModeType
	Scope               string
	State               string
	Nonce               string
	Prompt              string
	LoginHint           string
	CodeChallenge       string
	CodeChallengeMethod CodeMethodType
	RequestURI          string

	// GrantManagementAction is "create" or "update" when the client asks the
	// server to record (or extend) a grant at token issuance.
	GrantManagementAction string
	GrantID               string

	// redirectURIProvided records whether redirect_uri was sent explicitly, in
	// which case the token request must repeat it.
	redirectURIProvided bool
}

func parseAuthorizationParameters(v url.Values) *AuthorizationParameters {
	p := &AuthorizationParameters{
		ClientID:              v.Get("client_id"),
		ResponseType:          v.Get("response_type"),
		RedirectURI:           v.Get("redirect_uri"),
		ResponseMode:          ResponseModeType(v.Get("response_mode")),
		Scope:                 v.Get("scope"),
		State:                 v.Get("state"),
		Nonce:                 v.Get("nonce"),
		Prompt:                v.Get("prompt"),
		LoginHint:             v.Get("login_hint"),
		CodeChallenge:         v.Get("code_challenge"),
		CodeChallengeMethod:   CodeMethodType(v.Get("code_challenge_method")),
		RequestURI:            v.Get("request_uri"),
		GrantManagementAction: v.Get("grant_management_action"),
		GrantID:               v.Get("grant_id"),
	}
	p.redirectURIProvided = p.RedirectURI != ""
	if p.CodeChallenge != "" && p.CodeChallengeMethod == "" {
		p.CodeChallengeMethod = CodeMethodTypePlain
	}
	return p
}

// Scopes returns the requested scopes.
func (p *AuthorizationParameters) Scopes() []string {
	return splitScopes(p.Scope)
}

func (p *AuthorizationParameters) responseMode() ResponseModeType {
	if p.ResponseMode == "" {
		return QueryResponseMode
	}
	return p.ResponseMode
}

func (p *AuthorizationParameters) promptNone() bool {
	for _, v := range strings.Fields(p.Prompt) {
		if v == "none" {
			return true
		}
	}
	return false
}

// protocolError is an OAuth error that the engine either redirects to the
// client or returns as a JSON body.
type protocolError struct {
	Code        string
	Description string
}

func (e *protocolError) Error() string {
	return e.Code + ": " + e.Description
}

func newProtocolError(code, description string) *protocolError {
	return &protocolError{Code: code, Description: description}
}

// resolveClient validates the parts of the request that decide whether errors
// may be redirected: client_id, response_type and redirect_uri. Errors
// returned here must never be sent to the redirect URI.
func (p *AuthorizationParameters) resolveClient(registry *clientRegistry) (*Client, *protocolError) {
	if strings.TrimSpace(p.ClientID) == "" {
		return nil, newProtocolError("invalid_request", "The authorization request does not contain 'client_id'.")
	}
	if strings.TrimSpace(p.ResponseType) == "" {
		return nil, newProtocolError("invalid_request", "The authorization request does not contain 'response_type'.")
	}
	client, err := registry.Get(p.ClientID)
	if err != nil {
		return nil, newProtocolError("invalid_request", "The client ID '"+p.ClientID+"' is not registered.")
	}

	if p.RedirectURI == "" {
		if len(client.RedirectURIs) != 1 {
			return nil, newProtocolError("invalid_request", "The authorization request does not contain 'redirect_uri'.")
		}
		p.RedirectURI = client.RedirectURIs[0]
	}
	if !client.HasRedirectURI(p.RedirectURI) {
		return nil, newProtocolError("invalid_request", "The redirect URI is not registered for the client.")
	}
	return client, nil
}

// validate checks the remaining parameters. Errors returned here are
// redirected to the (already verified) redirect URI.
func (p *AuthorizationParameters) validate(client *Client) *protocolError {
	if p.ResponseType != codeResponseType {
		return newProtocolError("unsupported_response_type", "The response type '"+p.ResponseType+"' is not supported.")
	}

	switch p.ResponseMode {
	case "", QueryResponseMode, FragmentResponseMode, FormPostResponseMode:
	default:
		return newProtocolError("invalid_request", "The response mode '"+string(p.ResponseMode)+"' is not supported.")
	}

	if err := client.ValidateScopes(p.Scopes()); err != nil {
		return newProtocolError("invalid_scope", err.Error())
	}

	if strings.TrimSpace(p.CodeChallenge) != "" {
		switch p.CodeChallengeMethod {
		case CodeMethodTypeS256, CodeMethodTypePlain:
		default:
			return newProtocolError("invalid_request", "The code challenge method is not supported.")
		}
		if len(p.CodeChallenge) < 43 || len(p.CodeChallenge) > 128 {
			return newProtocolError("invalid_request", "The code challenge has an invalid length.")
		}
	} else if client.IsPublic() {
		return newProtocolError("invalid_request", "PKCE is required for public clients.")
	}

	switch p.GrantManagementAction {
	case "":
		if p.GrantID != "" {
			return newProtocolError("invalid_request", "'grant_id' requires 'grant_management_action'.")
		}
	case grantActionCreate:
		if p.GrantID != "" {
			return newProtocolError("invalid_request", "'grant_id' must not be sent with grant_management_action=create.")
		}
	case grantActionUpdate:
		if p.GrantID == "" {
			return newProtocolError("invalid_request", "grant_management_action=update requires 'grant_id'.")
		}
	default:
		return newProtocolError("invalid_request", "Unsupported grant_management_action '"+p.GrantManagementAction+"'.")
	}
	return nil
}
