package authlete

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
)

type authorizationResponse struct {
	apiResponse
	Ticket string `json:"ticket"`
	Client struct {
		ClientID      json.Number `json:"clientId"`
		ClientIDAlias string      `json:"clientIdAlias"`
		ClientName    string      `json:"clientName"`
	} `json:"client"`
	ClientIDAliasUsed bool `json:"clientIdAliasUsed"`
	Scopes            []struct {
		Name string `json:"name"`
	} `json:"scopes"`
	LoginHint string `json:"loginHint"`
}

func (c *Client) Authorize(ctx context.Context, params url.Values) (*backend.Verdict, error) {
	var out authorizationResponse
	in := map[string]any{"parameters": params.Encode()}
	if err := c.call(ctx, "authorization", http.MethodPost, "/auth/authorization", in, &out); err != nil {
		return nil, err
	}

	v := out.verdict()
	if v.Action == backend.ActionInteraction || v.Action == backend.ActionNoInteraction {
		clientID := out.Client.ClientID.String()
		if out.ClientIDAliasUsed && out.Client.ClientIDAlias != "" {
			clientID = out.Client.ClientIDAlias
		}
		scopes := make([]string, 0, len(out.Scopes))
		for _, s := range out.Scopes {
			scopes = append(scopes, s.Name)
		}
		v.Interaction = &backend.Interaction{
			Ticket:              out.Ticket,
			ClientID:            clientID,
			ClientName:          out.Client.ClientName,
			Scopes:              scopes,
			RedirectURI:         params.Get("redirect_uri"),
			State:               params.Get("state"),
			ResponseType:        params.Get("response_type"),
			ResponseMode:        params.Get("response_mode"),
			Nonce:               params.Get("nonce"),
			CodeChallenge:       params.Get("code_challenge"),
			CodeChallengeMethod: params.Get("code_challenge_method"),
			LoginHint:           out.LoginHint,
		}
	}
	return v, nil
}

func (c *Client) Issue(ctx context.Context, req backend.IssueRequest) (*backend.Verdict, error) {
	in := map[string]any{
		"ticket":   req.Ticket,
		"subject":  req.Subject,
		"authTime": req.AuthTime.Unix(),
	}
	return c.callVerdict(ctx, "authorization_issue", "/auth/authorization/issue", in)
}

func (c *Client) Fail(ctx context.Context, req backend.FailRequest) (*backend.Verdict, error) {
	in := map[string]any{
		"ticket": req.Ticket,
		"reason": string(req.Reason),
	}
	return c.callVerdict(ctx, "authorization_fail", "/auth/authorization/fail", in)
}

func (c *Client) Token(ctx context.Context, req backend.TokenRequest) (*backend.Verdict, error) {
	in := map[string]any{
		"parameters":   req.Parameters.Encode(),
		"clientId":     req.Credentials.ClientID,
		"clientSecret": req.Credentials.ClientSecret,
	}
	return c.callVerdict(ctx, "token", "/auth/token", in)
}

func (c *Client) Introspect(ctx context.Context, params url.Values) (*backend.Verdict, error) {
	in := map[string]any{"parameters": params.Encode()}
	return c.callVerdict(ctx, "introspection", "/auth/introspection/standard", in)
}

func (c *Client) Revoke(ctx context.Context, req backend.RevocationRequest) (*backend.Verdict, error) {
	in := map[string]any{
		"parameters":   req.Parameters.Encode(),
		"clientId":     req.Credentials.ClientID,
		"clientSecret": req.Credentials.ClientSecret,
	}
	return c.callVerdict(ctx, "revocation", "/auth/revocation", in)
}

func (c *Client) PushAuthorizationRequest(ctx context.Context, req backend.PushedAuthorizationRequest) (*backend.Verdict, error) {
	in := map[string]any{
		"parameters":   req.Parameters.Encode(),
		"clientId":     req.Credentials.ClientID,
		"clientSecret": req.Credentials.ClientSecret,
	}
	return c.callVerdict(ctx, "par", "/pushed_auth_req", in)
}

func (c *Client) RegisterClient(ctx context.Context, metadata []byte) (*backend.Verdict, error) {
	in := map[string]any{"json": string(metadata)}
	return c.callVerdict(ctx, "registration", "/client/registration", in)
}

func (c *Client) GrantManagement(ctx context.Context, req backend.GrantManagementRequest) (*backend.Verdict, error) {
	in := map[string]any{
		"gmAction":    string(req.Action),
		"grantId":     req.GrantID,
		"accessToken": req.AccessToken,
	}
	return c.callVerdict(ctx, "grant_management", "/gm", in)
}

type userInfoResponse struct {
	apiResponse
	Subject  string      `json:"subject"`
	ClientID json.Number `json:"clientId"`
	Claims   []string    `json:"claims"`
	Token    string      `json:"token"`
}

func (c *Client) UserInfo(ctx context.Context, accessToken string) (*backend.Verdict, error) {
	var out userInfoResponse
	in := map[string]any{"token": accessToken}
	if err := c.call(ctx, "userinfo", http.MethodPost, "/auth/userinfo", in, &out); err != nil {
		return nil, err
	}

	v := out.verdict()
	switch v.Action {
	case backend.ActionOK:
		v.UserInfo = &backend.UserInfoGrant{
			Subject:  out.Subject,
			ClientID: out.ClientID.String(),
			Claims:   out.Claims,
			Token:    out.Token,
		}
	default:
		// For userinfo errors the content is a WWW-Authenticate challenge.
		challengeToHeader(v)
	}
	return v, nil
}

func (c *Client) UserInfoIssue(ctx context.Context, req backend.UserInfoIssueRequest) (*backend.Verdict, error) {
	claims, err := json.Marshal(req.Claims)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "userinfo_issue: marshal claims: %v", err)
	}
	in := map[string]any{
		"token":  req.Token,
		"claims": string(claims),
	}
	var out apiResponse
	if err := c.call(ctx, "userinfo_issue", http.MethodPost, "/auth/userinfo/issue", in, &out); err != nil {
		return nil, err
	}
	v := out.verdict()
	if v.Action != backend.ActionJSON && v.Action != backend.ActionJWT {
		challengeToHeader(v)
	}
	return v, nil
}

func (c *Client) FederationConfiguration(ctx context.Context) (*backend.Verdict, error) {
	return c.callVerdict(ctx, "federation_configuration", "/federation/configuration", map[string]any{})
}

func (c *Client) FederationRegistration(ctx context.Context, entityConfiguration string) (*backend.Verdict, error) {
	in := map[string]any{"entityConfiguration": entityConfiguration}
	return c.callVerdict(ctx, "federation_registration", "/federation/registration", in)
}

func (c *Client) CredentialIssuerMetadata(ctx context.Context) (*backend.Verdict, error) {
	in := map[string]any{"pretty": false}
	return c.callVerdict(ctx, "credential_issuer_metadata", "/vci/metadata", in)
}

func (c *Client) ServiceConfiguration(ctx context.Context) ([]byte, error) {
	var out []byte
	if err := c.call(ctx, "service_configuration", http.MethodGet, "/service/configuration?pretty=false", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ServiceJWKS(ctx context.Context) ([]byte, error) {
	var out []byte
	if err := c.call(ctx, "service_jwks", http.MethodGet, "/service/jwks/get?includePrivateKeys=false&pretty=false", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// challengeToHeader moves a WWW-Authenticate challenge out of the response
// content and replaces the content with the equivalent JSON error body.
func challengeToHeader(v *backend.Verdict) {
	challenge := v.ResponseContent
	if challenge == "" {
		return
	}
	if v.Headers == nil {
		v.Headers = map[string]string{}
	}
	v.Headers["WWW-Authenticate"] = challenge

	params := parseChallenge(challenge)
	body := map[string]string{"error": params["error"]}
	if body["error"] == "" {
		body["error"] = "invalid_token"
	}
	if d := params["error_description"]; d != "" {
		body["error_description"] = d
	}
	data, _ := json.Marshal(body)
	v.ResponseContent = string(data)
}

// parseChallenge reads the auth-params of a single challenge such as
// `Bearer error="invalid_token",error_description="The access token expired"`.
func parseChallenge(challenge string) map[string]string {
	out := map[string]string{}
	rest := challenge
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		rest = rest[i+1:]
	}
	for {
		rest = strings.TrimLeft(rest, " \t,")
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return out
		}
		key := strings.TrimSpace(rest[:eq])
		rest = rest[eq+1:]

		if strings.HasPrefix(rest, `"`) {
			value, n, ok := unquotePrefix(rest)
			if !ok {
				return out
			}
			out[key], rest = value, rest[n:]
			continue
		}
		end := strings.IndexByte(rest, ',')
		if end < 0 {
			end = len(rest)
		}
		out[key], rest = strings.TrimSpace(rest[:end]), rest[end:]
	}
}

func unquotePrefix(s string) (string, int, bool) {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			v, err := strconv.Unquote(s[:i+1])
			return v, i + 1, err == nil
		}
	}
	return "", 0, false
}
