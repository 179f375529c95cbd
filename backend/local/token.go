package local

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth-frontend/backend"
)

// Token implements the token endpoint grants.
func (e *Engine) Token(_ context.Context, req backend.TokenRequest) (*backend.Verdict, error) {
	params := req.Parameters
	grantType := GrantType(params.Get("grant_type"))
	if grantType == "" {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The token request does not contain 'grant_type'."), nil
	}

	client, ok := e.authenticateClient(req.Credentials, params)
	if !ok {
		return errorVerdict(backend.ActionInvalidClient, "invalid_client", "Client authentication failed."), nil
	}

	switch grantType {
	case AuthorizationCodeGrant:
		return e.exchangeCode(client, params), nil
	case RefreshTokenGrant:
		return e.refresh(client, params), nil
	case ClientCredentialsGrant:
		return e.clientCredentials(client, params), nil
	case PasswordGrant:
		// The resource owner password flow is left to the caller, which rejects it.
		return &backend.Verdict{Action: backend.ActionPassword}, nil
	default:
		return errorVerdict(backend.ActionBadRequest, "unsupported_grant_type", "The grant type '"+string(grantType)+"' is not supported."), nil
	}
}

func (e *Engine) exchangeCode(client *Client, params url.Values) *backend.Verdict {
	codeValue := params.Get("code")
	if codeValue == "" {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The token request does not contain 'code'.")
	}

	e.lock.Lock()
	code, ok := e.codes[codeValue]
	delete(e.codes, codeValue)
	e.lock.Unlock()

	now := e.nowTime()
	switch {
	case !ok:
		return errorVerdict(backend.ActionBadRequest, "invalid_grant", "The authorization code is not found.")
	case !now.Before(code.expiresAt):
		return errorVerdict(backend.ActionBadRequest, "invalid_grant", "The authorization code has expired.")
	case code.clientID != client.ID:
		return errorVerdict(backend.ActionBadRequest, "invalid_grant", "The authorization code was issued to another client.")
	case code.redirectURIProvided && params.Get("redirect_uri") != code.redirectURI:
		return errorVerdict(backend.ActionBadRequest, "invalid_grant", "The redirect_uri does not match the authorization request.")
	}

	if code.codeChallenge != "" {
		if !verifyCodeChallenge(code.codeChallenge, code.codeChallengeMethod, params.Get("code_verifier")) {
			return errorVerdict(backend.ActionBadRequest, "invalid_grant", "PKCE verification failed.")
		}
	} else if params.Get("code_verifier") != "" {
		return errorVerdict(backend.ActionBadRequest, "invalid_grant", "A code_verifier was sent but no code_challenge was registered.")
	}

	grantID, perr := e.recordGrant(code)
	if perr != nil {
		return errorVerdict(backend.ActionBadRequest, perr.Code, perr.Description)
	}

	resp, err := e.mintTokens(client.ID, code.subject, code.scopes, grantID, code.authTime, true)
	if err != nil {
		return internalErrorVerdict(err)
	}
	if slices.Contains(code.scopes, "openid") {
		idToken, err := e.createIDToken(code)
		if err != nil {
			return internalErrorVerdict(err)
		}
		resp.IDToken = idToken
	}
	return jsonVerdict(backend.ActionOK, resp)
}

func (e *Engine) refresh(client *Client, params url.Values) *backend.Verdict {
	value := params.Get("refresh_token")
	if value == "" {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The token request does not contain 'refresh_token'.")
	}

	now := e.nowTime()
	e.lock.Lock()
	rt, ok := e.refreshTokens[value]
	if ok && rt.clientID == client.ID {
		// Rotation: the old refresh token and its access tokens stop working.
		e.revokeRefreshLocked(value)
	}
	e.lock.Unlock()

	if !ok || !rt.active(now) || rt.clientID != client.ID {
		return errorVerdict(backend.ActionBadRequest, "invalid_grant", "The refresh token is invalid or has expired.")
	}

	scopes := rt.scopes
	if requested := splitScopes(params.Get("scope")); len(requested) > 0 {
		for _, s := range requested {
			if !slices.Contains(rt.scopes, s) {
				return errorVerdict(backend.ActionBadRequest, "invalid_scope", "The requested scope exceeds the original grant.")
			}
		}
		scopes = requested
	}

	if rt.grantID != "" && !e.grantExists(rt.grantID) {
		return errorVerdict(backend.ActionBadRequest, "invalid_grant", "The grant has been revoked.")
	}

	resp, err := e.mintTokens(client.ID, rt.subject, scopes, rt.grantID, rt.authTime, true)
	if err != nil {
		return internalErrorVerdict(err)
	}
	return jsonVerdict(backend.ActionOK, resp)
}

func (e *Engine) clientCredentials(client *Client, params url.Values) *backend.Verdict {
	if client.IsPublic() {
		return errorVerdict(backend.ActionBadRequest, "unauthorized_client", "Public clients cannot use the client credentials grant.")
	}
	scopes := splitScopes(params.Get("scope"))
	if err := client.ValidateScopes(scopes); err != nil {
		return errorVerdict(backend.ActionBadRequest, "invalid_scope", err.Error())
	}
	if slices.Contains(scopes, "openid") {
		return errorVerdict(backend.ActionBadRequest, "invalid_scope", "The openid scope requires an end-user.")
	}

	resp, err := e.mintTokens(client.ID, "", scopes, "", time.Time{}, false)
	if err != nil {
		return internalErrorVerdict(err)
	}
	return jsonVerdict(backend.ActionOK, resp)
}

// mintTokens stores a new access token and, when withRefresh, a refresh token.
func (e *Engine) mintTokens(clientID, subject string, scopes []string, grantID string, authTime time.Time, withRefresh bool) (*TokenResponse, error) {
	now := e.nowTime()
	accessValue, err := randomToken()
	if err != nil {
		return nil, err
	}
	access := &issuedToken{
		value:     accessValue,
		clientID:  clientID,
		subject:   subject,
		scopes:    slices.Clone(scopes),
		grantID:   grantID,
		authTime:  authTime,
		issuedAt:  now,
		expiresAt: now.Add(e.accessTokenExpiry()),
	}

	resp := &TokenResponse{
		AccessToken: accessValue,
		TokenType:   "Bearer",
		ExpiresIn:   int64(e.accessTokenExpiry().Seconds()),
		Scope:       strings.Join(scopes, " "),
		GrantID:     grantID,
	}

	var refresh *issuedToken
	if withRefresh {
		refreshValue, err := randomToken()
		if err != nil {
			return nil, err
		}
		refresh = &issuedToken{
			value:     refreshValue,
			clientID:  clientID,
			subject:   subject,
			scopes:    slices.Clone(scopes),
			grantID:   grantID,
			authTime:  authTime,
			issuedAt:  now,
			expiresAt: now.Add(e.config.GetDefaultRefreshTokenExpiry()),
		}
		access.refresh = refreshValue
		resp.RefreshToken = refreshValue
	}

	e.lock.Lock()
	e.accessTokens[accessValue] = access
	if refresh != nil {
		e.refreshTokens[refresh.value] = refresh
	}
	e.lock.Unlock()
	return resp, nil
}

// Introspect implements RFC 7662 for access and refresh tokens.
func (e *Engine) Introspect(_ context.Context, params url.Values) (*backend.Verdict, error) {
	value := params.Get("token")
	if value == "" {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The introspection request does not contain 'token'."), nil
	}

	now := e.nowTime()
	e.lock.Lock()
	tok, tokenType := e.lookupTokenLocked(value, params.Get("token_type_hint"))
	e.lock.Unlock()

	if !tok.active(now) {
		return jsonVerdict(backend.ActionOK, map[string]any{"active": false}), nil
	}

	body := map[string]any{
		"active":     true,
		"client_id":  tok.clientID,
		"scope":      strings.Join(tok.scopes, " "),
		"token_type": tokenType,
		"iat":        tok.issuedAt.Unix(),
		"exp":        tok.expiresAt.Unix(),
		"iss":        e.issuer,
	}
	if tok.subject != "" {
		body["sub"] = tok.subject
	}
	if tok.grantID != "" {
		body["grant_id"] = tok.grantID
	}
	return jsonVerdict(backend.ActionOK, body), nil
}

// Revoke implements RFC 7009. Unknown tokens are not an error.
func (e *Engine) Revoke(_ context.Context, req backend.RevocationRequest) (*backend.Verdict, error) {
	client, ok := e.authenticateClient(req.Credentials, req.Parameters)
	if !ok {
		return errorVerdict(backend.ActionInvalidClient, "invalid_client", "Client authentication failed."), nil
	}
	value := req.Parameters.Get("token")
	if value == "" {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The revocation request does not contain 'token'."), nil
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	tok, tokenType := e.lookupTokenLocked(value, req.Parameters.Get("token_type_hint"))
	if tok == nil {
		return &backend.Verdict{Action: backend.ActionOK}, nil
	}
	if tok.clientID != client.ID {
		return errorVerdict(backend.ActionBadRequest, "unauthorized_client", "The token was issued to another client."), nil
	}

	if tokenType == "refresh_token" {
		e.revokeRefreshLocked(value)
	} else {
		delete(e.accessTokens, value)
	}
	return &backend.Verdict{Action: backend.ActionOK}, nil
}

func (e *Engine) lookupTokenLocked(value, hint string) (*issuedToken, string) {
	if hint == "refresh_token" {
		if t, ok := e.refreshTokens[value]; ok {
			return t, "refresh_token"
		}
	}
	if t, ok := e.accessTokens[value]; ok {
		return t, "Bearer"
	}
	if t, ok := e.refreshTokens[value]; ok {
		return t, "refresh_token"
	}
	return nil, ""
}

// revokeRefreshLocked drops a refresh token and every access token minted with it.
func (e *Engine) revokeRefreshLocked(value string) {
	delete(e.refreshTokens, value)
	for k, t := range e.accessTokens {
		if t.refresh == value {
			delete(e.accessTokens, k)
		}
	}
}

func verifyCodeChallenge(challenge string, method CodeMethodType, verifier string) bool {
	if verifier == "" {
		return false
	}
	var computed string
	switch method {
	case CodeMethodTypeS256:
		sum := sha256.Sum256([]byte(verifier))
		computed = base64.RawURLEncoding.EncodeToString(sum[:])
	case CodeMethodTypePlain:
		computed = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

func newGrantID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
