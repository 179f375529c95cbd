package local

import (
	"context"
	"slices"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/claims"
)

// scopeClaims maps the OpenID Connect scope values to the claims they release.
var scopeClaims = map[string][]string{
	"profile": {
		claims.Name, claims.FamilyName, claims.GivenName, claims.MiddleName,
		claims.Nickname, claims.PreferredUsername, claims.Profile, claims.Picture,
		claims.Website, claims.Gender, claims.Birthdate, claims.Zoneinfo,
		claims.Locale, claims.UpdatedAt,
	},
	"email":   {claims.Email, claims.EmailVerified},
	"phone":   {claims.PhoneNumber, claims.PhoneNumberVerified},
	"address": {claims.Address},
}

func claimsForScopes(scopes []string) []string {
	var names []string
	for _, s := range scopes {
		names = append(names, scopeClaims[s]...)
	}
	return names
}

// UserInfo checks an access token presented at the userinfo endpoint.
func (e *Engine) UserInfo(_ context.Context, accessToken string) (*backend.Verdict, error) {
	if accessToken == "" {
		return bearerChallenge(backend.ActionBadRequest, "invalid_request", "The request does not contain an access token.", ""), nil
	}
	tok, ok := e.activeAccessToken(accessToken)
	if !ok {
		return bearerChallenge(backend.ActionUnauthorized, "invalid_token", "The access token is invalid or has expired.", ""), nil
	}
	if tok.subject == "" || !slices.Contains(tok.scopes, "openid") {
		return bearerChallenge(backend.ActionForbidden, "insufficient_scope", "The access token does not cover the openid scope.", "openid"), nil
	}
	return &backend.Verdict{
		Action: backend.ActionOK,
		UserInfo: &backend.UserInfoGrant{
			Subject:  tok.subject,
			ClientID: tok.clientID,
			Claims:   claimsForScopes(tok.scopes),
			Token:    accessToken,
		},
	}, nil
}

// UserInfoIssue builds the userinfo response from claims gathered by the caller.
func (e *Engine) UserInfoIssue(_ context.Context, req backend.UserInfoIssueRequest) (*backend.Verdict, error) {
	tok, ok := e.activeAccessToken(req.Token)
	if !ok {
		return bearerChallenge(backend.ActionUnauthorized, "invalid_token", "The access token is invalid or has expired.", ""), nil
	}

	body := make(map[string]any, len(req.Claims)+1)
	for k, v := range req.Claims {
		body[k] = v
	}
	// The subject always comes from the token.
	body[claims.Subject] = tok.subject
	return jsonVerdict(backend.ActionJSON, body), nil
}
