package local

import (
	"context"
	"slices"

	"github.com/jrsteele09/go-oauth-frontend/backend"
)

// recordGrant creates or updates the grant requested with the code and
// returns its id, or "" when the client did not ask for grant management.
func (e *Engine) recordGrant(code *authorizationCode) (string, *protocolError) {
	e.lock.Lock()
	defer e.lock.Unlock()

	switch code.grantAction {
	case grantActionCreate:
		g := &grant{
			id:        newGrantID(),
			clientID:  code.clientID,
			subject:   code.subject,
			scopes:    slices.Clone(code.scopes),
			createdAt: e.nowTime(),
		}
		e.grants[g.id] = g
		return g.id, nil
	case grantActionUpdate:
		g, ok := e.grants[code.grantID]
		if !ok || g.clientID != code.clientID || g.subject != code.subject {
			return "", newProtocolError("invalid_grant", "The grant to update is not found.")
		}
		for _, s := range code.scopes {
			if !slices.Contains(g.scopes, s) {
				g.scopes = append(g.scopes, s)
			}
		}
		return g.id, nil
	default:
		return "", nil
	}
}

func (e *Engine) grantExists(id string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	_, ok := e.grants[id]
	return ok
}

// activeAccessToken returns a copy of a live access token.
func (e *Engine) activeAccessToken(value string) (issuedToken, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	t, ok := e.accessTokens[value]
	if !ok || !t.active(e.nowTime()) {
		return issuedToken{}, false
	}
	return *t, true
}

type grantScope struct {
	Scope string `json:"scope"`
}

type grantResponse struct {
	Scopes    []grantScope `json:"scopes"`
	ClientID  string       `json:"client_id"`
	Subject   string       `json:"sub,omitempty"`
	CreatedAt int64        `json:"created_at"`
}

// GrantManagement implements the query and revoke operations of RFC 9356.
func (e *Engine) GrantManagement(_ context.Context, req backend.GrantManagementRequest) (*backend.Verdict, error) {
	tok, ok := e.activeAccessToken(req.AccessToken)
	if !ok {
		return bearerChallenge(backend.ActionUnauthorized, "invalid_token", "The access token is invalid or has expired.", ""), nil
	}

	required := scopeGrantQuery
	if req.Action == backend.GrantRevoke {
		required = scopeGrantRevoke
	}
	if !slices.Contains(tok.scopes, required) {
		return bearerChallenge(backend.ActionForbidden, "insufficient_scope", "The access token lacks the "+required+" scope.", required), nil
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	g, ok := e.grants[req.GrantID]
	if !ok || g.clientID != tok.clientID {
		return errorVerdict(backend.ActionNotFound, "invalid_grant", "The grant is not found."), nil
	}

	switch req.Action {
	case backend.GrantQuery:
		resp := grantResponse{ClientID: g.clientID, Subject: g.subject, CreatedAt: g.createdAt.Unix()}
		for _, s := range g.scopes {
			resp.Scopes = append(resp.Scopes, grantScope{Scope: s})
		}
		return jsonVerdict(backend.ActionOK, resp), nil
	case backend.GrantRevoke:
		delete(e.grants, g.id)
		for k, t := range e.accessTokens {
			if t.grantID == g.id {
				delete(e.accessTokens, k)
			}
		}
		for k, t := range e.refreshTokens {
			if t.grantID == g.id {
				delete(e.refreshTokens, k)
			}
		}
		return &backend.Verdict{Action: backend.ActionNoContent}, nil
	default:
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "Unsupported grant management action."), nil
	}
}
