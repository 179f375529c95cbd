package local

import (
	"context"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-oauth-frontend/backend"
)

// authenticateClient resolves the calling client from explicit credentials,
// falling back to client_id/client_secret form parameters.
func (e *Engine) authenticateClient(creds backend.ClientCredentials, params url.Values) (*Client, bool) {
	clientID, secret := creds.ClientID, creds.ClientSecret
	if clientID == "" {
		clientID, secret = params.Get("client_id"), params.Get("client_secret")
	}
	if clientID == "" {
		return nil, false
	}
	client, err := e.clients.Get(clientID)
	if err != nil {
		return nil, false
	}
	if !client.Authenticate(secret) {
		return nil, false
	}
	if bodyID := params.Get("client_id"); bodyID != "" && bodyID != client.ID {
		return nil, false
	}
	return client, true
}

// PushAuthorizationRequest stores a validated authorization request and
// returns the request_uri that stands in for it (RFC 9126).
func (e *Engine) PushAuthorizationRequest(_ context.Context, req backend.PushedAuthorizationRequest) (*backend.Verdict, error) {
	client, ok := e.authenticateClient(req.Credentials, req.Parameters)
	if !ok {
		return errorVerdict(backend.ActionUnauthorized, "invalid_client", "Client authentication failed."), nil
	}

	values := cloneValues(req.Parameters)
	values.Del("client_secret")
	values.Set("client_id", client.ID)
	if values.Get("request_uri") != "" {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "'request_uri' is not allowed in a pushed authorization request."), nil
	}

	params := parseAuthorizationParameters(values)
	if _, perr := params.resolveClient(e.clients); perr != nil {
		return errorVerdict(backend.ActionBadRequest, perr.Code, perr.Description), nil
	}
	if perr := params.validate(client); perr != nil {
		return errorVerdict(backend.ActionBadRequest, perr.Code, perr.Description), nil
	}

	token, err := randomToken()
	if err != nil {
		return internalErrorVerdict(err), nil
	}
	expiresIn := e.config.GetPushedRequestExpiry()
	requestURI := requestURIPrefix + token

	e.lock.Lock()
	e.pushed[requestURI] = &pushedRequest{
		params:    params,
		clientID:  client.ID,
		expiresAt: e.nowTime().Add(expiresIn),
	}
	e.lock.Unlock()

	return jsonVerdict(backend.ActionCreated, map[string]any{
		"request_uri": requestURI,
		"expires_in":  int64(expiresIn.Seconds()),
	}), nil
}

// resolvePushedRequest swaps a request_uri for the pushed parameters. A
// request_uri can be used once.
func (e *Engine) resolvePushedRequest(p *AuthorizationParameters) (*AuthorizationParameters, *protocolError) {
	if !strings.HasPrefix(p.RequestURI, requestURIPrefix) {
		return nil, newProtocolError("invalid_request_uri", "The request_uri is not a pushed authorization request URI.")
	}

	e.lock.Lock()
	pushed, ok := e.pushed[p.RequestURI]
	delete(e.pushed, p.RequestURI)
	e.lock.Unlock()

	if !ok || !e.nowTime().Before(pushed.expiresAt) {
		return nil, newProtocolError("invalid_request_uri", "The request_uri is unknown or has expired.")
	}
	if p.ClientID != "" && p.ClientID != pushed.clientID {
		return nil, newProtocolError("invalid_request", "The client_id does not match the pushed request.")
	}
	resolved := *pushed.params
	return &resolved, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
