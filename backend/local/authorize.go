package local

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/pkg/errors"
)

// Authorize validates an authorization request. Valid requests park a
// pending authorization under a fresh ticket and ask for interaction.
func (e *Engine) Authorize(_ context.Context, values url.Values) (*backend.Verdict, error) {
	params := parseAuthorizationParameters(values)

	if params.RequestURI != "" {
		resolved, perr := e.resolvePushedRequest(params)
		if perr != nil {
			return errorVerdict(backend.ActionBadRequest, perr.Code, perr.Description), nil
		}
		params = resolved
	}

	client, perr := params.resolveClient(e.clients)
	if perr != nil {
		return errorVerdict(backend.ActionBadRequest, perr.Code, perr.Description), nil
	}
	if perr := params.validate(client); perr != nil {
		return e.authorizationResponse(params, url.Values{
			"error":             {perr.Code},
			"error_description": {perr.Description},
		})
	}

	ticket := uuid.NewString()
	e.lock.Lock()
	e.pending[ticket] = &pendingAuthorization{
		client:    client,
		params:    params,
		createdAt: e.nowTime(),
	}
	e.lock.Unlock()

	action := backend.ActionInteraction
	if params.promptNone() {
		// No end-user session is kept here, so prompt=none can only fail.
		action = backend.ActionNoInteraction
	}
	return &backend.Verdict{
		Action: action,
		Interaction: &backend.Interaction{
			Ticket:              ticket,
			ClientID:            client.ID,
			ClientName:          client.Name,
			Scopes:              params.Scopes(),
			RedirectURI:         params.RedirectURI,
			State:               params.State,
			ResponseType:        params.ResponseType,
			ResponseMode:        string(params.ResponseMode),
			Nonce:               params.Nonce,
			CodeChallenge:       params.CodeChallenge,
			CodeChallengeMethod: string(params.CodeChallengeMethod),
			LoginHint:           params.LoginHint,
		},
	}, nil
}

// Issue mints an authorization code for a pending authorization.
func (e *Engine) Issue(_ context.Context, req backend.IssueRequest) (*backend.Verdict, error) {
	pending, ok := e.takePending(req.Ticket)
	if !ok {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The ticket is invalid or has expired."), nil
	}
	if req.Subject == "" {
		return internalErrorVerdict(errors.New("subject is required to issue a code")), nil
	}

	code, err := randomToken()
	if err != nil {
		return internalErrorVerdict(err), nil
	}

	authTime := req.AuthTime
	if authTime.IsZero() {
		authTime = e.nowTime()
	}
	p := pending.params
	e.lock.Lock()
	e.codes[code] = &authorizationCode{
		code:                code,
		clientID:            pending.client.ID,
		subject:             req.Subject,
		redirectURI:         p.RedirectURI,
		redirectURIProvided: p.redirectURIProvided,
		scopes:              p.Scopes(),
		nonce:               p.Nonce,
		codeChallenge:       p.CodeChallenge,
		codeChallengeMethod: p.CodeChallengeMethod,
		grantAction:         p.GrantManagementAction,
		grantID:             p.GrantID,
		authTime:            authTime,
		expiresAt:           e.nowTime().Add(e.config.GetAuthCodeTimeout()),
	}
	e.lock.Unlock()

	return e.authorizationResponse(p, url.Values{"code": {code}})
}

// Fail aborts a pending authorization and redirects the error to the client.
func (e *Engine) Fail(_ context.Context, req backend.FailRequest) (*backend.Verdict, error) {
	pending, ok := e.takePending(req.Ticket)
	if !ok {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The ticket is invalid or has expired."), nil
	}

	code, description := failureError(req.Reason)
	return e.authorizationResponse(pending.params, url.Values{
		"error":             {code},
		"error_description": {description},
	})
}

func failureError(reason backend.FailReason) (string, string) {
	switch reason {
	case backend.FailDenied:
		return "access_denied", "The end-user denied the authorization request."
	case backend.FailNotAuthenticated:
		return "access_denied", "The end-user could not be authenticated."
	case backend.FailNotLoggedIn:
		return "login_required", "The end-user has not logged in."
	default:
		return "server_error", "The authorization request could not be completed."
	}
}

func (e *Engine) takePending(ticket string) (*pendingAuthorization, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	pending, ok := e.pending[ticket]
	if !ok {
		return nil, false
	}
	delete(e.pending, ticket)
	if e.pendingExpired(pending, e.nowTime()) {
		return nil, false
	}
	return pending, true
}

// authorizationResponse delivers result to the client's redirect URI using
// the requested response mode. state is always echoed when present.
func (e *Engine) authorizationResponse(p *AuthorizationParameters, result url.Values) (*backend.Verdict, error) {
	if p.State != "" {
		result.Set("state", p.State)
	}
	result.Set("iss", e.issuer)

	switch p.responseMode() {
	case FormPostResponseMode:
		html, err := backend.RenderFormPost(p.RedirectURI, result)
		if err != nil {
			return internalErrorVerdict(err), nil
		}
		return &backend.Verdict{Action: backend.ActionForm, ResponseContent: html}, nil
	case FragmentResponseMode:
		return &backend.Verdict{Action: backend.ActionLocation, ResponseContent: p.RedirectURI + "#" + result.Encode()}, nil
	default:
		u, err := url.Parse(p.RedirectURI)
		if err != nil {
			return internalErrorVerdict(errors.Wrap(err, "invalid redirect uri")), nil
		}
		q := u.Query()
		for k, vs := range result {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
		return &backend.Verdict{Action: backend.ActionLocation, ResponseContent: u.String()}, nil
	}
}
