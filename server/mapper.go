package server

import (
	"net/http"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/rs/zerolog"
)

// response describes how one backend action is rendered on the wire.
type response struct {
	status      int
	contentType string
	// redirect sends the payload as the Location of a 302.
	redirect bool
	// noCache adds the token endpoint's Pragma: no-cache alongside no-store.
	noCache bool
	// basicChallenge adds WWW-Authenticate: Basic realm="<realm>".
	basicChallenge bool
	// body replaces the backend payload.
	body string
}

// actionTable maps every action an endpoint accepts. Actions missing from a
// table are rendered as 500.
type actionTable map[backend.Action]response

var internalError = response{status: http.StatusInternalServerError, contentType: contentTypeJSON, body: `{"error":"server_error"}`}

var (
	authorizationTable = actionTable{
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON},
		backend.ActionLocation:            {status: http.StatusFound, redirect: true},
		backend.ActionForm:                {status: http.StatusOK, contentType: contentTypeHTML},
		backend.ActionInternalServerError: internalError,
	}

	// decisionTable accepts only the two ways of delivering the authorization response.
	decisionTable = actionTable{
		backend.ActionLocation:            {status: http.StatusFound, redirect: true},
		backend.ActionForm:                {status: http.StatusOK, contentType: contentTypeHTML},
		backend.ActionInternalServerError: internalError,
	}

	tokenTable = actionTable{
		backend.ActionOK:                  {status: http.StatusOK, contentType: contentTypeJSON, noCache: true},
		backend.ActionIDTokenReissuable:   {status: http.StatusOK, contentType: contentTypeJSON, noCache: true},
		backend.ActionInvalidClient:       {status: http.StatusUnauthorized, contentType: contentTypeJSON, noCache: true, basicChallenge: true},
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON, noCache: true},
		backend.ActionPassword:            {status: http.StatusBadRequest, contentType: contentTypeJSON, noCache: true, body: `{"error":"unsupported_grant_type"}`},
		backend.ActionInternalServerError: internalError,
	}

	introspectionTable = actionTable{
		backend.ActionOK:                  {status: http.StatusOK, contentType: contentTypeJSON},
		backend.ActionJWT:                 {status: http.StatusOK, contentType: contentTypeIntrospectionJWT},
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}

	revocationTable = actionTable{
		backend.ActionOK:                  {status: http.StatusOK, contentType: contentTypeJSON},
		backend.ActionInvalidClient:       {status: http.StatusUnauthorized, contentType: contentTypeJSON, basicChallenge: true},
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}

	parTable = actionTable{
		backend.ActionCreated:             {status: http.StatusCreated, contentType: contentTypeJSON},
		backend.ActionUnauthorized:        {status: http.StatusUnauthorized, contentType: contentTypeJSON, basicChallenge: true},
		backend.ActionForbidden:           {status: http.StatusForbidden, contentType: contentTypeJSON},
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON},
		backend.ActionPayloadTooLarge:     {status: http.StatusRequestEntityTooLarge, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}

	registrationTable = actionTable{
		backend.ActionCreated:             {status: http.StatusCreated, contentType: contentTypeJSON},
		backend.ActionUnauthorized:        {status: http.StatusUnauthorized, contentType: contentTypeJSON},
		backend.ActionForbidden:           {status: http.StatusForbidden, contentType: contentTypeJSON},
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}

	grantManagementTable = actionTable{
		backend.ActionOK:                  {status: http.StatusOK, contentType: contentTypeJSON},
		backend.ActionNoContent:           {status: http.StatusNoContent},
		backend.ActionUnauthorized:        {status: http.StatusUnauthorized, contentType: contentTypeJSON},
		backend.ActionForbidden:           {status: http.StatusForbidden, contentType: contentTypeJSON},
		backend.ActionNotFound:            {status: http.StatusNotFound, contentType: contentTypeJSON},
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}

	// userInfoTable covers the error verdicts of the token check; OK is
	// handled by the endpoint, which then asks for the response.
	userInfoTable = actionTable{
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON},
		backend.ActionUnauthorized:        {status: http.StatusUnauthorized, contentType: contentTypeJSON},
		backend.ActionForbidden:           {status: http.StatusForbidden, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}

	userInfoIssueTable = actionTable{
		backend.ActionJSON:                {status: http.StatusOK, contentType: contentTypeJSON},
		backend.ActionJWT:                 {status: http.StatusOK, contentType: contentTypeJWT},
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON},
		backend.ActionUnauthorized:        {status: http.StatusUnauthorized, contentType: contentTypeJSON},
		backend.ActionForbidden:           {status: http.StatusForbidden, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}

	federationConfigurationTable = actionTable{
		backend.ActionOK:                  {status: http.StatusOK, contentType: contentTypeEntityStatement},
		backend.ActionNotFound:            {status: http.StatusNotFound, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}

	federationRegistrationTable = actionTable{
		backend.ActionCreated:             {status: http.StatusCreated, contentType: contentTypeJSON},
		backend.ActionBadRequest:          {status: http.StatusBadRequest, contentType: contentTypeJSON},
		backend.ActionNotFound:            {status: http.StatusNotFound, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}

	credentialIssuerTable = actionTable{
		backend.ActionOK:                  {status: http.StatusOK, contentType: contentTypeJSON},
		backend.ActionNotFound:            {status: http.StatusNotFound, contentType: contentTypeJSON},
		backend.ActionInternalServerError: internalError,
	}
)

// lookup returns the rendering for action, falling back to 500.
func (t actionTable) lookup(action backend.Action) (response, bool) {
	resp, ok := t[action]
	if !ok {
		return internalError, false
	}
	return resp, true
}

// writeVerdict renders a backend verdict according to the endpoint's table.
func (s *Server) writeVerdict(w http.ResponseWriter, r *http.Request, endpoint string, table actionTable, v *backend.Verdict) {
	if v == nil {
		v = &backend.Verdict{Action: backend.ActionUnknown}
	}
	s.metrics.RecordVerdict(endpoint, v.Action.String())

	resp, ok := table.lookup(v.Action)
	if !ok {
		zerolog.Ctx(r.Context()).Error().
			Str("endpoint", endpoint).
			Str("action", v.Action.String()).
			Msg("decision backend returned an action this endpoint cannot handle")
	}

	h := w.Header()
	for name, value := range v.Headers {
		h.Set(name, value)
	}
	if resp.status >= http.StatusBadRequest || resp.noCache || resp.redirect {
		h.Set("Cache-Control", "no-store")
	}
	if resp.noCache {
		h.Set("Pragma", "no-cache")
	}
	if resp.basicChallenge {
		h.Set("WWW-Authenticate", `Basic realm="`+s.realm+`"`)
	}

	if resp.redirect {
		h.Set("Location", v.ResponseContent)
		w.WriteHeader(resp.status)
		return
	}

	body := v.ResponseContent
	if resp.body != "" {
		body = resp.body
	}
	if resp.status == http.StatusNoContent {
		body = ""
	}
	if body == "" && resp.status >= http.StatusBadRequest {
		writeJSONError(w, errorCodeForStatus(resp.status), "", resp.status)
		return
	}
	writeRaw(w, resp.status, resp.contentType, []byte(body))
}

// errorCodeForStatus picks an OAuth error code for an error verdict that came
// without a body.
func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "invalid_client"
	case http.StatusForbidden:
		return "access_denied"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "server_error"
	default:
		return "invalid_request"
	}
}
