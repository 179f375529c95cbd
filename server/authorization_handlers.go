package server

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
	"github.com/jrsteele09/go-oauth-frontend/tickets"
	"github.com/rs/zerolog"
)

// AuthorizationPageData contains data for rendering the authorization page
type AuthorizationPageData struct {
	AppName      string
	Ticket       string
	ClientID     string
	ClientName   string
	Scopes       []string
	LoginHint    string
	DecisionPath string
}

// Authorization handles GET (query) and POST (form) authorization requests.
func (s *Server) Authorization() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
				return
			}
			params = r.PostForm
		}

		verdict, err := s.backend.Authorize(r.Context(), params)
		if err == nil && verdict == nil {
			err = errors.ErrUnknownAction
		}
		if err != nil {
			backendFailure(r.Context(), w, "authorization", err)
			return
		}

		switch verdict.Action {
		case backend.ActionInteraction:
			s.metrics.RecordVerdict("authorization", verdict.Action.String())
			s.promptForDecision(w, r, verdict)
		case backend.ActionNoInteraction:
			s.metrics.RecordVerdict("authorization", verdict.Action.String())
			// No end-user session is kept, so the request can only fail.
			s.failNoInteraction(w, r, verdict)
		default:
			s.writeVerdict(w, r, "authorization", authorizationTable, verdict)
		}
	}
}

func (s *Server) promptForDecision(w http.ResponseWriter, r *http.Request, verdict *backend.Verdict) {
	interaction := verdict.Interaction
	if interaction == nil || interaction.Ticket == "" {
		backendFailure(r.Context(), w, "authorization", errors.Wrapf(errors.ErrInternal, "interaction verdict without ticket"))
		return
	}

	ticket, err := s.tickets.Issue(r.Context(), tickets.RequestContext{
		ClientID:            interaction.ClientID,
		ClientName:          interaction.ClientName,
		Scope:               strings.Join(interaction.Scopes, " "),
		RedirectURI:         interaction.RedirectURI,
		State:               interaction.State,
		ResponseType:        interaction.ResponseType,
		ResponseMode:        interaction.ResponseMode,
		Nonce:               interaction.Nonce,
		CodeChallenge:       interaction.CodeChallenge,
		CodeChallengeMethod: interaction.CodeChallengeMethod,
		BackendTicket:       interaction.Ticket,
	})
	if err != nil {
		s.metrics.RecordTicket("issue", "error")
		zerolog.Ctx(r.Context()).Err(err).Msg("failed to issue authorization ticket")
		writeJSONError(w, "server_error", "", http.StatusInternalServerError)
		return
	}
	s.metrics.RecordTicket("issue", "ok")

	data := AuthorizationPageData{
		AppName:      s.config.GetAppName(),
		Ticket:       ticket,
		ClientID:     interaction.ClientID,
		ClientName:   interaction.ClientName,
		Scopes:       interaction.Scopes,
		LoginHint:    interaction.LoginHint,
		DecisionPath: RouteAuthorizationDecision,
	}

	var buf bytes.Buffer
	if err := s.authorizationPage.Execute(&buf, data); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to render authorization template")
		writeJSONError(w, "server_error", "", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeRaw(w, http.StatusOK, contentTypeHTML, buf.Bytes())
}

func (s *Server) failNoInteraction(w http.ResponseWriter, r *http.Request, verdict *backend.Verdict) {
	if verdict.Interaction == nil || verdict.Interaction.Ticket == "" {
		// Backends that resolve prompt=none themselves answer with a location.
		if verdict.ResponseContent != "" {
			s.writeVerdict(w, r, "authorization", authorizationTable, &backend.Verdict{Action: backend.ActionLocation, ResponseContent: verdict.ResponseContent})
			return
		}
		backendFailure(r.Context(), w, "authorization", errors.Wrapf(errors.ErrInternal, "no-interaction verdict without ticket"))
		return
	}

	failed, err := s.backend.Fail(r.Context(), backend.FailRequest{Ticket: verdict.Interaction.Ticket, Reason: backend.FailNotLoggedIn})
	if err != nil {
		backendFailure(r.Context(), w, "authorization_fail", err)
		return
	}
	s.writeVerdict(w, r, "authorization", authorizationTable, failed)
}

// AuthorizationDecision processes the end-user's decision on a ticket.
func (s *Server) AuthorizationDecision() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)

		request, err := s.tickets.Redeem(ctx, r.PostForm.Get("ticket"))
		s.metrics.RecordTicket("redeem", redeemOutcome(err))
		if err != nil {
			if tickets.IsTicketError(err) {
				logger.Info().Err(err).Msg("authorization ticket rejected")
				s.ticketFailure(w, r, request)
				return
			}
			logger.Err(err).Msg("failed to redeem authorization ticket")
			writeJSONError(w, "server_error", "", http.StatusInternalServerError)
			return
		}

		var verdict *backend.Verdict
		if r.PostForm.Get("authorized") != "true" {
			verdict, err = s.backend.Fail(ctx, backend.FailRequest{Ticket: request.BackendTicket, Reason: backend.FailDenied})
		} else {
			user, authErr := s.credentials.Authenticate(r.PostForm.Get("subject"), r.PostForm.Get("password"))
			switch {
			case authErr == nil:
				verdict, err = s.backend.Issue(ctx, backend.IssueRequest{
					Ticket:   request.BackendTicket,
					Subject:  user.Subject,
					AuthTime: s.nowTime(),
				})
			case errors.Is(authErr, errors.ErrInvalidCredentials), errors.Is(authErr, errors.ErrUserNotFound):
				logger.Info().Str("client_id", request.ClientID).Msg("end-user authentication failed")
				verdict, err = s.backend.Fail(ctx, backend.FailRequest{Ticket: request.BackendTicket, Reason: backend.FailNotAuthenticated})
			default:
				logger.Err(authErr).Msg("credential store unavailable")
				writeJSONError(w, "server_error", "", http.StatusInternalServerError)
				return
			}
		}
		if err != nil {
			// The ticket stays consumed.
			backendFailure(ctx, w, "decision", err)
			return
		}
		s.writeVerdict(w, r, "decision", decisionTable, verdict)
	}
}

func redeemOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errors.ErrTicketNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrTicketExpired):
		return "expired"
	case errors.Is(err, errors.ErrTicketUsed):
		return "used"
	default:
		return "error"
	}
}

// ticketFailure reports an unusable ticket. When the ticket's request is
// still known the error goes to the client's redirect URI like a denial;
// otherwise there is nowhere safe to redirect to.
func (s *Server) ticketFailure(w http.ResponseWriter, r *http.Request, request *tickets.RequestContext) {
	const description = "The authorization ticket is unknown, expired or already used."
	if request == nil || request.RedirectURI == "" {
		writeJSONError(w, "invalid_request", description, http.StatusBadRequest)
		return
	}

	result := url.Values{
		"error":             {"invalid_request"},
		"error_description": {description},
	}
	if request.State != "" {
		result.Set("state", request.State)
	}

	switch request.ResponseMode {
	case "form_post":
		s.renderFormPost(w, r, request.RedirectURI, result)
	case "fragment":
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, request.RedirectURI+"#"+result.Encode(), http.StatusFound)
	default:
		u, err := url.Parse(request.RedirectURI)
		if err != nil {
			writeJSONError(w, "invalid_request", description, http.StatusBadRequest)
			return
		}
		q := u.Query()
		for k, vs := range result {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, u.String(), http.StatusFound)
	}
}

func (s *Server) renderFormPost(w http.ResponseWriter, r *http.Request, action string, values url.Values) {
	page, err := backend.RenderFormPost(action, values)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to render form_post template")
		writeJSONError(w, "server_error", "", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeRaw(w, http.StatusOK, contentTypeHTML, []byte(page))
}
