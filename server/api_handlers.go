package server

import (
	"io"
	"net/http"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/claims"
	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds JSON and JWT request bodies.
const maxBodyBytes = 64 << 10

// PushedAuthorizationRequest accepts authorization parameters from an
// authenticated client ahead of the redirect (RFC 9126).
func (s *Server) PushedAuthorizationRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		creds, err := clientCredentials(r)
		if err != nil {
			s.unauthorizedClient(w, "Client authentication failed.")
			return
		}

		verdict, err := s.backend.PushAuthorizationRequest(r.Context(), backend.PushedAuthorizationRequest{
			Parameters:  withoutClientSecret(r.PostForm),
			Credentials: creds,
		})
		if err != nil {
			backendFailure(r.Context(), w, "par", err)
			return
		}
		s.writeVerdict(w, r, "par", parTable, verdict)
	}
}

// Register performs open dynamic client registration (RFC 7591).
func (s *Server) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metadata, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSONError(w, "invalid_client_metadata", "Failed to read the request body", http.StatusBadRequest)
			return
		}

		verdict, err := s.backend.RegisterClient(r.Context(), metadata)
		if err != nil {
			backendFailure(r.Context(), w, "registration", err)
			return
		}
		s.writeVerdict(w, r, "registration", registrationTable, verdict)
	}
}

// GrantManagement queries (GET) or revokes (DELETE) a grant (RFC 9356).
func (s *Server) GrantManagement() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r, false)
		if err != nil {
			s.unauthorizedBearer(w, "invalid_request", "Missing Bearer token")
			return
		}

		action := backend.GrantQuery
		if r.Method == http.MethodDelete {
			action = backend.GrantRevoke
		}

		verdict, err := s.backend.GrantManagement(r.Context(), backend.GrantManagementRequest{
			Action:      action,
			GrantID:     r.PathValue("grant_id"),
			AccessToken: token,
		})
		if err != nil {
			backendFailure(r.Context(), w, "grant_management", err)
			return
		}
		s.writeVerdict(w, r, "grant_management", grantManagementTable, verdict)
	}
}

// UserInfo returns the claims of the access token's subject that the token
// permits.
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
				return
			}
		}
		token, err := bearerToken(r, r.Method == http.MethodPost)
		if err != nil {
			s.unauthorizedBearer(w, "invalid_token", "Missing or malformed access token")
			return
		}

		ctx := r.Context()
		verdict, err := s.backend.UserInfo(ctx, token)
		if err == nil && verdict == nil {
			err = errors.ErrUnknownAction
		}
		if err != nil {
			backendFailure(ctx, w, "userinfo", err)
			return
		}
		if verdict.Action != backend.ActionOK {
			s.writeVerdict(w, r, "userinfo", userInfoTable, verdict)
			return
		}
		s.metrics.RecordVerdict("userinfo", verdict.Action.String())

		grant := verdict.UserInfo
		if grant == nil || grant.Subject == "" {
			backendFailure(ctx, w, "userinfo", errors.Wrapf(errors.ErrInternal, "userinfo verdict without subject"))
			return
		}

		released := map[string]any{claims.Subject: grant.Subject}
		user, err := s.credentials.GetBySubject(grant.Subject)
		if err != nil {
			// The token outlived the user record: release nothing but sub.
			zerolog.Ctx(ctx).Warn().Err(err).Str("subject", grant.Subject).Msg("userinfo subject not found")
		} else {
			released = claims.Project(user, grant.Claims)
		}

		issueToken := grant.Token
		if issueToken == "" {
			issueToken = token
		}
		issued, err := s.backend.UserInfoIssue(ctx, backend.UserInfoIssueRequest{Token: issueToken, Claims: released})
		if err != nil {
			backendFailure(ctx, w, "userinfo_issue", err)
			return
		}
		s.writeVerdict(w, r, "userinfo_issue", userInfoIssueTable, issued)
	}
}
