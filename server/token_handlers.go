package server

import (
	"net/http"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/rs/zerolog"
)

// Token exchanges code/credentials for tokens
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		creds, err := clientCredentials(r)
		if err != nil {
			zerolog.Ctx(r.Context()).Info().Err(err).Msg("token request without usable client credentials")
			s.unauthorizedClient(w, "Client authentication failed.")
			return
		}

		verdict, err := s.backend.Token(r.Context(), backend.TokenRequest{
			Parameters:  withoutClientSecret(r.PostForm),
			Credentials: creds,
		})
		if err != nil {
			backendFailure(r.Context(), w, "token", err)
			return
		}
		s.writeVerdict(w, r, "token", tokenTable, verdict)
	}
}

// Introspection lets registered resource servers inspect tokens (RFC 7662).
func (s *Server) Introspection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, secret, present, err := basicCredentials(r)
		if !present || err != nil {
			s.unauthorizedClient(w, "Resource server authentication is required.")
			return
		}
		if _, err := s.credentials.AuthenticateResourceServer(id, secret); err != nil {
			zerolog.Ctx(r.Context()).Info().Str("resource_server", id).Msg("resource server authentication failed")
			s.unauthorizedClient(w, "Resource server authentication failed.")
			return
		}

		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		verdict, err := s.backend.Introspect(r.Context(), r.PostForm)
		if err != nil {
			backendFailure(r.Context(), w, "introspection", err)
			return
		}
		s.writeVerdict(w, r, "introspection", introspectionTable, verdict)
	}
}

// Revocation revokes access and refresh tokens (RFC 7009).
func (s *Server) Revocation() http.HandlerFunc {
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

		verdict, err := s.backend.Revoke(r.Context(), backend.RevocationRequest{
			Parameters:  withoutClientSecret(r.PostForm),
			Credentials: creds,
		})
		if err != nil {
			backendFailure(r.Context(), w, "revocation", err)
			return
		}
		s.writeVerdict(w, r, "revocation", revocationTable, verdict)
	}
}
