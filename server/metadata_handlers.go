package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := s.backend.ServiceConfiguration(r.Context())
		if err != nil {
			backendFailure(r.Context(), w, "discovery", err)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		writeRaw(w, http.StatusOK, contentTypeJSON, doc)
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.backend.ServiceJWKS(r.Context())
		if err != nil {
			backendFailure(r.Context(), w, "jwks", err)
			return
		}
		if len(strings.TrimSpace(string(jwks))) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeRaw(w, http.StatusOK, contentTypeJSON, jwks)
	}
}

// FederationConfiguration serves the signed entity configuration (OpenID Federation 1.0).
func (s *Server) FederationConfiguration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verdict, err := s.backend.FederationConfiguration(r.Context())
		if err != nil {
			backendFailure(r.Context(), w, "federation_configuration", err)
			return
		}
		s.writeVerdict(w, r, "federation_configuration", federationConfigurationTable, verdict)
	}
}

// FederationRegistration performs explicit registration from a raw entity statement body.
func (s *Server) FederationRegistration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSONError(w, "invalid_request", "Failed to read the request body", http.StatusBadRequest)
			return
		}
		statement := strings.TrimSpace(string(body))
		if statement == "" {
			writeJSONError(w, "invalid_request", "The request body must be an entity statement", http.StatusBadRequest)
			return
		}

		verdict, err := s.backend.FederationRegistration(r.Context(), statement)
		if err != nil {
			backendFailure(r.Context(), w, "federation_registration", err)
			return
		}
		s.writeVerdict(w, r, "federation_registration", federationRegistrationTable, verdict)
	}
}

// CredentialIssuerMetadata serves OpenID4VCI credential issuer metadata.
func (s *Server) CredentialIssuerMetadata() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verdict, err := s.backend.CredentialIssuerMetadata(r.Context())
		if err != nil {
			backendFailure(r.Context(), w, "credential_issuer_metadata", err)
			return
		}
		s.writeVerdict(w, r, "credential_issuer_metadata", credentialIssuerTable, verdict)
	}
}

// Health reports liveness.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
