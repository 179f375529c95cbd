package server

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
)

// basicCredentials parses an HTTP Basic Authorization header. present
// reports whether any Authorization header was sent at all, so a malformed
// header is never mistaken for an absent one.
func basicCredentials(r *http.Request) (id, secret string, present bool, err error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "", false, nil
	}

	scheme, encoded, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return "", "", true, errors.Wrapf(errors.ErrInvalidCredentials, "unsupported authorization scheme")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", true, errors.Wrapf(errors.ErrInvalidCredentials, "malformed basic credentials")
	}
	id, secret, found = strings.Cut(string(raw), ":")
	if !found || id == "" {
		return "", "", true, errors.Wrapf(errors.ErrInvalidCredentials, "malformed basic credentials")
	}
	// RFC 6749 section 2.3.1 form-encodes both parts before base64.
	return formDecode(id), formDecode(secret), true, nil
}

func formDecode(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

// clientCredentials authenticates the calling client from Basic auth, or from
// the client_id/client_secret form parameters when no header is sent. The
// form must already be parsed.
func clientCredentials(r *http.Request) (backend.ClientCredentials, error) {
	id, secret, present, err := basicCredentials(r)
	if err != nil {
		return backend.ClientCredentials{}, err
	}
	if present {
		return backend.ClientCredentials{ClientID: id, ClientSecret: secret}, nil
	}

	clientID := r.PostForm.Get("client_id")
	if clientID == "" {
		return backend.ClientCredentials{}, errors.ErrMissingCredentials
	}
	return backend.ClientCredentials{ClientID: clientID, ClientSecret: r.PostForm.Get("client_secret")}, nil
}

// bearerToken extracts an RFC 6750 access token from the Authorization header,
// or from the access_token form parameter when allowForm is set.
func bearerToken(r *http.Request, allowForm bool) (string, error) {
	header := r.Header.Get("Authorization")
	if header != "" {
		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errors.Wrapf(errors.ErrInvalidCredentials, "malformed bearer credentials")
		}
		return token, nil
	}
	if allowForm {
		if token := r.PostForm.Get("access_token"); token != "" {
			return token, nil
		}
	}
	return "", errors.ErrMissingCredentials
}

// withoutClientSecret copies form parameters minus the client secret, which
// travels to the backend in ClientCredentials only.
func withoutClientSecret(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, vs := range values {
		if k == "client_secret" {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// unauthorizedClient rejects a request before any backend call.
func (s *Server) unauthorizedClient(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+s.realm+`"`)
	writeJSONError(w, "invalid_client", description, http.StatusUnauthorized)
}

// unauthorizedBearer rejects a resource-owner request before any backend call.
func (s *Server) unauthorizedBearer(w http.ResponseWriter, code, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="`+s.realm+`", error="`+code+`"`)
	writeJSONError(w, code, description, http.StatusUnauthorized)
}
