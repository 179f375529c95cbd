package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

const (
	contentTypeHTML             = "text/html; charset=utf-8"
	contentTypeJSON             = "application/json; charset=utf-8"
	contentTypeJWT              = "application/jwt"
	contentTypeEntityStatement  = "application/entity-statement+jwt"
	contentTypeIntrospectionJWT = "application/token-introspection+jwt"
)

// writeJSONError writes an OAuth2 error response. Error responses are never cached.
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	body := map[string]string{"error": errorCode}
	if description != "" {
		body["error_description"] = description
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// backendFailure reports a decision backend call that did not produce a
// verdict. The cause is logged, never returned to the caller.
func backendFailure(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	zerolog.Ctx(ctx).Err(err).Str("operation", operation).Msg("decision backend call failed")
	writeJSONError(w, "server_error", "The authorization server is temporarily unable to process the request.", http.StatusInternalServerError)
}

func writeRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	if contentType != "" && len(body) > 0 {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}
