package local

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// createIDToken creates an OpenID Connect ID token for the code's subject.
func (e *Engine) createIDToken(code *authorizationCode) (string, error) {
	now := e.nowTime()
	claims := jwt.MapClaims{
		"iss":       e.issuer,
		"sub":       code.subject,
		"aud":       code.clientID,
		"iat":       now.Unix(),
		"exp":       now.Add(e.config.GetDefaultIDTokenExpiry()).Unix(),
		"auth_time": code.authTime.Unix(),
		"jti":       uuid.NewString(),
	}
	if code.nonce != "" {
		claims["nonce"] = code.nonce
	}
	return e.keys.Sign(claims, "")
}

func (e *Engine) accessTokenExpiry() time.Duration {
	return e.config.GetDefaultAccessTokenExpiry()
}
