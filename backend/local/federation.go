package local

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-oauth-frontend/backend"
)

const (
	entityStatementType = "entity-statement+jwt"
	entityStatementTTL  = 24 * time.Hour
)

// entityAlgorithms are the signature algorithms accepted on entity configurations.
var entityAlgorithms = []jose.SignatureAlgorithm{jose.RS256, jose.ES256, jose.PS256}

// FederationConfiguration returns this server's signed entity configuration.
func (e *Engine) FederationConfiguration(_ context.Context) (*backend.Verdict, error) {
	jwks, err := e.keys.jwksClaim()
	if err != nil {
		return internalErrorVerdict(err), nil
	}
	now := e.nowTime()
	statement, err := e.keys.Sign(jwt.MapClaims{
		"iss":  e.issuer,
		"sub":  e.issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(entityStatementTTL).Unix(),
		"jwks": jwks,
		"metadata": map[string]any{
			"openid_provider": e.discoveryDocument(),
			"federation_entity": map[string]any{
				"federation_registration_endpoint": e.issuer + FederationRegPath,
			},
		},
	}, entityStatementType)
	if err != nil {
		return internalErrorVerdict(err), nil
	}
	return &backend.Verdict{Action: backend.ActionOK, ResponseContent: statement}, nil
}

type entityConfiguration struct {
	Issuer   string             `json:"iss"`
	Subject  string             `json:"sub"`
	Expiry   int64              `json:"exp"`
	JWKS     jose.JSONWebKeySet `json:"jwks"`
	Metadata struct {
		RelyingParty *ClientMetadata `json:"openid_relying_party"`
	} `json:"metadata"`
}

// FederationRegistration performs explicit registration of a relying party
// from its self-signed entity configuration. Trust chains to an anchor are
// not resolved: the statement must verify against its own jwks.
func (e *Engine) FederationRegistration(_ context.Context, statement string) (*backend.Verdict, error) {
	jws, err := jose.ParseSigned(statement, entityAlgorithms)
	if err != nil {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The entity configuration is not a signed JWT: "+err.Error()), nil
	}
	if len(jws.Signatures) != 1 {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The entity configuration must carry exactly one signature."), nil
	}

	var ec entityConfiguration
	if err := json.Unmarshal(jws.UnsafePayloadWithoutVerification(), &ec); err != nil {
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The entity configuration payload is not valid JSON."), nil
	}

	keys := ec.JWKS.Key(jws.Signatures[0].Header.KeyID)
	if len(keys) == 0 {
		return errorVerdict(backend.ActionBadRequest, "invalid_trust_chain", "No key in the entity's jwks matches the signature."), nil
	}
	if _, err := jws.Verify(keys[0].Key); err != nil {
		return errorVerdict(backend.ActionBadRequest, "invalid_trust_chain", "The entity configuration signature is invalid."), nil
	}

	switch {
	case ec.Issuer == "" || ec.Issuer != ec.Subject:
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "An entity configuration must have iss equal to sub."), nil
	case ec.Expiry == 0 || !e.nowTime().Before(time.Unix(ec.Expiry, 0)):
		return errorVerdict(backend.ActionBadRequest, "invalid_request", "The entity configuration has expired."), nil
	case ec.Metadata.RelyingParty == nil:
		return errorVerdict(backend.ActionBadRequest, "invalid_metadata", "The entity configuration has no openid_relying_party metadata."), nil
	}

	md := *ec.Metadata.RelyingParty
	if md.ClientName == "" {
		md.ClientName = ec.Subject
	}
	v, _ := e.register(md)
	return v, nil
}
