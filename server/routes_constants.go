package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Authorization flow
	RouteAuthorization         = "/api/authorization"
	RouteAuthorizationDecision = "/api/authorization/decision"

	// Token endpoint family
	RouteToken         = "/api/token"
	RouteIntrospection = "/api/introspection"
	RouteRevocation    = "/api/revocation"

	// Extensions
	RoutePAR             = "/api/par"
	RouteRegister        = "/api/register"
	RouteGrantManagement = "/api/gm/{grant_id}"
	RouteUserInfo        = "/api/userinfo"

	// Metadata
	RouteWellKnownOpenIDConfig     = "/.well-known/openid-configuration"
	RouteJWKS                      = "/api/jwks"
	RouteWellKnownFederation       = "/.well-known/openid-federation"
	RouteFederationRegister        = "/api/federation/register"
	RouteWellKnownCredentialIssuer = "/.well-known/openid-credential-issuer"

	// Operational
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
