package server

import "net/http"

func (s *Server) initRoutes() {
	// Authorization flow (browser facing)
	s.RegisterRouteHandler("GET "+RouteAuthorization, ChainMiddleware(s.Authorization(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthorization, ChainMiddleware(s.Authorization(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthorizationDecision, ChainMiddleware(s.AuthorizationDecision(), s.HTMLMiddleware()...))

	// Client and resource server APIs
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteIntrospection, ChainMiddleware(s.Introspection(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRevocation, ChainMiddleware(s.Revocation(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RoutePAR, ChainMiddleware(s.PushedAuthorizationRequest(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.Register(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteGrantManagement, ChainMiddleware(s.GrantManagement(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteGrantManagement, ChainMiddleware(s.GrantManagement(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteUserInfo, ChainMiddleware(s.UserInfo(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteUserInfo, ChainMiddleware(s.UserInfo(), s.APIMiddleware()...))

	// Metadata
	s.RegisterRouteHandler("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.WellKnownOpenIDConfig(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteJWKS, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownFederation, ChainMiddleware(s.FederationConfiguration(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteFederationRegister, ChainMiddleware(s.FederationRegistration(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownCredentialIssuer, ChainMiddleware(s.CredentialIssuerMetadata(), s.APIMiddleware()...))

	// Browsers preflight the cross-origin API calls
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.CorsMiddleware))

	s.RegisterRouteFunc("GET "+RouteHealth, s.Health())
	if s.metrics != nil && s.config.GetMetricsEnabled() {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	}
}
