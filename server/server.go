package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/credentials"
	"github.com/jrsteele09/go-oauth-frontend/internal/config"
	"github.com/jrsteele09/go-oauth-frontend/internal/metrics"
	"github.com/jrsteele09/go-oauth-frontend/tickets"
	"github.com/rs/zerolog/log"
)

// Server is the HTTP front end. Every collaborator is injected; the server
// keeps no protocol state of its own beyond the ticket registry.
type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	realm       string
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	backend     backend.Backend
	tickets     tickets.Registry
	credentials credentials.Store
	metrics     *metrics.Manager
	nowTime     func() time.Time

	authorizationPage *template.Template
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request and verdict metrics and serves them on /metrics.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(config config.Config, decisions backend.Backend, ticketRegistry tickets.Registry, store credentials.Store, opts ...Option) (*Server, error) {
	if decisions == nil || ticketRegistry == nil || store == nil {
		return nil, fmt.Errorf("[Server New] backend, ticket registry and credential store are required")
	}

	s := &Server{
		env:         config.GetEnv(),
		realm:       config.GetRealm(),
		mux:         http.NewServeMux(),
		config:      config,
		backend:     decisions,
		tickets:     ticketRegistry,
		credentials: store,
		nowTime:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.authorizationPage, err = ParseTemplate("authorization.html"); err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse authorization template: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
