package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-oauth-frontend/backend"
	"github.com/jrsteele09/go-oauth-frontend/backend/authlete"
	"github.com/jrsteele09/go-oauth-frontend/backend/local"
	"github.com/jrsteele09/go-oauth-frontend/credentials"
	"github.com/jrsteele09/go-oauth-frontend/internal/config"
	"github.com/jrsteele09/go-oauth-frontend/internal/metrics"
	"github.com/jrsteele09/go-oauth-frontend/server"
	"github.com/jrsteele09/go-oauth-frontend/tickets"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxRestarts = 3

// runUntilStopped restarts the server after a recovered panic, up to maxRestarts times.
func runUntilStopped(c config.Config) error {
	setupLogging(c)
	displayAppname(c.GetAppName())

	for attempt := 0; ; attempt++ {
		err := run(c)
		if err == nil {
			break
		}
		if !errors.Is(err, errPanicRecovered) || attempt >= maxRestarts {
			return err
		}
		log.Error().Err(err).Int("attempt", attempt+1).Msg("Restarting server")
		time.Sleep(1 * time.Second)
	}
	log.Info().Msg("Server stopped")
	return nil
}

var errPanicRecovered = errors.New("panic recovered")

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	m := metrics.New()

	decisions, err := newBackend(c, m)
	if err != nil {
		return err
	}
	if closer, ok := decisions.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Warn().Err(err).Msg("Closing decision backend")
			}
		}()
	}

	ticketRegistry, closeTickets, err := newTicketRegistry(c)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeTickets.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing ticket registry")
		}
	}()

	store := credentials.NewFileStore(c.GetUsersFile(), c.GetResourceServersFile())
	if err := store.Load(); err != nil {
		return err
	}

	handler, err := server.New(c, decisions, ticketRegistry, store, server.WithMetrics(m))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func newBackend(c config.Config, m *metrics.Manager) (backend.Backend, error) {
	switch c.GetBackendKind() {
	case config.BackendAuthlete:
		log.Info().Str("base_url", c.GetAuthleteBaseURL()).Msg("Using Authlete decision backend")
		return authlete.New(
			c.GetAuthleteBaseURL(),
			c.GetAuthleteServiceID(),
			c.GetAuthleteAccessToken(),
			c.GetBackendTimeout(),
			authlete.WithObserver(m.ObserveBackendCall),
		), nil
	default:
		log.Info().Str("issuer", c.GetBaseURL()).Msg("Using in-process decision engine")
		return local.New(c.GetBaseURL(), c)
	}
}

func newTicketRegistry(c config.Config) (tickets.Registry, io.Closer, error) {
	opts := []tickets.Option{tickets.WithTTL(c.GetTicketTTL())}

	switch c.GetTicketStore() {
	case config.TicketStoreRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r, err := tickets.NewRedisRegistry(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB(), c.GetRedisKeyPrefix(), opts...)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis ticket store")
		return r, r, nil
	default:
		r := tickets.NewInMemoryRegistry(opts...)
		return r, r, nil
	}
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	if c.GetLogFormat() != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("app", c.GetAppName()).Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
