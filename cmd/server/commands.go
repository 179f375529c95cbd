package main

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-oauth-frontend/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

type serveFlags struct {
	configFile  string
	port        string
	baseURL     string
	backendKind string
	ticketStore string
	logLevel    string
}

func newRootCommand() *cobra.Command {
	flags := &serveFlags{}

	root := &cobra.Command{
		Use:           "authfront",
		Short:         "OAuth 2.0 / OpenID Connect authorization server front end",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "configuration file (yaml, json or toml)")
	pf.StringVar(&flags.port, "port", "", "listen port")
	pf.StringVar(&flags.baseURL, "base-url", "", "public base URL, used as the issuer")
	pf.StringVar(&flags.backendKind, "backend", "", "decision backend: local or authlete")
	pf.StringVar(&flags.ticketStore, "ticket-store", "", "ticket store: memory or redis")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, flags)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func serve(cmd *cobra.Command, flags *serveFlags) error {
	c, err := config.Load(config.LoadOptions{
		File:      flags.configFile,
		Overrides: flags.overrides(cmd),
	})
	if err != nil {
		return err
	}
	return runUntilStopped(c)
}

// overrides returns only the flags that were set on the command line.
func (f *serveFlags) overrides(cmd *cobra.Command) map[string]any {
	keys := map[string]struct {
		key   string
		value string
	}{
		"port":         {"port", f.port},
		"base-url":     {"base_url", f.baseURL},
		"backend":      {"backend.kind", strings.ToLower(f.backendKind)},
		"ticket-store": {"tickets.store", strings.ToLower(f.ticketStore)},
		"log-level":    {"log_level", f.logLevel},
	}

	overrides := make(map[string]any)
	for name, o := range keys {
		if cmd.Flags().Changed(name) {
			overrides[o.key] = o.value
		}
	}
	return overrides
}
