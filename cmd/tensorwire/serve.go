/*
Copyright 2026 The KServe Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	perrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kserve/tensorwire/pkg/config"
	"github.com/kserve/tensorwire/pkg/constants"
	"github.com/kserve/tensorwire/pkg/dispatcher"
	"github.com/kserve/tensorwire/pkg/logging"
	"github.com/kserve/tensorwire/pkg/metrics"
	"github.com/kserve/tensorwire/pkg/session"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	configFile     string
	port           int
	identityHeader string
	maxSessions    int
	sessionTTL     time.Duration
	sweepInterval  time.Duration
	maxFrameBytes  int64
	logLevel       string
}

func (f *serveFlags) addTo(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configFile, "config", "c", "", "TOML file overriding environment settings")
	fs.IntVarP(&f.port, "port", "p", constants.DefaultPort, "Port to listen on")
	fs.StringVar(&f.identityHeader, "identity-header", constants.IdentityHeader, "Header carrying the caller identity")
	fs.IntVar(&f.maxSessions, "max-sessions", 0, "Maximum live sessions, 0 for unbounded")
	fs.DurationVar(&f.sessionTTL, "session-ttl", 0, "Expire sessions idle for this long, 0 to never expire")
	fs.DurationVar(&f.sweepInterval, "sweep-interval", time.Minute, "How often expired sessions are swept")
	fs.Int64Var(&f.maxFrameBytes, "max-frame-bytes", constants.DefaultMaxFrameBytes, "Largest accepted request body")
	fs.StringVar(&f.logLevel, "log-level", logging.DefaultLevel, "Log level: debug, info, warn or error")
}

// apply overrides cfg with every flag set on the command line.
func (f *serveFlags) apply(fs *pflag.FlagSet, cfg *config.ServerConfig) {
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("identity-header") {
		cfg.IdentityHeader = f.identityHeader
	}
	if fs.Changed("max-sessions") {
		cfg.MaxSessions = f.maxSessions
	}
	if fs.Changed("session-ttl") {
		cfg.SessionTTL = f.sessionTTL
	}
	if fs.Changed("sweep-interval") {
		cfg.SweepInterval = f.sweepInterval
	}
	if fs.Changed("max-frame-bytes") {
		cfg.MaxFrameBytes = f.maxFrameBytes
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func newServeCommand() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a tensorwire dispatcher with the built-in handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			if flags.configFile != "" {
				if err := cfg.MergeFile(flags.configFile); err != nil {
					return err
				}
			}
			flags.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	flags.addTo(cmd.Flags())
	return cmd
}

func runServer(ctx context.Context, cfg *config.ServerConfig) error {
	zapLogger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()
	log := logging.NewLogr(zapLogger, "entrypoint")

	store, err := session.NewStore(session.Options{
		MaxSessions: cfg.MaxSessions,
		IdleTimeout: cfg.SessionTTL,
	}, log.WithName("sessions"))
	if err != nil {
		return err
	}
	go store.Run(ctx, cfg.SweepInterval)

	handler, err := newServerHandler(cfg, store, log)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Starting", "port", cfg.Port, "maxSessions", cfg.MaxSessions, "sessionTTL", cfg.SessionTTL)

	errCh := make(chan error, 1)
	go func(name string, s *http.Server) {
		// ErrServerClosed means Shutdown is already underway.
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- perrors.Wrapf(err, "%s server failed", name)
		}
	}("dispatcher", server)

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case serveErr = <-errCh:
		log.Error(serveErr, "Failed to run HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Failed to shut down HTTP server")
	}
	return serveErr
}

// newServerHandler assembles the handler chain. Innermost handlers come first.
func newServerHandler(cfg *config.ServerConfig, store *session.Store, log logr.Logger) (http.Handler, error) {
	registry, err := dispatcher.NewRegistry(builtinRoutes()...)
	if err != nil {
		return nil, err
	}
	metrics.RegisterMetrics()

	d := dispatcher.New(registry, store, log.WithName("dispatcher"),
		dispatcher.WithIdentityHeader(cfg.IdentityHeader),
		dispatcher.WithMaxFrameBytes(cfg.MaxFrameBytes),
	)
	mux := http.NewServeMux()
	mux.Handle(constants.MetricsPath, promhttp.Handler())
	mux.Handle("/", d)

	return &dispatcher.HealthHandler{Log: log, NextHandler: mux}, nil
}
