// Package app runs an xApp: the caller's entrypoint next to the
// management HTTP server, with signal handling and restart-on-reconfigure
// wired in.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vrischmann/envconfig"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// ConfigPath is the xApp's JSON configuration file. Required; served
	// and rewritten by the /config endpoints.
	ConfigPath string
	// ListenAddr of the management HTTP server. Defaults to ":8080" or
	// APP_LISTEN_ADDR.
	ListenAddr string
}

type env struct {
	ListenAddr  string `envconfig:"APP_LISTEN_ADDR,optional"`
	LoggerLevel string `envconfig:"LOGGER_LEVEL,optional"`
}

// Run starts the management server and the xApp's main, and blocks until
// main returns, a termination signal arrives, or the configuration is
// rewritten through the HTTP API. The error from main is returned as-is;
// a config-triggered shutdown returns nil so the supervisor restarts the
// process cleanly.
func Run(cfg Config, main func(ctx context.Context) error) error {
	// a missing .env is fine, the environment may be set by the platform
	_ = godotenv.Load()

	var e env
	if err := envconfig.Init(&e); err != nil {
		return err
	}
	log.Logger = log.Level(levelFromString(e.LoggerLevel))

	addr := cfg.ListenAddr
	if addr == "" {
		addr = e.ListenAddr
	}
	if addr == "" {
		addr = ":8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var reconfigured bool
	srv := newServer(cfg.ConfigPath, func() {
		log.Warn().Msg("configuration changed, shutting down for restart")
		reconfigured = true
		cancel()
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveHTTP(ctx, addr, srv.router())
	})
	g.Go(func() error {
		err := main(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		// main is done, take the server down with it
		cancel()
		return err
	})

	err := g.Wait()
	if reconfigured {
		return nil
	}
	return err
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("management server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func levelFromString(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	}
	return zerolog.InfoLevel
}
