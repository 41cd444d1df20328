/*
main.go - Server entry point

PURPOSE:
  Wires everything together: config, SQLite cache, sheet client,
  holiday feed, poller, and HTTP server.

COMMANDS:
  serve   Run the API server with the background poller
  sync    Refresh the local cache once and exit

STARTUP SEQUENCE (serve):
  1. Load config (file, then flag overrides)
  2. Open SQLite cache (migrates on open)
  3. Initial sheet refresh, then start the poller
  4. Start HTTP server
  5. On SIGINT/SIGTERM: stop poller, drain HTTP server

SEE ALSO:
  - config/config.go: File format and defaults
  - api/server.go: Routes
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/checkboard/delegation-engine/api"
	"github.com/checkboard/delegation-engine/config"
	"github.com/checkboard/delegation-engine/holidays"
	"github.com/checkboard/delegation-engine/sheet"
	"github.com/checkboard/delegation-engine/store/sqlite"
)

var portOverride int

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	root := &cli.Command{
		Name:  "delegation-engine",
		Usage: "checklist and delegation dashboard backed by a spreadsheet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "config.yaml",
				Usage: "path to the YAML config file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the API server",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "port",
						Usage:       "override the configured HTTP port",
						Destination: &portOverride,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if portOverride != 0 {
						cfg.Server.Port = portOverride
					}
					return serve(ctx, cfg, logger(log, c))
				},
			},
			{
				Name:  "sync",
				Usage: "refresh the local cache once and exit",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					return syncOnce(ctx, cfg, logger(log, c))
				},
			},
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("exit")
	}
}

func loadConfig(c *cli.Command) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func logger(log zerolog.Logger, c *cli.Command) zerolog.Logger {
	if c.Bool("debug") {
		return log.Level(zerolog.DebugLevel)
	}
	return log.Level(zerolog.InfoLevel)
}

func buildPoller(cfg config.Config, log zerolog.Logger) (*sqlite.Store, *sheet.Client, *api.Poller, error) {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open cache: %w", err)
	}

	sheets := sheet.NewClient(cfg.Sheet.BaseURL, log)

	var feed *holidays.Feed
	if cfg.Holidays.FeedURL != "" {
		feed = holidays.NewFeed(cfg.Holidays.FeedURL, log)
	}

	poller := api.NewPoller(store, sheets, feed, api.PollerConfig{
		TasksSheet:       cfg.Sheet.TasksSheet,
		UsersSheet:       cfg.Sheet.UsersSheet,
		WorkingDaysSheet: cfg.Sheet.WorkingDaysSheet,
		Interval:         cfg.Sync.Interval,
	}, log)

	return store, sheets, poller, nil
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	store, sheets, poller, err := buildPoller(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// Warm the cache before accepting traffic; a failure is logged but
	// not fatal so the server can come up while the endpoint is down.
	if err := poller.RefreshNow(ctx); err != nil {
		log.Warn().Err(err).Msg("initial refresh failed, serving stale cache")
	}
	poller.Start()
	defer poller.Stop()

	tokens := api.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	handler := api.NewHandler(store, sheets, tokens, log)
	handler.TasksSheet = cfg.Sheet.TasksSheet
	handler.Sync = poller

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, cfg.Server.AllowedOrigins),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
		log.Info().Msg("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func syncOnce(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	store, _, poller, err := buildPoller(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := poller.RefreshNow(ctx); err != nil {
		return err
	}
	log.Info().Msg("cache refreshed")
	return nil
}
