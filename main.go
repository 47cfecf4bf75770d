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
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/codecollab/codecollab/analysis"
	"github.com/codecollab/codecollab/assist"
	"github.com/codecollab/codecollab/config"
	"github.com/codecollab/codecollab/ot"
	"github.com/codecollab/codecollab/server"
	"github.com/codecollab/codecollab/store"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "codecollab",
		Usage:   "Real-time collaborative code editing server with AI assistance",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			configCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the collaboration server",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Action: func(c *cli.Context) error {
					path := c.String("config")
					if path == "" {
						path = "codecollab.toml"
					}
					if err := config.Init(path); err != nil {
						return err
					}
					fmt.Printf("Wrote %s\n", path)
					return nil
				},
			},
		},
	}
}

func serve(cfg *config.Config) error {
	logger := newLogger(cfg)

	st, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("store close failed")
		}
	}()

	analyzer, err := analysis.New(analysis.Config{
		CacheSize:    cfg.Analysis.CacheSize,
		Timeout:      cfg.Analysis.Timeout,
		MaxFuncLines: cfg.Analysis.MaxFuncLines,
	})
	if err != nil {
		return fmt.Errorf("init analyzer: %w", err)
	}

	capability, err := newCapability(cfg, logger)
	if err != nil {
		return err
	}
	assistCfg := assist.DefaultConfig()
	assistCfg.Timeout = cfg.Assist.Timeout
	assistCfg.Retry.MaxRetries = cfg.Assist.MaxRetries
	assistCfg.Retry.BaseDelay = cfg.Assist.BaseDelay
	orchestrator := assist.NewOrchestrator(capability, assistCfg, logger)

	hub := server.NewHub(st, &ot.JupiterEngine{}, server.HubConfig{
		IdleTimeout:     cfg.Room.IdleTimeout,
		OpLogRetention:  cfg.Room.OpLogRetention,
		PresenceTimeout: cfg.Room.PresenceTimeout,
	}, logger)
	go hub.Run()
	defer hub.Stop()

	handler := server.NewHandler(hub, st, analyzer, orchestrator, gatewayConfig(cfg), logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("backend", cfg.Store.Backend).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func gatewayConfig(cfg *config.Config) server.GatewayConfig {
	return server.GatewayConfig{
		RateLimit: rate.Limit(cfg.Server.RateLimit),
		RateBurst: cfg.Server.RateBurst,
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Log.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func newStore(cfg *config.Config, logger zerolog.Logger) (store.SessionStore, error) {
	var backing store.SessionStore
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		pg, err := store.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		backing = pg
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		rd, err := store.NewRedisStore(ctx, cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		backing = rd
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Store.WriteBehind {
		return store.NewCachedStore(backing, cfg.Store.FlushInterval, logger), nil
	}
	return backing, nil
}

func newCapability(cfg *config.Config, logger zerolog.Logger) (assist.Capability, error) {
	if cfg.Assist.Provider == "" {
		logger.Warn().Msg("no assist provider configured, assistance requests will fail")
		return assist.Unavailable(), nil
	}
	return assist.NewCapability(
		cfg.Assist.Provider,
		cfg.Assist.Model,
		cfg.Assist.ServerURL,
		cfg.Assist.APIKey,
		cfg.Assist.Temperature,
	)
}
