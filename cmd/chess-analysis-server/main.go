// Package main implements the chess analysis server: a REST API over
// per-board UCI engine sessions, a websocket analysis feed and an optional
// web UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chessanalysis/cmd/chess-analysis-server/cli"
	"chessanalysis/internal/config"
	"chessanalysis/internal/engine"
	"chessanalysis/internal/logging"
	"chessanalysis/internal/server/http"
	"chessanalysis/internal/server/stream"
	"chessanalysis/internal/server/webserver"
	"chessanalysis/internal/service"
	"chessanalysis/internal/session"
	"chessanalysis/internal/storage"

	"github.com/rs/zerolog"
)

const (
	gracefulShutdownTimeout = time.Second * 5
)

func main() {
	// Check for CLI database commands
	if len(os.Args) > 1 && os.Args[1] == "db" {
		if err := cli.Run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "CLI error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := config.LoadEnv(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Parse(os.Args[0], os.Args[1:], os.LookupEnv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	// Manage PID file if requested
	if cfg.PIDPath != "" {
		cleanup, err := managePIDFile(cfg.PIDPath, cfg.PIDLock)
		if err != nil {
			return fmt.Errorf("failed to manage PID file: %w", err)
		}
		defer cleanup()
		log.Info().Str("path", cfg.PIDPath).Bool("lock", cfg.PIDLock).Msg("PID file created")
	}

	// 1. Analysis log (optional)
	var store *storage.Store
	if cfg.StoragePath != "" {
		var err error
		store, err = storage.NewStore(cfg.StoragePath, cfg.Dev, log)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		if err := store.InitDB(); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		log.Info().Str("path", cfg.StoragePath).Msg("analysis log enabled")
	} else {
		log.Info().Msg("analysis log disabled (use -storage-path to enable)")
	}

	// 2. Service with one engine process per board
	launcher := &engine.ProcessLauncher{
		Path: cfg.EnginePath,
		Log:  log.With().Str("component", "engine").Logger(),
	}
	svc := service.New(launcher, store, service.Config{
		DefaultDepth: cfg.EngineDepth,
		MaxBoards:    cfg.MaxBoards,
		Session: session.Config{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Options:          engineOptions(cfg),
		},
	}, log)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go svc.RunCleanupJob(cleanupCtx, service.CleanupJobInterval)

	// 3. REST API
	app := http.NewFiberApp(svc, cfg.Dev)
	apiAddr := cfg.APIAddr()
	go func() {
		log.Info().
			Str("addr", apiAddr).
			Str("engine", cfg.EnginePath).
			Int("depth", cfg.EngineDepth).
			Int("maxBoards", cfg.MaxBoards).
			Int("rateLimit", http.RateLimit(cfg.Dev)).
			Msg("API server listening")
		if err := app.Listen(apiAddr); err != nil {
			log.Error().Err(err).Msg("API server listen error")
		}
	}()

	// 4. Live analysis feed (optional)
	var feed *stream.Server
	streamURL := ""
	if addr := cfg.StreamAddr(); addr != "" {
		feed = stream.New(svc, log.With().Str("component", "stream").Logger())
		streamURL = fmt.Sprintf("ws://%s/ws", addr)
		go func() {
			if err := feed.ListenAndServe(addr); err != nil {
				log.Error().Err(err).Msg("stream server error")
			}
		}()
	}

	// 5. Web UI (optional)
	if cfg.Serve {
		apiURL := fmt.Sprintf("http://%s", apiAddr)
		web, err := webserver.New(apiURL, streamURL)
		if err != nil {
			return err
		}
		defer func() { _ = web.Shutdown() }()

		go func() {
			log.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.WebHost, cfg.WebPort)).Str("api", apiURL).Msg("web UI listening")
			if err := webserver.Start(web, cfg.WebHost, cfg.WebPort); err != nil {
				log.Error().Err(err).Msg("web UI server error")
			}
		}()
	}

	// Wait for an interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down servers")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()

	// Release long-polls and feeds before the listeners wait on them
	cleanupCancel()
	if err := svc.Shutdown(gracefulShutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("service shutdown error")
	}

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server forced to shutdown")
	}
	if feed != nil {
		if err := feed.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("stream server forced to shutdown")
		}
	}

	log.Info().Msg("servers exited")
	return nil
}

// engineOptions maps engine tuning flags to setoption commands
func engineOptions(cfg *config.Config) []session.Option {
	var opts []session.Option
	if cfg.EngineThreads > 0 {
		opts = append(opts, session.Option{Name: "Threads", Value: strconv.Itoa(cfg.EngineThreads)})
	}
	if cfg.EngineHash > 0 {
		opts = append(opts, session.Option{Name: "Hash", Value: strconv.Itoa(cfg.EngineHash)})
	}
	return opts
}
