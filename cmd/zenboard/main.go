package main

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/zenboard/internal/config"
	"github.com/gosuda/zenboard/internal/metrics"
	"github.com/gosuda/zenboard/internal/router"
	"github.com/gosuda/zenboard/internal/server"
	"github.com/gosuda/zenboard/internal/session"
	"github.com/gosuda/zenboard/internal/store/memory"
	redisstore "github.com/gosuda/zenboard/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	level, parseErr := zerolog.ParseLevel(os.Getenv("ZENBOARD_LOG_LEVEL"))
	if parseErr != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("ZENBOARD_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New("zenboard")
	store := memory.New(cfg.Board.DefaultName)
	sessions := session.NewRegistry()
	opts := []router.Option{router.WithMetrics(m)}

	// Redis is optional; without it the observer feed is not mounted.
	var pubsub *redisstore.PubSub
	if cfg.Redis.Enabled() {
		pubsub, err = redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()

		mirror := redisstore.NewMirror(pubsub, cfg.Redis.MirrorBuffer, m.MirrorDropped)
		go mirror.Run(ctx)
		opts = append(opts, router.WithMirror(mirror))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis mirror enabled")
	}

	rt := router.New(store, sessions, opts...)

	var static fs.FS
	if cfg.Server.StaticDir != "" {
		static = os.DirFS(cfg.Server.StaticDir)
	}

	srv := server.New(ctx, cfg, rt, pubsub, m, static)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("default_board", cfg.Board.DefaultName).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Int("sessions", sessions.Len()).Msg("stopped")
	return nil
}
