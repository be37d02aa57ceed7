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
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/huddle/internal/adapters/http"
	signaling "github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/adapters/storage/memory"
	"github.com/dkeye/huddle/internal/adapters/storage/postgres"
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}
	defer store.Close()

	rooms := app.NewRoomRegistry(store, app.RegistryOptions{
		Cache:      cfg.Registry.Cache,
		MaxRetries: cfg.Registry.MaxRetries,
	})
	pubsub := app.NewPubSub(app.SimplePolicy{})

	chatPolicy := orch.BlockRelay
	if cfg.Chat.RelayOnStoreError {
		chatPolicy = orch.BestEffortRelay
	}
	o := &orch.Orchestrator{
		Rooms:      rooms,
		Chat:       store,
		Publisher:  pubsub,
		ChatPolicy: chatPolicy,
	}

	ws := &signaling.SignalWSController{
		Orch:     o,
		Sessions: app.NewSessionRegistry(),
		PubSub:   pubsub,
		Chat:     store,
		Limiter:  signaling.NewChatRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateBurst),
		Opts: signaling.Options{
			ReadLimit:        cfg.ReadLimit,
			PingPeriod:       cfg.PingPeriod,
			WriteTimeout:     cfg.WriteTimeout,
			SendBuffer:       cfg.Signal.SendBuffer,
			HistoryLimit:     cfg.Chat.HistoryLimit,
			ReportRejections: cfg.Signal.ReportRejections,
		},
	}

	r := router.SetupRouter(ctx, cfg, router.Deps{Rooms: rooms, Signal: ws})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Huddle signaling server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig) (core.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return postgres.Connect(connectCtx, cfg.Postgres)
	default:
		log.Info().Msg("using in-memory storage; rooms and chat are lost on restart")
		return memory.New(), nil
	}
}
