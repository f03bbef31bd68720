package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exalmatuz/bw-reports-agent/internal/config"
	"github.com/exalmatuz/bw-reports-agent/internal/logger"
	"github.com/exalmatuz/bw-reports-agent/internal/query"
	"github.com/exalmatuz/bw-reports-agent/internal/server"
	"github.com/exalmatuz/bw-reports-agent/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "Listen address (default from LISTEN_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := logger.Init(cfg.Logging); err != nil {
		logger.Fatal().Err(err).Msg("init logger")
	}
	log := logger.With().Str("component", "bw-api").Logger()

	if *addr == "" {
		*addr = cfg.ListenAddr
	}

	store, err := storage.NewRedisStore(context.Background(), storage.RedisConfig{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect storage")
	}
	defer store.Close()

	engine := query.NewEngine(store, cfg.TimeZone, log)
	srv := server.NewServer(engine, log)

	go func() {
		log.Info().Str("addr", *addr).Msg("listening")
		if err := srv.Start(*addr); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}

	log.Info().Msg("exited gracefully")
}
