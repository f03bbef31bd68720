package main

import (
	"context"
	"flag"
	"time"

	"github.com/exalmatuz/bw-reports-agent/internal/config"
	"github.com/exalmatuz/bw-reports-agent/internal/index"
	"github.com/exalmatuz/bw-reports-agent/internal/logger"
	"github.com/exalmatuz/bw-reports-agent/internal/storage"
)

func main() {
	source := flag.String("source", "requests", "Raw list the WAF appends event JSON to")
	prefix := flag.String("prefix", "", "Index key prefix (default from BW_PREFIX)")
	ttlDays := flag.Int("ttl-days", 60, "Index retention in days, 0 = no expiration")
	batch := flag.Int("batch", index.DefaultBatchSize, "Batch size for reading the source list")
	repair := flag.Bool("repair", false, "Reconcile orphaned dedupe markers instead of ingesting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := logger.Init(cfg.Logging); err != nil {
		logger.Fatal().Err(err).Msg("init logger")
	}
	log := logger.With().Str("component", "bw-indexer").Logger()

	if *prefix == "" {
		*prefix = cfg.Prefix
	}

	ctx := context.Background()

	store, err := storage.NewRedisStore(ctx, storage.RedisConfig{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect storage")
	}
	defer store.Close()

	ix := index.NewIndexer(store, log)

	if *repair {
		repaired, err := ix.Repair(ctx, *prefix)
		if err != nil {
			log.Fatal().Err(err).Int("repaired", repaired).Msg("repair aborted")
		}
		log.Info().Int("repaired", repaired).Msg("repair done")
		return
	}

	report, err := ix.Run(ctx, index.Options{
		Source:    *source,
		Prefix:    *prefix,
		Retention: time.Duration(*ttlDays) * 24 * time.Hour,
		BatchSize: *batch,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("ingest aborted")
	}

	log.Info().
		Int("new", report.New).
		Int("malformed", report.Malformed).
		Int("missing_id", report.MissingID).
		Int("missing_date", report.MissingDate).
		Int64("indexed_total", report.IndexedTotal).
		Msg("ingest complete")
}
