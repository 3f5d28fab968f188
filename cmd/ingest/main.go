// Package main backfills transfer events from the Dune API into local storage
// so reports can run without repeated remote executions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"tron-netflow/internal/config"
	"tron-netflow/internal/dune"
	"tron-netflow/internal/ingestion"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/observability"
	"tron-netflow/internal/storage"
	chstore "tron-netflow/internal/storage/clickhouse"
	"tron-netflow/internal/storage/migrations"
	pgstore "tron-netflow/internal/storage/postgres"
	"tron-netflow/internal/tronaddr"
)

func main() {
	config.LoadEnvFile()

	contract := flag.String("contract", netflow.DefaultContractHex, "Token contract address (base58 or hex)")
	queryID := flag.Int64("query-id", 0, "Saved transfer export query ID (required)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	batchSize := flag.Int("batch-size", 1000, "Insert batch size")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (e.g., :9090)")
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)
	ctx := context.Background()

	if *queryID == 0 {
		logger.Fatal("--query-id is required")
	}
	if *postgresDSN == "" && *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn or --clickhouse-dsn is required")
	}

	contractAddr, err := tronaddr.Parse(*contract)
	if err != nil {
		logger.Fatalf("invalid contract address: %v", err)
	}

	apiKey, err := config.APIKey()
	if err != nil {
		logger.Fatal(err)
	}

	metrics := observability.NewMetrics("")
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	store, cleanup, err := createStore(ctx, *postgresDSN, *clickhouseDSN, metrics)
	if err != nil {
		logger.Fatalf("connect storage: %v", err)
	}
	defer cleanup()

	client := dune.NewClient(apiKey, dune.WithMetrics(metrics))
	source := ingestion.NewDuneTransferEventSource(client, *queryID)

	backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
		Source:    source,
		Store:     store,
		BatchSize: *batchSize,
		Logger:    logger,
		Metrics:   metrics,
	})

	result, err := backfiller.Backfill(ctx, contractAddr)
	if err != nil {
		logger.Fatalf("backfill: %v", err)
	}

	fmt.Printf("Backfill finished: fetched=%d ingested=%d duplicates=%d errors=%d duration=%s\n",
		result.EventsFetched, result.EventsIngested, result.DuplicatesSkipped, result.Errors, result.Duration)
}

// createStore connects to whichever database was configured and applies migrations.
func createStore(ctx context.Context, postgresDSN, clickhouseDSN string, metrics *observability.Metrics) (storage.TransferEventStore, func(), error) {
	noop := func() {}

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("run postgres migrations: %w", err)
		}
		return pgstore.NewTransferEventStore(pool).WithMetrics(metrics), func() { pool.Close() }, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		return nil, noop, fmt.Errorf("run clickhouse migrations: %w", err)
	}
	return chstore.NewTransferEventStore(conn).WithMetrics(metrics), func() { conn.Close() }, nil
}
