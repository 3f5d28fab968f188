// Package main batch-verifies a CSV of wallet addresses: each address is
// checked for at least one matching USDT transfer, and the input rows are
// written back with an is_verified column appended.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tron-netflow/internal/config"
	"tron-netflow/internal/dune"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/observability"
	pgstore "tron-netflow/internal/storage/postgres"
	"tron-netflow/internal/tronaddr"
	"tron-netflow/internal/verification"
)

func main() {
	config.LoadEnvFile()

	input := flag.String("input", "", "Input CSV path with an 'address' column (required)")
	output := flag.String("output", "", "Output CSV path (required)")
	contract := flag.String("contract", netflow.DefaultContractHex, "Token contract address (base58 or hex)")
	useDune := flag.Bool("dune", false, "Check through the Dune API (requires DUNE_API_KEY)")
	queryID := flag.Int64("query-id", dune.DefaultNetFlowQueryID, "Saved net-flow query ID (with --dune)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	flag.Parse()

	logger := log.New(os.Stderr, "[verify] ", log.LstdFlags)
	ctx := context.Background()

	if *input == "" || *output == "" {
		logger.Fatal("--input and --output are required")
	}

	contractAddr, err := tronaddr.Parse(*contract)
	if err != nil {
		logger.Fatalf("invalid contract address: %v", err)
	}

	metrics := observability.NewMetrics("")

	checker, cleanup, err := createChecker(ctx, *useDune, *queryID, *postgresDSN, metrics)
	if err != nil {
		logger.Fatal(err)
	}
	defer cleanup()

	verifier := verification.NewVerifier(verification.VerifierOptions{
		Checker:  checker,
		Contract: contractAddr,
		Logger:   logger,
		Metrics:  metrics,
	})

	in, err := os.Open(*input)
	if err != nil {
		logger.Fatalf("open input: %v", err)
	}
	defer in.Close()

	out, err := os.Create(*output)
	if err != nil {
		logger.Fatalf("create output: %v", err)
	}
	defer out.Close()

	checked, verified, failed, err := verifier.ProcessCSV(ctx, in, out)
	if err != nil {
		logger.Fatalf("process csv: %v", err)
	}

	fmt.Printf("Verification finished: checked=%d verified=%d failed=%d\n", checked, verified, failed)
	fmt.Printf("Results saved to: %s\n", *output)
}

// createChecker builds the activity checker for the selected mode.
func createChecker(ctx context.Context, useDune bool, queryID int64, postgresDSN string, metrics *observability.Metrics) (verification.FlowChecker, func(), error) {
	noop := func() {}

	if useDune {
		apiKey, err := config.APIKey()
		if err != nil {
			return nil, noop, err
		}
		client := dune.NewClient(apiKey, dune.WithMetrics(metrics))
		return dune.NewNetFlowRunner(client, queryID), noop, nil
	}

	if postgresDSN == "" {
		return nil, noop, fmt.Errorf("--dune or --postgres-dsn is required")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, noop, fmt.Errorf("connect to postgres: %w", err)
	}
	store := pgstore.NewTransferEventStore(pool).WithMetrics(metrics)
	return netflow.NewService(store), func() { pool.Close() }, nil
}
