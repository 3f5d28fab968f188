package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/idhash"
	"tron-netflow/internal/observability"
	"tron-netflow/internal/storage"
	"tron-netflow/internal/tronaddr"
)

// Backfiller pulls historical transfer events from a source into a store.
type Backfiller struct {
	source    TransferEventSource
	store     storage.TransferEventStore
	batchSize int
	logger    *log.Logger
	metrics   *observability.Metrics
	encoder   *tronaddr.Encoder
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	Source    TransferEventSource
	Store     storage.TransferEventStore
	BatchSize int
	Logger    *log.Logger
	Metrics   *observability.Metrics
}

// NewBackfiller creates a new historical transfer backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Backfiller{
		source:    opts.Source,
		store:     opts.Store,
		batchSize: batchSize,
		logger:    logger,
		metrics:   opts.Metrics,
		encoder:   tronaddr.NewEncoder(),
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	EventsFetched     int
	EventsIngested    int
	DuplicatesSkipped int
	Errors            int
	Duration          time.Duration
}

// Backfill fetches all transfer events of a contract and stores them,
// skipping events the store already holds.
func (b *Backfiller) Backfill(ctx context.Context, contract tronaddr.Address) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	b.logger.Printf("Starting backfill for contract %s", b.encoder.Base58(contract))

	events, err := b.source.Fetch(ctx, contract)
	if err != nil {
		if b.metrics != nil {
			b.metrics.BackfillErrors.WithLabelValues("fetch").Inc()
		}
		return result, fmt.Errorf("fetch transfer events: %w", err)
	}
	result.EventsFetched = len(events)
	if b.metrics != nil {
		b.metrics.TransferEventsFetched.Add(float64(len(events)))
	}

	b.logger.Printf("Fetched %d transfer events", len(events))

	// Drop intra-fetch duplicates before batching, so one repeated row
	// cannot fail a whole batch.
	events = dedupeEvents(events, result)

	for i := 0; i < len(events); i += b.batchSize {
		end := i + b.batchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[i:end]

		stored, dupes, errs := b.storeBatch(ctx, batch)
		result.EventsIngested += stored
		result.DuplicatesSkipped += dupes
		result.Errors += errs
	}

	result.Duration = time.Since(start)
	b.logger.Printf("Backfill complete: %d ingested, %d duplicates, %d errors in %s",
		result.EventsIngested, result.DuplicatesSkipped, result.Errors, result.Duration)

	return result, nil
}

// storeBatch bulk-inserts a batch, falling back to per-event inserts when the
// batch contains events the store already holds.
func (b *Backfiller) storeBatch(ctx context.Context, batch []*domain.TransferEvent) (stored, dupes, errs int) {
	err := b.store.InsertBulk(ctx, batch)
	if err == nil {
		if b.metrics != nil {
			b.metrics.TransferEventsStored.Add(float64(len(batch)))
		}
		return len(batch), 0, 0
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		b.logger.Printf("Error storing batch: %v", err)
		if b.metrics != nil {
			b.metrics.BackfillErrors.WithLabelValues("store").Inc()
		}
		return 0, 0, len(batch)
	}

	for _, e := range batch {
		switch insertErr := b.store.Insert(ctx, e); {
		case insertErr == nil:
			stored++
			if b.metrics != nil {
				b.metrics.TransferEventsStored.Inc()
			}
		case errors.Is(insertErr, storage.ErrDuplicateKey):
			dupes++
			if b.metrics != nil {
				b.metrics.TransferEventsSkipped.Inc()
			}
		default:
			b.logger.Printf("Error storing event %s: %v", idhash.ComputeTransferID(e.TxHash, e.LogIndex), insertErr)
			if b.metrics != nil {
				b.metrics.BackfillErrors.WithLabelValues("store").Inc()
			}
			errs++
		}
	}
	return stored, dupes, errs
}

// dedupeEvents removes events repeating a (tx_hash, log_index) key.
func dedupeEvents(events []*domain.TransferEvent, result *BackfillResult) []*domain.TransferEvent {
	seen := make(map[string]struct{}, len(events))
	deduped := events[:0]
	for _, e := range events {
		id := idhash.ComputeTransferID(e.TxHash, e.LogIndex)
		if _, ok := seen[id]; ok {
			result.DuplicatesSkipped++
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, e)
	}
	return deduped
}
