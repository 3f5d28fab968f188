package ingestion

import (
	"context"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/dune"
	"tron-netflow/internal/tronaddr"
)

// TransferEventSource provides raw transfer events from external sources.
type TransferEventSource interface {
	// Fetch returns all available transfer events of a contract.
	// Events may be unordered and may repeat; Backfiller deduplicates.
	Fetch(ctx context.Context, contract tronaddr.Address) ([]*domain.TransferEvent, error)
}

// DuneTransferEventSource fetches transfer events through a saved export query.
type DuneTransferEventSource struct {
	client  *dune.Client
	queryID int64
}

// NewDuneTransferEventSource creates a source backed by the Dune client.
func NewDuneTransferEventSource(client *dune.Client, queryID int64) *DuneTransferEventSource {
	return &DuneTransferEventSource{client: client, queryID: queryID}
}

// Compile-time interface check.
var _ TransferEventSource = (*DuneTransferEventSource)(nil)

// Fetch runs the export query and returns its rows as domain events.
func (s *DuneTransferEventSource) Fetch(ctx context.Context, contract tronaddr.Address) ([]*domain.TransferEvent, error) {
	return s.client.TransferEvents(ctx, s.queryID, contract)
}
