package storage

import (
	"context"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/tronaddr"
)

// TransferEventStore provides access to transfer_events storage.
type TransferEventStore interface {
	// Insert adds a new transfer event. Returns ErrDuplicateKey if
	// (tx_hash, log_index) exists.
	Insert(ctx context.Context, e *domain.TransferEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.TransferEvent) error

	// GetByWallet retrieves all events of a contract where the wallet is sender
	// or recipient, ordered by timestamp ASC, tx_hash ASC, log_index ASC.
	GetByWallet(ctx context.Context, contract, wallet tronaddr.Address) ([]*domain.TransferEvent, error)

	// GetByTimeRange retrieves events of a contract within [start, end) milliseconds.
	GetByTimeRange(ctx context.Context, contract tronaddr.Address, start, end int64) ([]*domain.TransferEvent, error)

	// NetFlowDaily computes the wallet's per-day net flow for a contract:
	// received minus sent per UTC day, in minor units, days without matching
	// events absent, ordered by day DESC, truncated to limit.
	// Self-transfers contribute zero.
	NetFlowDaily(ctx context.Context, contract, wallet tronaddr.Address, limit int) ([]*domain.DailyNet, error)
}
