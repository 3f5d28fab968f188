package memory

import (
	"context"
	"sort"
	"sync"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/storage"
	"tron-netflow/internal/tronaddr"
)

// transferEventKey is the composite key for transfer event deduplication.
type transferEventKey struct {
	TxHash   string
	LogIndex int
}

// TransferEventStore is an in-memory implementation of storage.TransferEventStore.
type TransferEventStore struct {
	mu   sync.RWMutex
	data []*domain.TransferEvent
	keys map[transferEventKey]bool
}

// NewTransferEventStore creates a new in-memory transfer event store.
func NewTransferEventStore() *TransferEventStore {
	return &TransferEventStore{
		data: make([]*domain.TransferEvent, 0),
		keys: make(map[transferEventKey]bool),
	}
}

// Compile-time interface check.
var _ storage.TransferEventStore = (*TransferEventStore)(nil)

// Insert adds a new transfer event. Returns ErrDuplicateKey if (tx_hash, log_index) exists.
func (s *TransferEventStore) Insert(_ context.Context, e *domain.TransferEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	key := transferEventKey{TxHash: e.TxHash, LogIndex: e.LogIndex}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys[key] {
		return storage.ErrDuplicateKey
	}

	// Store a copy
	copy := *e
	s.data = append(s.data, &copy)
	s.keys[key] = true

	return nil
}

// InsertBulk adds multiple transfer events atomically. Fails entire batch on any duplicate.
func (s *TransferEventStore) InsertBulk(_ context.Context, events []*domain.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicates (both existing and intra-batch)
	batchKeys := make(map[transferEventKey]bool)
	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}

		key := transferEventKey{TxHash: e.TxHash, LogIndex: e.LogIndex}
		if s.keys[key] || batchKeys[key] {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = true
	}

	// Insert all
	for _, e := range events {
		copy := *e
		s.data = append(s.data, &copy)
		s.keys[transferEventKey{TxHash: e.TxHash, LogIndex: e.LogIndex}] = true
	}

	return nil
}

// GetByWallet retrieves all events of a contract where the wallet is sender
// or recipient, ordered by timestamp ASC, tx_hash ASC, log_index ASC.
func (s *TransferEventStore) GetByWallet(_ context.Context, contract, wallet tronaddr.Address) ([]*domain.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferEvent
	for _, e := range s.data {
		if e.Contract != contract {
			continue
		}
		if e.From != wallet && e.To != wallet {
			continue
		}
		copy := *e
		result = append(result, &copy)
	}

	sortTransferEvents(result)
	return result, nil
}

// GetByTimeRange retrieves events of a contract within [start, end) milliseconds.
func (s *TransferEventStore) GetByTimeRange(_ context.Context, contract tronaddr.Address, start, end int64) ([]*domain.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferEvent
	for _, e := range s.data {
		if e.Contract != contract {
			continue
		}
		if e.TimestampMs >= start && e.TimestampMs < end {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortTransferEvents(result)
	return result, nil
}

// NetFlowDaily computes the wallet's per-day net flow via the shared engine,
// so the in-memory backend and the SQL backends agree on semantics.
func (s *TransferEventStore) NetFlowDaily(ctx context.Context, contract, wallet tronaddr.Address, limit int) ([]*domain.DailyNet, error) {
	events, err := s.GetByWallet(ctx, contract, wallet)
	if err != nil {
		return nil, err
	}

	sums := make(map[int64]int64)
	for _, e := range events {
		day := netflow.DayUTC(e.TimestampMs)
		sums[day.UnixMilli()] += netflow.Contribution(e, wallet)
	}

	result := make([]*domain.DailyNet, 0, len(sums))
	for dayMs, minor := range sums {
		result = append(result, &domain.DailyNet{
			Day:      netflow.DayUTC(dayMs),
			NetMinor: minor,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Day.After(result[j].Day)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// sortTransferEvents sorts by (timestamp, tx_hash, log_index).
func sortTransferEvents(events []*domain.TransferEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].TimestampMs != events[j].TimestampMs {
			return events[i].TimestampMs < events[j].TimestampMs
		}
		if events[i].TxHash != events[j].TxHash {
			return events[i].TxHash < events[j].TxHash
		}
		return events[i].LogIndex < events[j].LogIndex
	})
}
