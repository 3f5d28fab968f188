package clickhouse

import (
	"context"
	"fmt"
	"time"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/observability"
	"tron-netflow/internal/storage"
	"tron-netflow/internal/tronaddr"
)

// dbLabel is the database label on query metrics.
const dbLabel = "clickhouse"

// TransferEventStore implements storage.TransferEventStore using ClickHouse.
// Addresses are persisted in their 42-character hex form. MergeTree does not
// enforce uniqueness, so duplicates are detected with explicit checks before
// insert, the same way the report semantics require.
type TransferEventStore struct {
	conn    *Conn
	metrics *observability.Metrics
}

// NewTransferEventStore creates a new TransferEventStore.
func NewTransferEventStore(conn *Conn) *TransferEventStore {
	return &TransferEventStore{conn: conn}
}

// WithMetrics enables query duration and error metrics.
func (s *TransferEventStore) WithMetrics(m *observability.Metrics) *TransferEventStore {
	s.metrics = m
	return s
}

// observe records one query's duration and, if it failed, counts the error.
func (s *TransferEventStore) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.DBQueryDuration.WithLabelValues(dbLabel, op).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.DBQueryErrors.WithLabelValues(dbLabel, op).Inc()
	}
}

// Compile-time interface check.
var _ storage.TransferEventStore = (*TransferEventStore)(nil)

// Insert adds a new transfer event. Returns ErrDuplicateKey if (tx_hash, log_index) exists.
func (s *TransferEventStore) Insert(ctx context.Context, e *domain.TransferEvent) error {
	return s.InsertBulk(ctx, []*domain.TransferEvent{e})
}

// InsertBulk adds multiple transfer events. Fails entire batch on any duplicate.
func (s *TransferEventStore) InsertBulk(ctx context.Context, events []*domain.TransferEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	defer func(start time.Time) { s.observe("insert_bulk", start, err) }(time.Now())

	// Check for intra-batch duplicates
	type key struct {
		txHash   string
		logIndex int
	}
	seen := make(map[key]struct{})
	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
		k := key{e.TxHash, e.LogIndex}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, e := range events {
		exists, err := s.exists(ctx, e.TxHash, e.LogIndex)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO transfer_events (
			contract, from_address, to_address, amount, timestamp_ms, tx_hash, log_index
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.Contract.Hex(), e.From.Hex(), e.To.Hex(),
			e.Amount, e.TimestampMs, e.TxHash, int32(e.LogIndex),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByWallet retrieves all events of a contract involving the wallet,
// ordered by timestamp ASC, tx_hash ASC, log_index ASC.
func (s *TransferEventStore) GetByWallet(ctx context.Context, contract, wallet tronaddr.Address) (_ []*domain.TransferEvent, err error) {
	defer func(start time.Time) { s.observe("get_by_wallet", start, err) }(time.Now())

	query := `
		SELECT contract, from_address, to_address, amount, timestamp_ms, tx_hash, log_index
		FROM transfer_events
		WHERE contract = ? AND (from_address = ? OR to_address = ?)
		ORDER BY timestamp_ms ASC, tx_hash ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, contract.Hex(), wallet.Hex(), wallet.Hex())
	if err != nil {
		return nil, fmt.Errorf("query transfer events by wallet: %w", err)
	}
	defer rows.Close()

	return scanTransferEvents(rows)
}

// GetByTimeRange retrieves events of a contract within [start, end) milliseconds.
func (s *TransferEventStore) GetByTimeRange(ctx context.Context, contract tronaddr.Address, start, end int64) (_ []*domain.TransferEvent, err error) {
	defer func(begin time.Time) { s.observe("get_by_time_range", begin, err) }(time.Now())

	query := `
		SELECT contract, from_address, to_address, amount, timestamp_ms, tx_hash, log_index
		FROM transfer_events
		WHERE contract = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC, tx_hash ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, contract.Hex(), start, end)
	if err != nil {
		return nil, fmt.Errorf("query transfer events by time range: %w", err)
	}
	defer rows.Close()

	return scanTransferEvents(rows)
}

// NetFlowDaily computes the wallet's per-day net flow with conditional
// aggregation. The self-transfer branch comes first so it contributes zero
// regardless of the sender/recipient branch order.
func (s *TransferEventStore) NetFlowDaily(ctx context.Context, contract, wallet tronaddr.Address, limit int) (_ []*domain.DailyNet, err error) {
	defer func(start time.Time) { s.observe("net_flow_daily", start, err) }(time.Now())

	query := `
		SELECT
			intDiv(timestamp_ms, 86400000) * 86400000 AS day_ms,
			toInt64(SUM(CASE
				WHEN to_address = ? AND from_address = ? THEN 0
				WHEN to_address = ? THEN amount
				WHEN from_address = ? THEN -amount
				ELSE 0
			END)) AS net_minor
		FROM transfer_events
		WHERE contract = ? AND (from_address = ? OR to_address = ?)
		GROUP BY day_ms
		ORDER BY day_ms DESC
		LIMIT ?
	`

	w := wallet.Hex()
	rows, err := s.conn.Query(ctx, query, w, w, w, w, contract.Hex(), w, w, limit)
	if err != nil {
		return nil, fmt.Errorf("query daily net flow: %w", err)
	}
	defer rows.Close()

	var result []*domain.DailyNet
	for rows.Next() {
		var dayMs, netMinor int64
		if err := rows.Scan(&dayMs, &netMinor); err != nil {
			return nil, fmt.Errorf("scan daily net flow row: %w", err)
		}
		result = append(result, &domain.DailyNet{
			Day:      netflow.DayUTC(dayMs),
			NetMinor: netMinor,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily net flow rows: %w", err)
	}

	return result, nil
}

// exists checks if an event with the given key exists.
func (s *TransferEventStore) exists(ctx context.Context, txHash string, logIndex int) (bool, error) {
	query := `
		SELECT count(*) FROM transfer_events
		WHERE tx_hash = ? AND log_index = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, txHash, int32(logIndex)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanTransferEvents scans multiple rows.
func scanTransferEvents(rows chRows) ([]*domain.TransferEvent, error) {
	var events []*domain.TransferEvent

	for rows.Next() {
		var e domain.TransferEvent
		var contract, from, to string
		var logIndex int32

		err := rows.Scan(
			&contract, &from, &to,
			&e.Amount, &e.TimestampMs, &e.TxHash, &logIndex,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer event row: %w", err)
		}

		if e.Contract, err = tronaddr.FromHex(contract); err != nil {
			return nil, fmt.Errorf("parse stored contract address: %w", err)
		}
		if e.From, err = tronaddr.FromHex(from); err != nil {
			return nil, fmt.Errorf("parse stored from address: %w", err)
		}
		if e.To, err = tronaddr.FromHex(to); err != nil {
			return nil, fmt.Errorf("parse stored to address: %w", err)
		}

		e.LogIndex = int(logIndex)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer event rows: %w", err)
	}

	return events, nil
}
