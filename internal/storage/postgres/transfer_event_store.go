package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/observability"
	"tron-netflow/internal/storage"
	"tron-netflow/internal/tronaddr"
)

// dbLabel is the database label on query metrics.
const dbLabel = "postgres"

// TransferEventStore implements storage.TransferEventStore using PostgreSQL.
// Addresses are persisted in their 42-character hex form.
type TransferEventStore struct {
	pool    *Pool
	metrics *observability.Metrics
}

// NewTransferEventStore creates a new TransferEventStore.
func NewTransferEventStore(pool *Pool) *TransferEventStore {
	return &TransferEventStore{pool: pool}
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
func (s *TransferEventStore) Insert(ctx context.Context, e *domain.TransferEvent) (err error) {
	defer func(start time.Time) { s.observe("insert", start, err) }(time.Now())

	query := `
		INSERT INTO transfer_events (
			contract, from_address, to_address, amount, timestamp_ms, tx_hash, log_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		e.Contract.Hex(),
		e.From.Hex(),
		e.To.Hex(),
		e.Amount,
		e.TimestampMs,
		e.TxHash,
		e.LogIndex,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple transfer events atomically. Fails entire batch on any duplicate.
func (s *TransferEventStore) InsertBulk(ctx context.Context, events []*domain.TransferEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	defer func(start time.Time) { s.observe("insert_bulk", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO transfer_events (
			contract, from_address, to_address, amount, timestamp_ms, tx_hash, log_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, e := range events {
		_, err := tx.Exec(ctx, query,
			e.Contract.Hex(),
			e.From.Hex(),
			e.To.Hex(),
			e.Amount,
			e.TimestampMs,
			e.TxHash,
			e.LogIndex,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert transfer event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
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
		WHERE contract = $1 AND (from_address = $2 OR to_address = $2)
		ORDER BY timestamp_ms ASC, tx_hash ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, contract.Hex(), wallet.Hex())
	if err != nil {
		return nil, fmt.Errorf("get transfer events by wallet: %w", err)
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
		WHERE contract = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
		ORDER BY timestamp_ms ASC, tx_hash ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, contract.Hex(), start, end)
	if err != nil {
		return nil, fmt.Errorf("get transfer events by time range: %w", err)
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
			(timestamp_ms / 86400000) * 86400000 AS day_ms,
			SUM(CASE
				WHEN to_address = $2 AND from_address = $2 THEN 0
				WHEN to_address = $2 THEN amount
				WHEN from_address = $2 THEN -amount
				ELSE 0
			END)::bigint AS net_minor
		FROM transfer_events
		WHERE contract = $1 AND (from_address = $2 OR to_address = $2)
		GROUP BY day_ms
		ORDER BY day_ms DESC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, contract.Hex(), wallet.Hex(), limit)
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

// scanTransferEvents scans multiple rows into a slice of TransferEvent.
func scanTransferEvents(rows pgx.Rows) ([]*domain.TransferEvent, error) {
	var events []*domain.TransferEvent

	for rows.Next() {
		e, err := scanTransferEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer event rows: %w", err)
	}

	return events, nil
}

// scanTransferEvent scans one row, converting hex address columns back to binary.
func scanTransferEvent(rows pgx.Rows) (*domain.TransferEvent, error) {
	var e domain.TransferEvent
	var contract, from, to string

	err := rows.Scan(
		&contract,
		&from,
		&to,
		&e.Amount,
		&e.TimestampMs,
		&e.TxHash,
		&e.LogIndex,
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

	return &e, nil
}
