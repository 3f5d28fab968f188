package postgres_test

import (
	"context"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/storage"
	"tron-netflow/internal/storage/postgres"
	"tron-netflow/internal/tronaddr"
)

func mustHex(t *testing.T, s string) tronaddr.Address {
	t.Helper()
	a, err := tronaddr.FromHex(s)
	require.NoError(t, err, "FromHex(%s)", s)
	return a
}

func testAddresses(t *testing.T) (contract, wallet, other tronaddr.Address) {
	t.Helper()
	contract = mustHex(t, "41a614f803b6fd780986a42c78ec9c7f77e6ded13c")
	wallet = mustHex(t, "41d1e7a6bc354106cb410e65ff8b181c600ff14292")
	other = mustHex(t, "410102030405060708090a0b0c0d0e0f1011121314")
	return
}

func dayMs(day, hour int) int64 {
	return time.Date(2024, time.January, day, hour, 0, 0, 0, time.UTC).UnixMilli()
}

func TestTransferEventStore_InsertAndGetByWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransferEventStore(pool)
	contract, wallet, other := testAddresses(t)

	event := &domain.TransferEvent{
		Contract:    contract,
		From:        other,
		To:          wallet,
		Amount:      1_000_000,
		TimestampMs: dayMs(1, 10),
		TxHash:      "tx1",
		LogIndex:    0,
	}

	err := store.Insert(ctx, event)
	require.NoError(t, err)

	events, err := store.GetByWallet(ctx, contract, wallet)
	require.NoError(t, err)

	assert.Len(t, events, 1)
	assert.Equal(t, event.Contract, events[0].Contract)
	assert.Equal(t, event.From, events[0].From)
	assert.Equal(t, event.To, events[0].To)
	assert.Equal(t, event.Amount, events[0].Amount)
	assert.Equal(t, event.TimestampMs, events[0].TimestampMs)
	assert.Equal(t, event.TxHash, events[0].TxHash)
	assert.Equal(t, event.LogIndex, events[0].LogIndex)
}

func TestTransferEventStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransferEventStore(pool)
	contract, wallet, other := testAddresses(t)

	event := &domain.TransferEvent{
		Contract: contract, From: other, To: wallet,
		Amount: 100, TimestampMs: dayMs(1, 0), TxHash: "dup-tx", LogIndex: 0,
	}

	err := store.Insert(ctx, event)
	require.NoError(t, err)

	// Same (tx_hash, log_index) should fail
	err = store.Insert(ctx, event)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same tx_hash with another log_index is a distinct event
	distinct := *event
	distinct.LogIndex = 1
	err = store.Insert(ctx, &distinct)
	assert.NoError(t, err)
}

func TestTransferEventStore_InsertBulk(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransferEventStore(pool)
	contract, wallet, other := testAddresses(t)

	events := []*domain.TransferEvent{
		{Contract: contract, From: other, To: wallet, Amount: 1, TimestampMs: dayMs(1, 0), TxHash: "bulk-tx1", LogIndex: 0},
		{Contract: contract, From: wallet, To: other, Amount: 2, TimestampMs: dayMs(1, 1), TxHash: "bulk-tx2", LogIndex: 0},
	}

	err := store.InsertBulk(ctx, events)
	require.NoError(t, err)

	got, err := store.GetByWallet(ctx, contract, wallet)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTransferEventStore_InsertBulkDuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransferEventStore(pool)
	contract, wallet, other := testAddresses(t)

	events := []*domain.TransferEvent{
		{Contract: contract, From: other, To: wallet, Amount: 1, TimestampMs: dayMs(1, 0), TxHash: "rb-tx1", LogIndex: 0},
		{Contract: contract, From: other, To: wallet, Amount: 2, TimestampMs: dayMs(1, 1), TxHash: "rb-tx1", LogIndex: 0},
	}

	err := store.InsertBulk(ctx, events)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The whole batch rolled back, including the first event
	got, err := store.GetByWallet(ctx, contract, wallet)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransferEventStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransferEventStore(pool)
	contract, wallet, other := testAddresses(t)

	events := []*domain.TransferEvent{
		{Contract: contract, From: other, To: wallet, Amount: 1, TimestampMs: dayMs(1, 0), TxHash: "tr-tx1", LogIndex: 0},
		{Contract: contract, From: other, To: wallet, Amount: 2, TimestampMs: dayMs(2, 0), TxHash: "tr-tx2", LogIndex: 0},
		{Contract: contract, From: other, To: wallet, Amount: 3, TimestampMs: dayMs(3, 0), TxHash: "tr-tx3", LogIndex: 0},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	// [day1, day3) excludes the upper bound
	got, err := store.GetByTimeRange(ctx, contract, dayMs(1, 0), dayMs(3, 0))
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Equal(t, "tr-tx1", got[0].TxHash)
	assert.Equal(t, "tr-tx2", got[1].TxHash)
}

func TestTransferEventStore_NetFlowDaily(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransferEventStore(pool)
	contract, wallet, other := testAddresses(t)

	events := []*domain.TransferEvent{
		// Day 1: out 2.0, in 0.5
		{Contract: contract, From: wallet, To: other, Amount: 2_000_000, TimestampMs: dayMs(1, 9), TxHash: "nf-tx1", LogIndex: 0},
		{Contract: contract, From: other, To: wallet, Amount: 500_000, TimestampMs: dayMs(1, 17), TxHash: "nf-tx2", LogIndex: 0},
		// Day 2: in 1.25
		{Contract: contract, From: other, To: wallet, Amount: 1_250_000, TimestampMs: dayMs(2, 3), TxHash: "nf-tx3", LogIndex: 0},
		// Day 3: self-transfer contributes zero but keeps the day
		{Contract: contract, From: wallet, To: wallet, Amount: 9_000_000, TimestampMs: dayMs(3, 12), TxHash: "nf-tx4", LogIndex: 0},
		// Unrelated wallet: ignored
		{Contract: contract, From: other, To: other, Amount: 7_000_000, TimestampMs: dayMs(1, 1), TxHash: "nf-tx5", LogIndex: 0},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	daily, err := store.NetFlowDaily(ctx, contract, wallet, 100)
	require.NoError(t, err)

	require.Len(t, daily, 3)

	// Descending by day
	assert.Equal(t, time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC), daily[0].Day)
	assert.Equal(t, int64(0), daily[0].NetMinor)
	assert.Equal(t, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), daily[1].Day)
	assert.Equal(t, int64(1_250_000), daily[1].NetMinor)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), daily[2].Day)
	assert.Equal(t, int64(-1_500_000), daily[2].NetMinor)
}

func TestTransferEventStore_NetFlowDailyLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransferEventStore(pool)
	contract, wallet, other := testAddresses(t)

	events := []*domain.TransferEvent{
		{Contract: contract, From: other, To: wallet, Amount: 1_000_000, TimestampMs: dayMs(1, 0), TxHash: "lm-tx1", LogIndex: 0},
		{Contract: contract, From: other, To: wallet, Amount: 2_000_000, TimestampMs: dayMs(2, 0), TxHash: "lm-tx2", LogIndex: 0},
		{Contract: contract, From: other, To: wallet, Amount: 3_000_000, TimestampMs: dayMs(3, 0), TxHash: "lm-tx3", LogIndex: 0},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	daily, err := store.NetFlowDaily(ctx, contract, wallet, 2)
	require.NoError(t, err)

	require.Len(t, daily, 2)
	// The limit keeps the newest days
	assert.Equal(t, int64(3_000_000), daily[0].NetMinor)
	assert.Equal(t, int64(2_000_000), daily[1].NetMinor)
}

func TestTransferEventStore_MatchesEngine(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransferEventStore(pool)
	contract, wallet, other := testAddresses(t)

	events := []*domain.TransferEvent{
		{Contract: contract, From: wallet, To: other, Amount: 2_000_000, TimestampMs: dayMs(1, 9), TxHash: "eq-tx1", LogIndex: 0},
		{Contract: contract, From: other, To: wallet, Amount: 500_000, TimestampMs: dayMs(1, 17), TxHash: "eq-tx2", LogIndex: 0},
		{Contract: contract, From: wallet, To: wallet, Amount: 4_000_000, TimestampMs: dayMs(2, 0), TxHash: "eq-tx3", LogIndex: 0},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	// The SQL aggregation and the in-process engine must agree.
	daily, err := store.NetFlowDaily(ctx, contract, wallet, 100)
	require.NoError(t, err)

	q := netflow.NewQuery(wallet)
	q.Contract = contract
	points, err := netflow.Compute(events, q)
	require.NoError(t, err)

	require.Len(t, daily, len(points))
	for i := range daily {
		assert.Equal(t, points[i].Day, daily[i].Day)
		assert.InDelta(t, points[i].Net, netflow.ToMajorUnits(daily[i].NetMinor), 1e-9)
	}
}

func TestTransferEventStore_RecordsQueryMetrics(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTransferEventStore(pool).WithMetrics(testMetrics)
	contract, wallet, other := testAddresses(t)

	event := &domain.TransferEvent{
		Contract: contract, From: other, To: wallet,
		Amount: 1_000_000, TimestampMs: dayMs(1, 10), TxHash: "metrics-tx1", LogIndex: 0,
	}
	require.NoError(t, store.Insert(ctx, event))

	_, err := store.NetFlowDaily(ctx, contract, wallet, 100)
	require.NoError(t, err)

	assert.Positive(t, promtestutil.CollectAndCount(testMetrics.DBQueryDuration),
		"query durations should be recorded")

	errorsBefore := promtestutil.ToFloat64(testMetrics.DBQueryErrors.WithLabelValues("postgres", "insert"))
	require.ErrorIs(t, store.Insert(ctx, event), storage.ErrDuplicateKey)
	errorsAfter := promtestutil.ToFloat64(testMetrics.DBQueryErrors.WithLabelValues("postgres", "insert"))
	assert.Equal(t, errorsBefore+1, errorsAfter, "failed insert should count one error")
}
