package ingestion

import (
	"context"
	"fmt"
	"time"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/storage"
	"tron-netflow/internal/tronaddr"
)

// Demo fixture addresses. DemoWallet receives from DemoCounterpartyA and
// sends to DemoCounterpartyB across three days.
const (
	DemoWalletHex        = "41d1e7a6bc354106cb410e65ff8b181c600ff14292"
	DemoCounterpartyAHex = "415a523b449890854c8fc460ab602df9f31fe4293f"
	DemoCounterpartyBHex = "41e552f6487585c2b58bc2c9bb4492bc1f17132cd0"
)

// LoadDemoTransfers seeds a store with a small deterministic transfer set so
// the report command can run without a database or an API key.
func LoadDemoTransfers(ctx context.Context, store storage.TransferEventStore) error {
	contract, err := tronaddr.FromHex(netflow.DefaultContractHex)
	if err != nil {
		return fmt.Errorf("parse default contract: %w", err)
	}
	wallet, err := tronaddr.FromHex(DemoWalletHex)
	if err != nil {
		return fmt.Errorf("parse demo wallet: %w", err)
	}
	a, err := tronaddr.FromHex(DemoCounterpartyAHex)
	if err != nil {
		return fmt.Errorf("parse demo counterparty A: %w", err)
	}
	b, err := tronaddr.FromHex(DemoCounterpartyBHex)
	if err != nil {
		return fmt.Errorf("parse demo counterparty B: %w", err)
	}

	day := func(d int, hour int) int64 {
		return time.Date(2024, 1, d, hour, 0, 0, 0, time.UTC).UnixMilli()
	}

	events := []*domain.TransferEvent{
		// Day 1: +500 in, -2000 out => net -1500
		{Contract: contract, From: a, To: wallet, Amount: 500_000_000, TimestampMs: day(1, 9), TxHash: "f1a0", LogIndex: 0},
		{Contract: contract, From: wallet, To: b, Amount: 2_000_000_000, TimestampMs: day(1, 15), TxHash: "f1a1", LogIndex: 0},
		// Day 2: +1250.5 in => net +1250.5
		{Contract: contract, From: a, To: wallet, Amount: 1_250_500_000, TimestampMs: day(2, 3), TxHash: "f2a0", LogIndex: 1},
		// Day 3: self-transfer, nets to zero but the day still appears
		{Contract: contract, From: wallet, To: wallet, Amount: 75_000_000, TimestampMs: day(3, 12), TxHash: "f3a0", LogIndex: 0},
	}

	if err := store.InsertBulk(ctx, events); err != nil {
		return fmt.Errorf("insert demo transfers: %w", err)
	}
	return nil
}
