package netflow_test

import (
	"context"
	"testing"
	"time"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/storage/memory"
	"tron-netflow/internal/tronaddr"
)

func seedStore(t *testing.T) (*memory.TransferEventStore, tronaddr.Address) {
	t.Helper()

	contract, err := tronaddr.FromHex(netflow.DefaultContractHex)
	if err != nil {
		t.Fatalf("FromHex failed: %v", err)
	}
	wallet, err := tronaddr.FromHex("41d1e7a6bc354106cb410e65ff8b181c600ff14292")
	if err != nil {
		t.Fatalf("FromHex failed: %v", err)
	}
	other, err := tronaddr.FromHex("410102030405060708090a0b0c0d0e0f1011121314")
	if err != nil {
		t.Fatalf("FromHex failed: %v", err)
	}

	day1 := time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	day2 := time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC).UnixMilli()

	store := memory.NewTransferEventStore()
	events := []*domain.TransferEvent{
		{Contract: contract, From: wallet, To: other, Amount: 2_000_000, TimestampMs: day1, TxHash: "tx1", LogIndex: 0},
		{Contract: contract, From: other, To: wallet, Amount: 500_000, TimestampMs: day1, TxHash: "tx2", LogIndex: 0},
		{Contract: contract, From: other, To: wallet, Amount: 1_250_000, TimestampMs: day2, TxHash: "tx3", LogIndex: 0},
	}
	if err := store.InsertBulk(context.Background(), events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	return store, wallet
}

func TestService_Run(t *testing.T) {
	store, wallet := seedStore(t)
	svc := netflow.NewService(store)

	points, err := svc.Run(context.Background(), netflow.NewQuery(wallet))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Net != 1.25 {
		t.Errorf("newest day net = %v, want 1.25", points[0].Net)
	}
	if points[1].Net != -1.5 {
		t.Errorf("oldest day net = %v, want -1.5", points[1].Net)
	}
	for _, p := range points {
		if p.Asset != netflow.DefaultAsset {
			t.Errorf("asset = %q, want %q", p.Asset, netflow.DefaultAsset)
		}
	}
}

func TestService_Run_InvalidQuery(t *testing.T) {
	store, _ := seedStore(t)
	svc := netflow.NewService(store)

	var q netflow.Query
	if _, err := svc.Run(context.Background(), q); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestService_HasActivity(t *testing.T) {
	store, wallet := seedStore(t)
	svc := netflow.NewService(store)

	active, err := svc.HasActivity(context.Background(), netflow.NewQuery(wallet))
	if err != nil {
		t.Fatalf("HasActivity failed: %v", err)
	}
	if !active {
		t.Error("expected activity")
	}

	idle, err := tronaddr.FromHex("41ffffffffffffffffffffffffffffffffffffffff")
	if err != nil {
		t.Fatalf("FromHex failed: %v", err)
	}
	active, err = svc.HasActivity(context.Background(), netflow.NewQuery(idle))
	if err != nil {
		t.Fatalf("HasActivity failed: %v", err)
	}
	if active {
		t.Error("expected no activity for idle wallet")
	}
}
