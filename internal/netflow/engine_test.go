package netflow

import (
	"errors"
	"testing"
	"time"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/tronaddr"
)

func mustHex(t *testing.T, s string) tronaddr.Address {
	t.Helper()
	a, err := tronaddr.FromHex(s)
	if err != nil {
		t.Fatalf("FromHex(%s) failed: %v", s, err)
	}
	return a
}

func testAddresses(t *testing.T) (wallet, other, contract tronaddr.Address) {
	t.Helper()
	wallet = mustHex(t, "41d1e7a6bc354106cb410e65ff8b181c600ff14292")
	other = mustHex(t, "41"+"0102030405060708090a0b0c0d0e0f1011121314")
	contract = mustHex(t, DefaultContractHex)
	return
}

func event(contract, from, to tronaddr.Address, amount, tsMs int64, txHash string) *domain.TransferEvent {
	return &domain.TransferEvent{
		Contract:    contract,
		From:        from,
		To:          to,
		Amount:      amount,
		TimestampMs: tsMs,
		TxHash:      txHash,
	}
}

// ms returns Unix milliseconds for a UTC date plus an hour offset.
func ms(year int, month time.Month, day, hour int) int64 {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC).UnixMilli()
}

func TestContribution(t *testing.T) {
	wallet, other, contract := testAddresses(t)

	cases := []struct {
		name string
		from tronaddr.Address
		to   tronaddr.Address
		want int64
	}{
		{"incoming", other, wallet, 100},
		{"outgoing", wallet, other, -100},
		{"self transfer", wallet, wallet, 0},
		{"unrelated", other, other, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := event(contract, tc.from, tc.to, 100, ms(2024, time.January, 1, 0), "tx")
			if got := Contribution(e, wallet); got != tc.want {
				t.Errorf("Contribution = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestToMajorUnits(t *testing.T) {
	if got := ToMajorUnits(1_000_000); got != 1.0 {
		t.Errorf("ToMajorUnits(1_000_000) = %v, want 1.0", got)
	}
	if got := ToMajorUnits(-1_500_000); got != -1.5 {
		t.Errorf("ToMajorUnits(-1_500_000) = %v, want -1.5", got)
	}
	if got := ToMajorUnits(0); got != 0 {
		t.Errorf("ToMajorUnits(0) = %v, want 0", got)
	}
}

func TestDayUTC(t *testing.T) {
	late := time.Date(2024, time.March, 15, 23, 59, 59, 0, time.UTC)
	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	if got := DayUTC(late.UnixMilli()); !got.Equal(want) {
		t.Errorf("DayUTC = %v, want %v", got, want)
	}
}

func TestCompute_MixedDay(t *testing.T) {
	wallet, other, contract := testAddresses(t)

	// Same calendar day: wallet sends 2.0 and receives 0.5, net -1.5.
	events := []*domain.TransferEvent{
		event(contract, wallet, other, 2_000_000, ms(2024, time.January, 1, 9), "tx1"),
		event(contract, other, wallet, 500_000, ms(2024, time.January, 1, 17), "tx2"),
	}

	points, err := Compute(events, NewQuery(wallet))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Net != -1.5 {
		t.Errorf("net = %v, want -1.5", points[0].Net)
	}
	wantDay := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !points[0].Day.Equal(wantDay) {
		t.Errorf("day = %v, want %v", points[0].Day, wantDay)
	}
	if points[0].Asset != DefaultAsset {
		t.Errorf("asset = %q, want %q", points[0].Asset, DefaultAsset)
	}
}

func TestCompute_FiltersContractAndWallet(t *testing.T) {
	wallet, other, contract := testAddresses(t)
	otherContract := mustHex(t, "41"+"ffffffffffffffffffffffffffffffffffffffff")

	events := []*domain.TransferEvent{
		// Counted.
		event(contract, other, wallet, 1_000_000, ms(2024, time.January, 1, 1), "tx1"),
		// Wrong contract: ignored.
		event(otherContract, other, wallet, 9_000_000, ms(2024, time.January, 1, 2), "tx2"),
		// Wallet not involved: ignored.
		event(contract, other, other, 9_000_000, ms(2024, time.January, 1, 3), "tx3"),
	}

	points, err := Compute(events, NewQuery(wallet))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Net != 1.0 {
		t.Errorf("net = %v, want 1.0", points[0].Net)
	}
}

func TestCompute_SelfTransferDayPresent(t *testing.T) {
	wallet, _, contract := testAddresses(t)

	// A day with only a self-transfer still appears, with net zero.
	events := []*domain.TransferEvent{
		event(contract, wallet, wallet, 5_000_000, ms(2024, time.January, 3, 12), "tx1"),
	}

	points, err := Compute(events, NewQuery(wallet))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Net != 0 {
		t.Errorf("self-transfer day net = %v, want 0", points[0].Net)
	}
}

func TestCompute_DescendingOrderAndLimit(t *testing.T) {
	wallet, other, contract := testAddresses(t)

	events := []*domain.TransferEvent{
		event(contract, other, wallet, 1_000_000, ms(2024, time.January, 1, 0), "tx1"),
		event(contract, other, wallet, 2_000_000, ms(2024, time.January, 2, 0), "tx2"),
		event(contract, other, wallet, 3_000_000, ms(2024, time.January, 3, 0), "tx3"),
	}

	q := NewQuery(wallet)
	points, err := Compute(events, q)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if !points[i-1].Day.After(points[i].Day) {
			t.Errorf("days not descending at %d: %v then %v", i, points[i-1].Day, points[i].Day)
		}
	}

	q.Limit = 2
	points, err = Compute(events, q)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points after limit, got %d", len(points))
	}
	if points[0].Net != 3.0 || points[1].Net != 2.0 {
		t.Errorf("limit kept wrong days: %v, %v", points[0].Net, points[1].Net)
	}
}

func TestCompute_NoActivity(t *testing.T) {
	wallet, other, contract := testAddresses(t)

	events := []*domain.TransferEvent{
		event(contract, other, other, 1_000_000, ms(2024, time.January, 1, 0), "tx1"),
	}

	points, err := Compute(events, NewQuery(wallet))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected empty result, got %d points", len(points))
	}
}

func TestQuery_Validate(t *testing.T) {
	wallet, _, _ := testAddresses(t)

	if err := NewQuery(wallet).Validate(); err != nil {
		t.Errorf("valid query rejected: %v", err)
	}

	var zeroWallet Query = NewQuery(tronaddr.Address{})
	if err := zeroWallet.Validate(); !errors.Is(err, tronaddr.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress for zero wallet, got %v", err)
	}

	q := NewQuery(wallet)
	q.Contract = tronaddr.Address{}
	if err := q.Validate(); !errors.Is(err, tronaddr.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress for zero contract, got %v", err)
	}

	q = NewQuery(wallet)
	q.Limit = 0
	if err := q.Validate(); err == nil {
		t.Error("expected error for non-positive limit")
	}
}
