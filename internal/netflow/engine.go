// Package netflow computes per-day net transfer flow for a wallet: the sum of
// amounts received minus amounts sent, per UTC calendar day, restricted to one
// token contract. All storage backends share these semantics; the in-memory
// backend runs Compute directly, the SQL backends express the same rules in
// their dialects.
package netflow

import (
	"fmt"
	"sort"
	"time"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/tronaddr"
)

// Defaults for report queries. The contract default is the USDT TRC20
// contract (TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t).
const (
	DefaultAsset       = "USDT"
	DefaultLimit       = 100
	DefaultContractHex = "41a614f803b6fd780986a42c78ec9c7f77e6ded13c"

	// MinorUnitsPerToken converts minor units to major units (6 decimals).
	MinorUnitsPerToken = 1_000_000
)

// Query describes one net-flow report request.
type Query struct {
	Wallet   tronaddr.Address
	Contract tronaddr.Address
	Asset    string
	Limit    int
}

// NewQuery builds a Query for wallet with defaults applied.
func NewQuery(wallet tronaddr.Address) Query {
	contract, _ := tronaddr.FromHex(DefaultContractHex)
	return Query{
		Wallet:   wallet,
		Contract: contract,
		Asset:    DefaultAsset,
		Limit:    DefaultLimit,
	}
}

// Validate checks that the query is runnable.
func (q Query) Validate() error {
	if q.Wallet.Zero() {
		return fmt.Errorf("%w: wallet must be set", tronaddr.ErrInvalidAddress)
	}
	if q.Contract.Zero() {
		return fmt.Errorf("%w: contract must be set", tronaddr.ErrInvalidAddress)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", q.Limit)
	}
	return nil
}

// ToMajorUnits converts an amount in minor units to major units.
func ToMajorUnits(minor int64) float64 {
	return float64(minor) / MinorUnitsPerToken
}

// DayUTC truncates a Unix-millisecond timestamp to UTC midnight.
func DayUTC(timestampMs int64) time.Time {
	t := time.UnixMilli(timestampMs).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Contribution returns the signed minor-unit contribution of one event to the
// wallet's net flow. Receiving counts positive, sending counts negative.
// A self-transfer (wallet is both sender and recipient) moves nothing in or
// out and contributes exactly zero; this is an explicit rule, not an
// evaluation-order accident.
func Contribution(e *domain.TransferEvent, wallet tronaddr.Address) int64 {
	in := e.To == wallet
	out := e.From == wallet
	switch {
	case in && out:
		return 0
	case in:
		return e.Amount
	case out:
		return -e.Amount
	default:
		return 0
	}
}

// Compute aggregates events into net-flow points per the query. Events not
// matching the contract or not involving the wallet are ignored. Output is
// sorted by day descending and truncated to q.Limit. Days with no matching
// event are absent; a wallet with no activity yields an empty result.
func Compute(events []*domain.TransferEvent, q Query) ([]*domain.NetFlowPoint, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	sums := make(map[time.Time]int64)
	for _, e := range events {
		if e == nil || e.Contract != q.Contract {
			continue
		}
		if e.To != q.Wallet && e.From != q.Wallet {
			continue
		}
		sums[DayUTC(e.TimestampMs)] += Contribution(e, q.Wallet)
	}

	points := make([]*domain.NetFlowPoint, 0, len(sums))
	for day, minor := range sums {
		points = append(points, &domain.NetFlowPoint{
			Day:   day,
			Asset: q.Asset,
			Net:   ToMajorUnits(minor),
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Day.After(points[j].Day)
	})

	if len(points) > q.Limit {
		points = points[:q.Limit]
	}

	return points, nil
}
