package dune

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tron-netflow/internal/domain"
	"tron-netflow/internal/netflow"
	"tron-netflow/internal/tronaddr"
)

// DefaultNetFlowQueryID is the saved per-day net-flow query. Both the wallet
// and the contract are bound parameters; the hardcoded-contract variant of
// the query is treated as an example only.
const DefaultNetFlowQueryID int64 = 5231060

// Bound parameter keys of the saved queries.
const (
	ParamAddressHex      = "address_hex"
	ParamContractAddress = "contract_address"
)

// netFlowRow is one result row of the net-flow query.
type netFlowRow struct {
	Day       string  `json:"day"`
	Asset     string  `json:"asset"`
	NetAmount float64 `json:"net_amount"`
}

// transferRow is one result row of the raw transfer export query. Numeric
// columns come through as json.Number so both quoted and bare values decode.
type transferRow struct {
	TimestampMs json.Number `json:"timestamp_ms"`
	From        string      `json:"from_address"`
	To          string      `json:"to_address"`
	Amount      json.Number `json:"amount"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    json.Number `json:"log_index"`
}

// dayLayouts are the timestamp shapes the platform renders day buckets in.
var dayLayouts = []string{
	"2006-01-02 15:04:05.000 UTC",
	"2006-01-02 15:04:05 UTC",
	time.RFC3339,
	"2006-01-02",
}

// NetFlow runs the saved net-flow query for q and parses the result rows.
func (c *Client) NetFlow(ctx context.Context, queryID int64, q netflow.Query) ([]*domain.NetFlowPoint, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	params := []QueryParameter{
		TextParameter(ParamAddressHex, q.Wallet.Hex()),
		TextParameter(ParamContractAddress, q.Contract.Hex()),
	}

	results, err := c.RunQuery(ctx, queryID, params)
	if err != nil {
		return nil, err
	}

	points := make([]*domain.NetFlowPoint, 0, len(results.Result.Rows))
	for i, raw := range results.Result.Rows {
		var row netFlowRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decode net flow row %d: %w", i, err)
		}

		day, err := parseDay(row.Day)
		if err != nil {
			return nil, fmt.Errorf("net flow row %d: %w", i, err)
		}

		asset := row.Asset
		if asset == "" {
			asset = q.Asset
		}

		points = append(points, &domain.NetFlowPoint{
			Day:   day,
			Asset: asset,
			Net:   row.NetAmount,
		})
	}

	if len(points) > q.Limit {
		points = points[:q.Limit]
	}

	return points, nil
}

// HasActivity reports whether the net-flow query returns any row for the
// wallet. Batch address verification treats any row as proof of activity.
func (c *Client) HasActivity(ctx context.Context, queryID int64, q netflow.Query) (bool, error) {
	q.Limit = 1
	points, err := c.NetFlow(ctx, queryID, q)
	if err != nil {
		return false, err
	}
	return len(points) > 0, nil
}

// NetFlowRunner binds the client to one saved query, giving callers the same
// shape the local netflow service has so report generation and verification
// can switch between remote and local execution.
type NetFlowRunner struct {
	client  *Client
	queryID int64
}

// NewNetFlowRunner creates a runner for the given saved query.
func NewNetFlowRunner(client *Client, queryID int64) *NetFlowRunner {
	return &NetFlowRunner{client: client, queryID: queryID}
}

// Run executes the bound query for q.
func (r *NetFlowRunner) Run(ctx context.Context, q netflow.Query) ([]*domain.NetFlowPoint, error) {
	return r.client.NetFlow(ctx, r.queryID, q)
}

// HasActivity reports whether the wallet has any matching transfer.
func (r *NetFlowRunner) HasActivity(ctx context.Context, q netflow.Query) (bool, error) {
	return r.client.HasActivity(ctx, r.queryID, q)
}

// TransferEvents runs a saved raw-transfer export query for a contract and
// parses the rows into domain events, for local backfill.
func (c *Client) TransferEvents(ctx context.Context, queryID int64, contract tronaddr.Address) ([]*domain.TransferEvent, error) {
	params := []QueryParameter{
		TextParameter(ParamContractAddress, contract.Hex()),
	}

	results, err := c.RunQuery(ctx, queryID, params)
	if err != nil {
		return nil, err
	}

	events := make([]*domain.TransferEvent, 0, len(results.Result.Rows))
	for i, raw := range results.Result.Rows {
		var row transferRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decode transfer row %d: %w", i, err)
		}

		e, err := row.toDomain(contract)
		if err != nil {
			return nil, fmt.Errorf("transfer row %d: %w", i, err)
		}
		events = append(events, e)
	}

	return events, nil
}

// toDomain converts a raw row into a domain event.
func (r *transferRow) toDomain(contract tronaddr.Address) (*domain.TransferEvent, error) {
	from, err := tronaddr.FromHex(r.From)
	if err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	to, err := tronaddr.FromHex(r.To)
	if err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}

	ts, err := r.TimestampMs.Int64()
	if err != nil {
		return nil, fmt.Errorf("timestamp_ms: %w", err)
	}
	amount, err := r.Amount.Int64()
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	logIndex, err := r.LogIndex.Int64()
	if err != nil {
		return nil, fmt.Errorf("log_index: %w", err)
	}
	if r.TxHash == "" {
		return nil, fmt.Errorf("missing tx_hash")
	}

	return &domain.TransferEvent{
		Contract:    contract,
		From:        from,
		To:          to,
		Amount:      amount,
		TimestampMs: ts,
		TxHash:      r.TxHash,
		LogIndex:    int(logIndex),
	}, nil
}

// parseDay parses a day bucket string into UTC midnight.
func parseDay(s string) (time.Time, error) {
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized day format %q", s)
}
