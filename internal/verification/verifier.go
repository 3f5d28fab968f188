// Package verification batch-checks wallet addresses for transfer activity.
// Given a CSV of candidate exchange addresses, it runs the net-flow query for
// each and marks the ones with at least one matching transfer.
package verification

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"

	"tron-netflow/internal/netflow"
	"tron-netflow/internal/observability"
	"tron-netflow/internal/tronaddr"
)

// AddressColumn is the input column holding the wallet address.
const AddressColumn = "address"

// VerifiedColumn is the output column appended by the verifier.
const VerifiedColumn = "is_verified"

// FlowChecker answers whether a wallet has any matching transfer activity.
// Both the Dune client and the local netflow service satisfy this shape
// through small adapters.
type FlowChecker interface {
	HasActivity(ctx context.Context, q netflow.Query) (bool, error)
}

// CheckResult is the outcome for one address.
type CheckResult struct {
	Address  string
	Verified bool
	Err      error
}

// Verifier runs activity checks over a CSV of addresses.
type Verifier struct {
	checker  FlowChecker
	contract tronaddr.Address
	logger   *log.Logger
	metrics  *observability.Metrics
}

// VerifierOptions contains configuration for creating a Verifier.
type VerifierOptions struct {
	Checker  FlowChecker
	Contract tronaddr.Address
	Logger   *log.Logger
	Metrics  *observability.Metrics
}

// NewVerifier creates a Verifier. A zero contract falls back to the default
// USDT contract.
func NewVerifier(opts VerifierOptions) *Verifier {
	contract := opts.Contract
	if contract.Zero() {
		contract, _ = tronaddr.FromHex(netflow.DefaultContractHex)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Verifier{
		checker:  opts.Checker,
		contract: contract,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// CheckAddress verifies a single address string (hex or base58 form).
// A parse failure is reported in the result, not returned, so one malformed
// row does not abort a batch.
func (v *Verifier) CheckAddress(ctx context.Context, address string) CheckResult {
	result := CheckResult{Address: address}

	wallet, err := tronaddr.Parse(address)
	if err != nil {
		result.Err = err
		return result
	}

	q := netflow.NewQuery(wallet)
	q.Contract = v.contract

	verified, err := v.checker.HasActivity(ctx, q)
	if err != nil {
		result.Err = err
		return result
	}

	result.Verified = verified
	if v.metrics != nil {
		v.metrics.AddressesChecked.Inc()
		if verified {
			v.metrics.AddressesVerified.Inc()
		}
	}
	return result
}

// ProcessCSV reads addresses from r, checks each, and writes all input
// columns plus is_verified to w. The input must have a header row with an
// "address" column. Rows that fail to parse or check are written with
// is_verified "no" and counted in the returned error tally.
func (v *Verifier) ProcessCSV(ctx context.Context, r io.Reader, w io.Writer) (checked, verified, failed int, err error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("read csv header: %w", err)
	}

	addrIdx := -1
	for i, col := range header {
		if col == AddressColumn {
			addrIdx = i
			break
		}
	}
	if addrIdx < 0 {
		return 0, 0, 0, fmt.Errorf("input csv has no %q column", AddressColumn)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(append(append([]string{}, header...), VerifiedColumn)); err != nil {
		return 0, 0, 0, fmt.Errorf("write csv header: %w", err)
	}

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return checked, verified, failed, fmt.Errorf("read csv row: %w", readErr)
		}

		result := v.CheckAddress(ctx, record[addrIdx])
		checked++

		value := "no"
		switch {
		case result.Err != nil:
			failed++
			v.logger.Printf("Check failed for address %s: %v", result.Address, result.Err)
		case result.Verified:
			verified++
			value = "yes"
		}

		if err := writer.Write(append(append([]string{}, record...), value)); err != nil {
			return checked, verified, failed, fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return checked, verified, failed, fmt.Errorf("flush csv: %w", err)
	}

	return checked, verified, failed, nil
}
