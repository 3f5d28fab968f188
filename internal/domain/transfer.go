package domain

import "tron-netflow/internal/tronaddr"

// TransferEvent represents one on-chain TRC20 transfer.
// Amounts are in the token's minor units (USDT has 6 decimals).
type TransferEvent struct {
	Contract    tronaddr.Address // token contract address
	From        tronaddr.Address // sender address
	To          tronaddr.Address // recipient address
	Amount      int64            // transfer amount in minor units
	TimestampMs int64            // block timestamp, Unix milliseconds
	TxHash      string           // transaction hash, hex
	LogIndex    int              // log index within transaction
}
