package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTransferID computes a deterministic transfer id using SHA256.
// Formula: SHA256(tx_hash|log_index)
// Returns hex-encoded hash (64 characters).
func ComputeTransferID(txHash string, logIndex int) string {
	data := fmt.Sprintf("%s|%d", txHash, logIndex)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
