// Package idhash derives deterministic identifiers for persisted records.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|order_id|side)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID string, orderID int64, side string) string {
	data := fmt.Sprintf("%s|%d|%s", runID, orderID, side)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
