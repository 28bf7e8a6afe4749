// Package api implements the relay's fiber HTTP surface: webhook ingress,
// the executor dispatch API, and the admin/status endpoints of spec §6.
// Grounded on _examples/Jonaed13-potential-pancake/internal/signal/server.go's
// fiber server shape, generalized from a single /signal route to the full
// endpoint table.
package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// GenerateSignalID builds the "sig_YYYYMMDD_HHMMSS_TICKER_ACTION" id of spec
// §3, grounded on original_source/relay_server/app/api/webhook.py's
// generate_signal_id.
func GenerateSignalID(now time.Time, ticker, action string) string {
	return fmt.Sprintf("sig_%s_%s_%s", now.Format("20060102_150405"), ticker, action)
}

// checksumFields is the exact key set and ordering the source hashes over
// (sort_keys=True in Python == alphabetical struct tags here).
type checksumFields struct {
	Action     string   `json:"action"`
	EntryPrice float64  `json:"entry_price"`
	Quantity   int      `json:"quantity"`
	SignalID   string   `json:"signal_id"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	Ticker     string   `json:"ticker"`
}

// GenerateChecksum reproduces the source's sha256(JSON(sort_keys, no
// whitespace))[:16], per spec §6. Go's encoding/json already emits object
// keys in the order the struct declares them, so checksumFields' fields are
// listed alphabetically to match Python's sort_keys=True. encoding/json
// writes a whole-number float without a fractional part (1800, not 1800.0),
// so for such prices the digest differs from one computed over Python's
// json.dumps output.
func GenerateChecksum(signalID, action, ticker string, quantity int, entryPrice float64, stopLoss, takeProfit *float64) string {
	fields := checksumFields{
		Action:     action,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		SignalID:   signalID,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Ticker:     ticker,
	}
	canonical, _ := json.Marshal(fields)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16]
}

// DedupKey builds the ephemeral-store key of spec §3/§4.2: "idempotency:"
// followed by the sha256 of timestamp|ticker|action.
func DedupKey(timestamp, ticker, action string) string {
	sum := sha256.Sum256([]byte(timestamp + "|" + ticker + "|" + action))
	return "idempotency:" + hex.EncodeToString(sum[:])
}
