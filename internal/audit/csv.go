// Package audit appends a fixed-schema CSV audit trail of every signal, per
// spec §4.12. Grounded on
// _examples/original_source/relay_server/app/services/csv_logger.py.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var jst = mustLoadJST()

func mustLoadJST() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

var header = []string{
	"timestamp", "signal_id", "action", "ticker", "quantity", "price",
	"entry_price", "stop_loss", "take_profit", "atr", "rr_ratio", "rsi",
	"checksum", "state", "source_ip",
}

// Row is one audit entry, field-for-field matching the fixed 15-column
// schema of spec §4.12. Nullable numeric fields are strings so an absent
// value serializes as "" exactly like the source's dict.get(..., "").
type Row struct {
	SignalID  string
	Action    string
	Ticker    string
	Quantity  string
	Price     string
	EntryPrice string
	StopLoss  string
	TakeProfit string
	ATR       string
	RRRatio   string
	RSI       string
	Checksum  string
	State     string
	SourceIP  string
}

// Writer appends Rows to a CSV file, writing the header once on creation.
// A single mutex serializes every write, matching the source's threading.Lock.
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter opens (or creates) the CSV file at path, writing the header row
// if the file is new.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	}
	return &Writer{path: path}, nil
}

// Log appends one Row. Failures are logged but never returned to the
// caller: the audit trail is best-effort and must never block signal
// dispatch, per spec §4.12/§7.
func (w *Writer) Log(r Row) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Error().Err(err).Msg("failed to open audit CSV")
		return
	}
	defer f.Close()

	row := []string{
		time.Now().In(jst).Format("2006-01-02 15:04:05"),
		r.SignalID, r.Action, r.Ticker, r.Quantity, r.Price,
		r.EntryPrice, r.StopLoss, r.TakeProfit, r.ATR, r.RRRatio, r.RSI,
		r.Checksum, r.State, r.SourceIP,
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(row); err != nil {
		log.Error().Err(err).Msg("failed to append audit CSV row")
		return
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Error().Err(err).Msg("failed to flush audit CSV")
	}
}

// Path returns the absolute path of the CSV file.
func (w *Writer) Path() string {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return w.path
	}
	return abs
}

// FormatFloat renders a nullable float the way the source's dict.get
// default does: "" when absent.
func FormatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatInt renders an int field for a Row.
func FormatInt(v int) string {
	return fmt.Sprintf("%d", v)
}
