package store

import (
	"database/sql"
	"errors"
)

// Signal states, per the lifecycle in spec §4.7.
const (
	StatePending  = "PENDING"
	StateFetched  = "FETCHED"
	StateExecuted = "EXECUTED"
	StateFailed   = "FAILED"
	StateExpired  = "EXPIRED"
)

// ErrNotFound is returned when a lookup by primary key finds no row.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned by InsertSignal on a primary-key collision,
// letting the dedup gate distinguish "I raced another persister" from a
// genuine write failure.
var ErrAlreadyExists = errors.New("store: already exists")

// Signal is the central entity of the relay: an intent to trade progressing
// through the state machine of spec §4.7.
type Signal struct {
	SignalID       string
	Action         string // buy | sell
	Ticker         string
	Quantity       int
	PriceType      string // market | limit
	EntryPrice     float64
	StopLoss       *float64
	TakeProfit     *float64
	ATR            *float64
	RRRatio        *float64
	RSI            *float64
	State          string
	Checksum       string
	FetchedBy      *string
	FetchedAt      *int64
	ExecutedAt     *int64
	ExecutionPrice *float64
	OrderID        *string
	ErrorMessage   *string
	SourceIP       string
	CreatedAt      int64
	ExpiresAt      int64
}

// InsertSignal persists a new PENDING signal. Returns ErrAlreadyExists if
// signal_id already exists (the dedup gate's race-loser path, per spec §5).
func (d *DB) InsertSignal(s *Signal) error {
	_, err := d.db.Exec(`
		INSERT INTO signals
		(signal_id, action, ticker, quantity, price_type, entry_price, stop_loss, take_profit,
		 atr, rr_ratio, rsi, state, checksum, source_ip, created_at, expires_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.SignalID, s.Action, s.Ticker, s.Quantity, s.PriceType, s.EntryPrice, s.StopLoss, s.TakeProfit,
		s.ATR, s.RRRatio, s.RSI, s.State, s.Checksum, s.SourceIP, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func isUniqueConstraintErr(err error) bool {
	// modernc.org/sqlite wraps the driver error as a plain *sqlite.Error whose
	// message contains this substring; string-matching is what the driver
	// itself recommends absent a typed sentinel.
	return err != nil && containsAny(err.Error(), []string{"UNIQUE constraint failed", "constraint failed: UNIQUE"})
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

var signalColumns = `signal_id, action, ticker, quantity, price_type, entry_price, stop_loss, take_profit,
		atr, rr_ratio, rsi, state, checksum, fetched_by, fetched_at, executed_at, execution_price,
		order_id, error_message, source_ip, created_at, expires_at`

func scanSignal(row interface{ Scan(...any) error }) (*Signal, error) {
	var s Signal
	err := row.Scan(
		&s.SignalID, &s.Action, &s.Ticker, &s.Quantity, &s.PriceType, &s.EntryPrice, &s.StopLoss, &s.TakeProfit,
		&s.ATR, &s.RRRatio, &s.RSI, &s.State, &s.Checksum, &s.FetchedBy, &s.FetchedAt, &s.ExecutedAt, &s.ExecutionPrice,
		&s.OrderID, &s.ErrorMessage, &s.SourceIP, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSignal looks up a signal by id.
func (d *DB) GetSignal(signalID string) (*Signal, error) {
	row := d.db.QueryRow(`SELECT `+signalColumns+` FROM signals WHERE signal_id = ?`, signalID)
	s, err := scanSignal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// PendingSignals returns every signal with state=PENDING and expires_at > now,
// ordered by created_at, the set the pre-dispatch validator runs over.
func (d *DB) PendingSignals(now int64) ([]*Signal, error) {
	rows, err := d.db.Query(`SELECT `+signalColumns+` FROM signals
		WHERE state = ? AND expires_at > ? ORDER BY created_at ASC`, StatePending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ExpireStalePending transitions every PENDING signal whose expires_at has
// passed to EXPIRED. Returns the number of rows swept.
func (d *DB) ExpireStalePending(now int64) (int64, error) {
	res, err := d.db.Exec(`UPDATE signals SET state = ? WHERE state = ? AND expires_at <= ?`,
		StateExpired, StatePending, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FailSignal transitions a PENDING (or FETCHED) signal to FAILED with reason.
func (d *DB) FailSignal(signalID, reason string) error {
	res, err := d.db.Exec(`UPDATE signals SET state = ?, error_message = ? WHERE signal_id = ? AND state IN (?, ?)`,
		StateFailed, reason, signalID, StatePending, StateFetched)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing, or in a terminal state — disambiguate for the caller.
		if _, gerr := d.GetSignal(signalID); gerr != nil {
			return gerr
		}
		return errors.New("store: signal not in PENDING or FETCHED state")
	}
	return nil
}

// AckSignal transitions PENDING -> FETCHED. If already FETCHED it is a no-op
// that leaves fetched_at untouched, per spec §4.7's idempotent-ack rule.
func (d *DB) AckSignal(signalID, clientID string, now int64) (*Signal, error) {
	s, err := d.GetSignal(signalID)
	if err != nil {
		return nil, err
	}
	if s.State == StateFetched {
		return s, nil
	}
	if s.State != StatePending {
		return nil, errors.New("store: signal not in PENDING state")
	}
	_, err = d.db.Exec(`UPDATE signals SET state = ?, fetched_by = ?, fetched_at = ? WHERE signal_id = ?`,
		StateFetched, clientID, now, signalID)
	if err != nil {
		return nil, err
	}
	s.State = StateFetched
	s.FetchedBy = &clientID
	s.FetchedAt = &now
	return s, nil
}

// MarkExecuted transitions a signal in any state other than EXECUTED to
// EXECUTED. It does not check that the signal was acknowledged first, so
// PENDING, FAILED and EXPIRED signals are moved to EXECUTED as well as
// FETCHED ones. Returns ErrAlreadyExists if already EXECUTED (caller maps
// this to 409, per spec §4.8).
func (d *DB) MarkExecuted(signalID string, executionPrice float64, orderID string, executedAt int64) error {
	res, err := d.db.Exec(`UPDATE signals SET state = ?, execution_price = ?, order_id = ?, executed_at = ?
		WHERE signal_id = ? AND state != ?`,
		StateExecuted, executionPrice, orderID, executedAt, signalID, StateExecuted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing, or already EXECUTED — disambiguate for the caller.
		existing, gerr := d.GetSignal(signalID)
		if gerr != nil {
			return gerr
		}
		if existing.State == StateExecuted {
			return ErrAlreadyExists
		}
		return errors.New("store: signal not in FETCHED state")
	}
	return nil
}
