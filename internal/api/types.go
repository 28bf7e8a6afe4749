package api

// webhookRequest is the TradingView-style ingress payload of spec §6.
type webhookRequest struct {
	Action     string   `json:"action"`
	Ticker     string   `json:"ticker"`
	Quantity   int      `json:"quantity"`
	Price      string   `json:"price"`
	EntryPrice float64  `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	ATR        *float64 `json:"atr"`
	RRRatio    *float64 `json:"rr_ratio"`
	RSI        *float64 `json:"rsi"`
	Timestamp  string   `json:"timestamp"`
	Passphrase string   `json:"passphrase"`
}

type webhookResponse struct {
	Status    string `json:"status"`
	SignalID  string `json:"signal_id"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type signalDTO struct {
	SignalID   string   `json:"signal_id"`
	Action     string   `json:"action"`
	Ticker     string   `json:"ticker"`
	Quantity   int      `json:"quantity"`
	Price      string   `json:"price"`
	EntryPrice float64  `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	ATR        *float64 `json:"atr"`
	State      string   `json:"state"`
	CreatedAt  int64    `json:"created_at"`
	ExpiresAt  int64    `json:"expires_at"`
	Checksum   string   `json:"checksum"`
}

type pendingListResponse struct {
	Status    string      `json:"status"`
	Timestamp int64       `json:"timestamp"`
	Count     int         `json:"count"`
	Signals   []signalDTO `json:"signals"`
}

type ackRequest struct {
	ClientID string `json:"client_id"`
	Checksum string `json:"checksum"`
}

type ackResponse struct {
	Status         string `json:"status"`
	SignalID       string `json:"signal_id"`
	State          string `json:"state"`
	AcknowledgedAt int64  `json:"acknowledged_at"`
}

type executedRequest struct {
	ClientID         string  `json:"client_id"`
	ExecutionPrice   float64 `json:"execution_price"`
	ExecutionQty     int     `json:"execution_quantity"`
	OrderID          string  `json:"order_id"`
	ExecutedAt       int64   `json:"executed_at"`
	RealizedPnL      *float64 `json:"realized_pnl"`
	IsWin            *bool   `json:"is_win"`
}

type executedResponse struct {
	Status          string `json:"status"`
	SignalID        string `json:"signal_id"`
	State           string `json:"state"`
	ExecutionLogged bool   `json:"execution_logged"`
}

type failedRequest struct {
	ClientID string `json:"client_id"`
	Error    string `json:"error"`
}

type failedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type heartbeatRequest struct {
	ClientID  string `json:"client_id"`
	Timestamp int64  `json:"timestamp"`
}

type heartbeatResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type heartbeatEntry struct {
	ClientID         string `json:"client_id"`
	LastHeartbeat    int64  `json:"last_heartbeat"`
	Status           string `json:"status"` // active | inactive
	SecondsSinceLast int64  `json:"seconds_since_last"`
}

type heartbeatListResponse struct {
	Status     string           `json:"status"`
	Count      int              `json:"count"`
	Heartbeats []heartbeatEntry `json:"heartbeats"`
}

type cooldownEntry struct {
	Key              string  `json:"key"`
	Action           string  `json:"action"`
	Ticker           string  `json:"ticker"`
	RemainingSeconds int     `json:"remaining_seconds"`
	RemainingMinutes float64 `json:"remaining_minutes"`
}

type cooldownListResponse struct {
	Status    string          `json:"status"`
	Count     int             `json:"count"`
	Cooldowns []cooldownEntry `json:"cooldowns"`
}

type killSwitchRequest struct {
	Enabled  bool   `json:"enabled"`
	Password string `json:"password"`
	Reason   string `json:"reason,omitempty"`
}

type killSwitchResponse struct {
	Status         string `json:"status"`
	TradingEnabled bool   `json:"trading_enabled"`
	Message        string `json:"message"`
	Timestamp      int64  `json:"timestamp"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
	Store     string `json:"store"`
	Ephemeral string `json:"ephemeral"`
}

type dailyStatsDTO struct {
	EntryCount        int     `json:"entry_count"`
	ExitCount         int     `json:"exit_count"`
	TotalTrades       int     `json:"total_trades"`
	TotalPnL          float64 `json:"total_pnl"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
	ErrorCount        int     `json:"error_count"`
}

type riskMetricsDTO struct {
	TotalExposure          float64 `json:"total_exposure"`
	MaxTotalExposure       float64 `json:"max_total_exposure"`
	ExposureUtilizationPct float64 `json:"exposure_utilization_pct"`
	OpenPositions          int     `json:"open_positions"`
	MaxOpenPositions       int     `json:"max_open_positions"`
	DailyEntries           int     `json:"daily_entries"`
	MaxDailyEntries        int     `json:"max_daily_entries"`
}

type statusResponse struct {
	Status         string         `json:"status"`
	TradingEnabled bool           `json:"trading_enabled"`
	MarketOpen     bool           `json:"market_open"`
	DailyStats     dailyStatsDTO  `json:"daily_stats"`
	RiskMetrics    riskMetricsDTO `json:"risk_metrics"`
	Timestamp      int64          `json:"timestamp"`
}
