// Package config loads and hot-reloads the relay's YAML configuration,
// adapted from the teacher's viper+fsnotify Manager to the relay's named
// sections (SPEC_FULL.md §10.3).
package config

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds every configuration section of the relay.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Security    SecurityConfig    `mapstructure:"security"`
	Store       StoreConfig       `mapstructure:"store"`
	Ephemeral   EphemeralConfig   `mapstructure:"ephemeral"`
	Cooldown    CooldownConfig    `mapstructure:"cooldown"`
	Signal      SignalConfig      `mapstructure:"signal"`
	Risk        RiskConfig        `mapstructure:"risk"`
	MarketHours MarketHoursConfig `mapstructure:"market_hours"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Heartbeat   HeartbeatConfig   `mapstructure:"heartbeat"`
	Audit       AuditConfig       `mapstructure:"audit"`
}

// ServerConfig is the HTTP bind address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// SecurityConfig names the environment variables holding secrets, never the
// secrets themselves, following the teacher's WalletConfig.PrivateKeyEnv
// indirection.
type SecurityConfig struct {
	PassphraseEnv   string `mapstructure:"passphrase_env"`
	APIKeyEnv       string `mapstructure:"api_key_env"`
	AdminPasswordEnv string `mapstructure:"admin_password_env"`
}

// StoreConfig points at the durable relational store.
type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// EphemeralConfig tunes the in-process TTL store's background sweep.
type EphemeralConfig struct {
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

// CooldownConfig holds the four per-action minimum intervals of spec §4.4.
type CooldownConfig struct {
	BuySameTickerSeconds  int `mapstructure:"buy_same_ticker_seconds"`
	BuyAnyTickerSeconds   int `mapstructure:"buy_any_ticker_seconds"`
	SellSameTickerSeconds int `mapstructure:"sell_same_ticker_seconds"`
	SellAnyTickerSeconds  int `mapstructure:"sell_any_ticker_seconds"`
}

// SignalConfig holds the signal TTL and quantity bounds of spec §3/§4.6.
type SignalConfig struct {
	TTLSeconds  int `mapstructure:"ttl_seconds"`
	MinQuantity int `mapstructure:"min_quantity"`
	MaxQuantity int `mapstructure:"max_quantity"`
}

// RiskConfig holds every numeric threshold of spec §4.10, plus the
// configurable estimated-price constant of §9 Open Question #3 and the
// supplemented sector-exposure limit of SPEC_FULL.md §12.
type RiskConfig struct {
	MaxOpenPositions        int     `mapstructure:"max_open_positions"`
	MaxTotalExposure        float64 `mapstructure:"max_total_exposure"`
	MaxPositionPerTicker    float64 `mapstructure:"max_position_per_ticker"`
	MaxSectorExposurePct    float64 `mapstructure:"max_sector_exposure_pct"`
	MaxDailyEntries         int     `mapstructure:"max_daily_entries"`
	MaxDailyTrades          int     `mapstructure:"max_daily_trades"`
	MaxDailyLoss            float64 `mapstructure:"max_daily_loss"`
	MaxConsecutiveLosses    int     `mapstructure:"max_consecutive_losses"`
	EstimatedPricePerShare  float64 `mapstructure:"estimated_price_per_share"`
	DynamicBlacklistStreak  int     `mapstructure:"dynamic_blacklist_streak"`
	DynamicBlacklistTTLDays int     `mapstructure:"dynamic_blacklist_ttl_days"`
}

// MarketHoursConfig holds the timezone and the configured safe-trading
// windows of spec §4.3.
type MarketHoursConfig struct {
	Timezone          string   `mapstructure:"timezone"`
	MorningSafeStart  string   `mapstructure:"morning_safe_start"`
	MorningSafeEnd    string   `mapstructure:"morning_safe_end"`
	AfternoonSafeStart string  `mapstructure:"afternoon_safe_start"`
	AfternoonSafeEnd  string   `mapstructure:"afternoon_safe_end"`
	OffHoursAction    string   `mapstructure:"off_hours_action"` // reject | queue
	// Holidays lists "YYYY-MM-DD" local-calendar dates the exchange is
	// closed, per spec §4.3's "weekend or local-holiday calendar" CLOSED
	// rule.
	Holidays          []string `mapstructure:"holidays"`
}

// LoggingConfig controls zerolog's output mode.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// NotifyConfig holds per-level chat webhook URLs, the email transport, and
// the frequency-limiter window of spec §4.13.
type NotifyConfig struct {
	SlackWebhookInfo     string `mapstructure:"slack_webhook_info"`
	SlackWebhookWarning  string `mapstructure:"slack_webhook_warning"`
	SlackWebhookError    string `mapstructure:"slack_webhook_error"`
	SlackWebhookCritical string `mapstructure:"slack_webhook_critical"`
	EmailTo              string `mapstructure:"email_to"`
	ThrottleMinutes       int    `mapstructure:"throttle_minutes"`
}

// HeartbeatConfig holds the client-liveness staleness threshold of spec §3.
type HeartbeatConfig struct {
	StaleAfterSeconds int `mapstructure:"stale_after_seconds"`
}

// AuditConfig points at the append-only CSV audit log of spec §4.12.
type AuditConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

// Manager wraps a *viper.Viper with thread-safe access to the parsed Config
// and hot-reload on file change, adapted from the teacher's config.Manager.
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	viper    *viper.Viper
	onChange func(*Config)
}

// NewManager loads configPath and watches it for changes.
func NewManager(configPath string) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	m := &Manager{config: &cfg, viper: v}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("config file changed, reloading")
		m.reload()
	})

	return m, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("security.passphrase_env", "RELAY_WEBHOOK_PASSPHRASE")
	v.SetDefault("security.api_key_env", "RELAY_API_KEY")
	v.SetDefault("security.admin_password_env", "RELAY_ADMIN_PASSWORD")

	v.SetDefault("store.sqlite_path", "./data/relay.db")
	v.SetDefault("ephemeral.sweep_interval_seconds", 30)

	v.SetDefault("cooldown.buy_same_ticker_seconds", 1800)
	v.SetDefault("cooldown.buy_any_ticker_seconds", 0)
	v.SetDefault("cooldown.sell_same_ticker_seconds", 1800)
	v.SetDefault("cooldown.sell_any_ticker_seconds", 0)

	v.SetDefault("signal.ttl_seconds", 900)
	v.SetDefault("signal.min_quantity", 100)
	v.SetDefault("signal.max_quantity", 10000)

	v.SetDefault("risk.max_open_positions", 10)
	v.SetDefault("risk.max_total_exposure", 5_000_000.0)
	v.SetDefault("risk.max_position_per_ticker", 1_000_000.0)
	v.SetDefault("risk.max_sector_exposure_pct", 40.0)
	v.SetDefault("risk.max_daily_entries", 10)
	v.SetDefault("risk.max_daily_trades", 20)
	v.SetDefault("risk.max_daily_loss", -200_000.0)
	v.SetDefault("risk.max_consecutive_losses", 5)
	v.SetDefault("risk.estimated_price_per_share", 1000.0)
	v.SetDefault("risk.dynamic_blacklist_streak", 3)
	v.SetDefault("risk.dynamic_blacklist_ttl_days", 30)

	v.SetDefault("market_hours.timezone", "Asia/Tokyo")
	v.SetDefault("market_hours.morning_safe_start", "09:30")
	v.SetDefault("market_hours.morning_safe_end", "11:20")
	v.SetDefault("market_hours.afternoon_safe_start", "13:00")
	v.SetDefault("market_hours.afternoon_safe_end", "14:30")
	v.SetDefault("market_hours.off_hours_action", "queue")
	v.SetDefault("market_hours.holidays", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("notify.throttle_minutes", 30)

	v.SetDefault("heartbeat.stale_after_seconds", 300)

	v.SetDefault("audit.csv_path", "./data/signals.csv")
}

// Get returns the current config (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetRisk returns the risk section (most frequently accessed, mirroring the
// teacher's GetTrading hot-path accessor).
func (m *Manager) GetRisk() RiskConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Risk
}

// SetOnChange registers a callback invoked after every successful reload.
func (m *Manager) SetOnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

func (m *Manager) reload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal config on reload")
		return
	}

	m.config = &cfg
	if m.onChange != nil {
		m.onChange(&cfg)
	}
}

// secret reads the environment variable named by envVarName.
func secret(envVarName string) string {
	return os.Getenv(envVarName)
}

// GetPassphrase reads the webhook passphrase from its configured env var.
func (m *Manager) GetPassphrase() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return secret(m.config.Security.PassphraseEnv)
}

// GetAPIKey reads the dispatch-API bearer key from its configured env var.
func (m *Manager) GetAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return secret(m.config.Security.APIKeyEnv)
}

// GetAdminPassword reads the admin password from its configured env var.
func (m *Manager) GetAdminPassword() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return secret(m.config.Security.AdminPasswordEnv)
}
