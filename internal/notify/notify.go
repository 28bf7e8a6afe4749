// Package notify fans out alerts to Slack by level, throttling repeats of
// the same (level, title) pair against the ephemeral store, per spec §4.13.
// Grounded on
// _examples/original_source/relay_server/app/core/notification.py, and on
// the teacher's net/http+zerolog RPC client style
// (internal/blockchain/rpc.go) for the webhook POST itself.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"kabuto-relay/internal/ephemeral"
)

// Level is a notification severity, matching the source's level strings.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Field is one key/value line of a notification body.
type Field struct {
	Title string
	Value string
}

// Manager sends level-routed Slack notifications, suppressing repeats of
// the same level and title within a configurable window (one interval shared
// by every level). CRITICAL is never suppressed.
type Manager struct {
	webhookURLs map[Level]string
	throttle    *ephemeral.Store
	interval    time.Duration
	httpClient  *http.Client
}

// New builds a Manager. webhookURLs maps level to Slack incoming-webhook
// URL; a level with no configured URL is silently skipped, matching the
// source. throttle is the shared ephemeral store (fail-open: if it is nil,
// every notification is sent).
func New(webhookURLs map[Level]string, throttle *ephemeral.Store, interval time.Duration) *Manager {
	return &Manager{
		webhookURLs: webhookURLs,
		throttle:    throttle,
		interval:    interval,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func throttleKey(level Level, title string) string {
	return fmt.Sprintf("notify:last:%s:%s", level, title)
}

func (m *Manager) shouldSend(level Level, title string) bool {
	if level == LevelCritical {
		return true
	}
	if m.throttle == nil {
		return true
	}
	return !m.throttle.Exists(throttleKey(level, title))
}

func (m *Manager) record(level Level, title string) {
	if m.throttle == nil {
		return
	}
	m.throttle.Set(throttleKey(level, title), "1", m.interval)
}

// Notify sends a notification unless suppressed by the frequency limiter;
// force bypasses the limiter.
func (m *Manager) Notify(ctx context.Context, level Level, title string, fields []Field, force bool) {
	if !force && !m.shouldSend(level, title) {
		log.Info().Str("title", title).Msg("notification suppressed (frequency limit)")
		return
	}

	m.sendSlack(ctx, level, title, fields)
	m.record(level, title)
}

func (m *Manager) sendSlack(ctx context.Context, level Level, title string, fields []Field) {
	url, ok := m.webhookURLs[level]
	if !ok || url == "" {
		log.Warn().Str("level", string(level)).Msg("slack webhook URL not configured for level")
		return
	}

	payload := slackPayload(level, title, fields)
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal slack payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("failed to build slack request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("slack notification error")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("slack notification failed")
		return
	}
	log.Info().Str("title", title).Msg("slack notification sent")
}

var slackColors = map[Level]string{
	LevelInfo: "#36a64f", LevelWarning: "warning", LevelError: "danger", LevelCritical: "#FF0000",
}

func slackPayload(level Level, title string, fields []Field) map[string]any {
	attachmentFields := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		attachmentFields = append(attachmentFields, map[string]any{"title": f.Title, "value": f.Value, "short": true})
	}
	return map[string]any{
		"username": "kabuto-relay",
		"attachments": []map[string]any{{
			"color":  slackColors[level],
			"title":  title,
			"fields": attachmentFields,
			"ts":     time.Now().Unix(),
		}},
	}
}

// Event catalogue, per SPEC_FULL.md §12. Each builds the field set and
// routes to the correct level, mirroring the source's notify_* helpers.

func (m *Manager) SystemStarted(ctx context.Context) {
	m.Notify(ctx, LevelInfo, "system_started", []Field{{Title: "started_at", Value: time.Now().Format(time.RFC3339)}}, false)
}

func (m *Manager) SystemStopped(ctx context.Context, reason string) {
	m.Notify(ctx, LevelError, "system_stopped", []Field{
		{Title: "reason", Value: reason},
		{Title: "stopped_at", Value: time.Now().Format(time.RFC3339)},
	}, false)
}

func (m *Manager) SignalGenerationFailed(ctx context.Context, errType, errMsg string) {
	m.Notify(ctx, LevelError, "signal_generation_failed", []Field{
		{Title: "error_type", Value: errType},
		{Title: "error_message", Value: errMsg},
	}, false)
}

func (m *Manager) HeartbeatMissed(ctx context.Context, clientID string, lastHeartbeat time.Time) {
	elapsedMin := int(time.Since(lastHeartbeat).Minutes())
	m.Notify(ctx, LevelError, "heartbeat_missed", []Field{
		{Title: "client_id", Value: clientID},
		{Title: "last_heartbeat", Value: lastHeartbeat.Format(time.RFC3339)},
		{Title: "elapsed_minutes", Value: fmt.Sprintf("%d", elapsedMin)},
	}, false)
}

func (m *Manager) OrderFailed(ctx context.Context, signalID, ticker, reason string) {
	m.Notify(ctx, LevelWarning, "order_failed", []Field{
		{Title: "signal_id", Value: signalID},
		{Title: "ticker", Value: ticker},
		{Title: "reason", Value: reason},
	}, false)
}

func (m *Manager) KillSwitchActivated(ctx context.Context, reason string, dailyPnL float64, tradeCount int) {
	m.Notify(ctx, LevelCritical, "kill_switch_activated", []Field{
		{Title: "reason", Value: reason},
		{Title: "daily_pnl", Value: fmt.Sprintf("%.0f", dailyPnL)},
		{Title: "trade_count", Value: fmt.Sprintf("%d", tradeCount)},
	}, true)
}

func (m *Manager) HighErrorRate(ctx context.Context, errorCount int, window string) {
	m.Notify(ctx, LevelError, "high_error_rate", []Field{
		{Title: "error_count", Value: fmt.Sprintf("%d", errorCount)},
		{Title: "window", Value: window},
	}, false)
}

func (m *Manager) ConsecutiveFailures(ctx context.Context, failureCount int, lastTicker, lastAction, reason string) {
	m.Notify(ctx, LevelError, fmt.Sprintf("consecutive_failures_%d", failureCount), []Field{
		{Title: "failure_count", Value: fmt.Sprintf("%d", failureCount)},
		{Title: "last_ticker", Value: lastTicker},
		{Title: "last_action", Value: lastAction},
		{Title: "reason", Value: reason},
		{Title: "recommended_action", Value: recommendedAction(reason)},
	}, false)
}

// recommendedAction maps a failure reason to a suggested remediation,
// matching the source's _get_recommended_action keyword heuristics.
func recommendedAction(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "validation"):
		return "check order parameter configuration"
	case strings.Contains(lower, "risk"):
		return "review risk control settings"
	case strings.Contains(lower, "cooldown"):
		return "check cooldown configuration"
	case strings.Contains(lower, "blacklist"):
		return "check the ticker blacklist"
	default:
		return "check system logs"
	}
}
