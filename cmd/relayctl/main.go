package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"kabuto-relay/internal/tui"
)

func main() {
	baseURL := os.Getenv("RELAY_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("RELAY_API_KEY")
	adminPassword := os.Getenv("RELAY_ADMIN_PASSWORD")

	if len(os.Args) >= 2 && os.Args[1] == "reset-cooldown" {
		runResetCooldown(baseURL, apiKey, os.Args[2:])
		return
	}

	client := newAPIClient(baseURL, apiKey, adminPassword)

	model := tui.NewModel()
	model.SetCallbacks(func() {
		if err := client.toggleKillSwitch(); err != nil {
			fmt.Fprintln(os.Stderr, "kill-switch toggle failed:", err)
		}
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	go pollLoop(p, client)

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "relayctl exited with error:", err)
		os.Exit(1)
	}
}

// runResetCooldown implements the `relayctl reset-cooldown <ticker> <action>`
// subcommand of SPEC_FULL.md §13.2, using "*" as a wildcard for either
// argument to mirror the HTTP API's own query-parameter defaults.
func runResetCooldown(baseURL, apiKey string, args []string) {
	ticker, action := "*", "*"
	if len(args) >= 1 {
		ticker = args[0]
	}
	if len(args) >= 2 {
		action = args[1]
	}

	client := newAPIClient(baseURL, apiKey, "")
	if err := client.resetCooldown(ticker, action); err != nil {
		fmt.Fprintln(os.Stderr, "reset-cooldown failed:", err)
		os.Exit(1)
	}
	fmt.Printf("cooldown reset: ticker=%s action=%s\n", ticker, action)
}

// pollLoop fetches status/signals/cooldowns/heartbeats on a fixed interval
// and pushes each into the running bubbletea program, mirroring the
// teacher's dashboard refresh loop.
func pollLoop(p *tea.Program, client *apiClient) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	refresh := func() {
		if status, err := client.fetchStatus(); err == nil {
			tui.SendStatus(p, status)
		} else {
			tui.SendErr(p, err)
		}
		if signals, err := client.fetchPendingSignals(); err == nil {
			tui.SendSignals(p, signals)
		}
		if cooldowns, err := client.fetchCooldowns(); err == nil {
			tui.SendCooldowns(p, cooldowns)
		}
		if heartbeats, err := client.fetchHeartbeats(); err == nil {
			tui.SendHeartbeats(p, heartbeats)
		}
	}

	refresh()
	for range ticker.C {
		refresh()
	}
}

type apiClient struct {
	baseURL       string
	apiKey        string
	adminPassword string
	http          *http.Client
}

func newAPIClient(baseURL, apiKey, adminPassword string) *apiClient {
	return &apiClient{
		baseURL:       baseURL,
		apiKey:        apiKey,
		adminPassword: adminPassword,
		http:          &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *apiClient) authedGet(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.http.Do(req)
}

type statusResponse struct {
	TradingEnabled bool `json:"trading_enabled"`
	MarketOpen     bool `json:"market_open"`
	DailyStats     struct {
		EntryCount        int     `json:"entry_count"`
		TotalTrades       int     `json:"total_trades"`
		TotalPnL          float64 `json:"total_pnl"`
		ConsecutiveLosses int     `json:"consecutive_losses"`
	} `json:"daily_stats"`
	RiskMetrics struct {
		TotalExposure    float64 `json:"total_exposure"`
		MaxTotalExposure float64 `json:"max_total_exposure"`
		OpenPositions    int     `json:"open_positions"`
		MaxOpenPositions int     `json:"max_open_positions"`
	} `json:"risk_metrics"`
}

func (c *apiClient) fetchStatus() (tui.StatusSummary, error) {
	resp, err := c.authedGet("/status")
	if err != nil {
		return tui.StatusSummary{}, err
	}
	defer resp.Body.Close()

	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return tui.StatusSummary{}, err
	}
	return tui.StatusSummary{
		TradingEnabled:  s.TradingEnabled,
		MarketOpen:      s.MarketOpen,
		EntryCount:      s.DailyStats.EntryCount,
		TotalTrades:     s.DailyStats.TotalTrades,
		TotalPnL:        s.DailyStats.TotalPnL,
		ConsecutiveLoss: s.DailyStats.ConsecutiveLosses,
		TotalExposure:   s.RiskMetrics.TotalExposure,
		MaxExposure:     s.RiskMetrics.MaxTotalExposure,
		OpenPositions:   s.RiskMetrics.OpenPositions,
		MaxPositions:    s.RiskMetrics.MaxOpenPositions,
	}, nil
}

type signalDTO struct {
	SignalID string `json:"signal_id"`
	Action   string `json:"action"`
	Ticker   string `json:"ticker"`
	Quantity int    `json:"quantity"`
	State    string `json:"state"`
}

func (c *apiClient) fetchPendingSignals() ([]tui.SignalSummary, error) {
	resp, err := c.authedGet("/api/signals/pending")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var signals []signalDTO
	if err := json.NewDecoder(resp.Body).Decode(&signals); err != nil {
		return nil, err
	}

	out := make([]tui.SignalSummary, 0, len(signals))
	for _, s := range signals {
		out = append(out, tui.SignalSummary{
			SignalID: s.SignalID,
			Action:   s.Action,
			Ticker:   s.Ticker,
			Quantity: s.Quantity,
			State:    s.State,
		})
	}
	return out, nil
}

type cooldownListResponse struct {
	Cooldowns []struct {
		Action           string `json:"action"`
		Ticker           string `json:"ticker"`
		RemainingSeconds int    `json:"remaining_seconds"`
	} `json:"cooldowns"`
}

func (c *apiClient) fetchCooldowns() ([]tui.CooldownSummary, error) {
	resp, err := c.authedGet("/api/admin/cooldowns")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list cooldownListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}

	out := make([]tui.CooldownSummary, 0, len(list.Cooldowns))
	for _, cd := range list.Cooldowns {
		out = append(out, tui.CooldownSummary{
			Action:           cd.Action,
			Ticker:           cd.Ticker,
			RemainingSeconds: cd.RemainingSeconds,
		})
	}
	return out, nil
}

type heartbeatListResponse struct {
	Heartbeats []struct {
		ClientID         string `json:"client_id"`
		Status           string `json:"status"`
		SecondsSinceLast int64  `json:"seconds_since_last"`
	} `json:"heartbeats"`
}

func (c *apiClient) fetchHeartbeats() ([]tui.HeartbeatSummary, error) {
	resp, err := c.authedGet("/api/admin/heartbeats")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list heartbeatListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}

	out := make([]tui.HeartbeatSummary, 0, len(list.Heartbeats))
	for _, hb := range list.Heartbeats {
		out = append(out, tui.HeartbeatSummary{
			ClientID:         hb.ClientID,
			Status:           hb.Status,
			SecondsSinceLast: hb.SecondsSinceLast,
		})
	}
	return out, nil
}

func (c *apiClient) toggleKillSwitch() error {
	status, err := c.killSwitchStatus()
	if err != nil {
		return err
	}

	body := map[string]any{
		"enabled":  !status,
		"password": c.adminPassword,
		"reason":   "toggled from relayctl",
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/admin/kill-switch", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kill-switch toggle: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *apiClient) killSwitchStatus() (bool, error) {
	resp, err := c.authedGet("/api/admin/kill-switch/status")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var out struct {
		TradingEnabled bool `json:"trading_enabled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.TradingEnabled, nil
}

func (c *apiClient) resetCooldown(ticker, action string) error {
	q := url.Values{}
	q.Set("ticker", ticker)
	q.Set("action", action)

	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/api/admin/cooldowns?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset-cooldown: unexpected status %d", resp.StatusCode)
	}
	return nil
}
