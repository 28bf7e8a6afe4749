// Package tui implements relayctl's terminal admin console (SPEC_FULL.md
// §13.2): a live dashboard over the relay's own HTTP surface, polled on an
// interval and rendered with the teacher's lipgloss chrome
// (themes.go/animation.go kept as-is; this file replaces the Solana-bot
// dashboard/signals/positions panes with the relay's status/signals/
// cooldowns/heartbeats panes).
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	ColorBg           = lipgloss.Color("#0f1c2e")
	ColorBorder       = lipgloss.Color("#2e7de9")
	ColorText         = lipgloss.Color("#a9b1d6")
	ColorAccentGreen  = lipgloss.Color("#41a6b5")
	ColorAccentPurple = lipgloss.Color("#bd93f9")
	ColorActive       = lipgloss.Color("#7aa2f7")

	ColorSuccess = lipgloss.Color("#73daca")
	ColorWarning = lipgloss.Color("#ff9e64")
	ColorError   = lipgloss.Color("#f7768e")
	ColorInfo    = lipgloss.Color("#7dcfff")
	ColorProfit  = lipgloss.Color("#9ece6a")
	ColorLoss    = lipgloss.Color("#f7768e")

	StylePage = lipgloss.NewStyle().Background(ColorBg).Foreground(ColorText)

	StyleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorActive)
	StyleKey    = lipgloss.NewStyle().Foreground(ColorAccentPurple).Bold(true)

	StyleProfit = lipgloss.NewStyle().Foreground(ColorProfit)
	StyleLoss   = lipgloss.NewStyle().Foreground(ColorLoss)

	ColorGray        = ColorText
	StyleTableHeader = lipgloss.NewStyle().Foreground(ColorActive).Bold(true)
	StyleFooter      = lipgloss.NewStyle().Foreground(ColorText)
	StyleHelpText    = lipgloss.NewStyle().Foreground(ColorAccentPurple).Italic(true)
	StyleModal       = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(ColorBorder).
				Padding(1, 2)
)

func RenderHotKey(k, d string) string {
	return StyleKey.Render("["+k+"]") + d
}

// Screen is one of relayctl's dashboard tabs.
type Screen string

const (
	ScreenDashboard Screen = "dashboard"
	ScreenSignals   Screen = "signals"
	ScreenCooldowns Screen = "cooldowns"
	ScreenHeartbeats Screen = "heartbeats"
	ScreenLogs      Screen = "logs"
)

// KeyMap is relayctl's global key bindings.
type KeyMap struct {
	Quit, KillSwitch, Refresh        key.Binding
	Up, Down, Enter, Escape          key.Binding
	Tab1, Tab2, Tab3, Tab4, Tab5     key.Binding
}

var keys = KeyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c")),
	KillSwitch: key.NewBinding(key.WithKeys("k")),
	Refresh:    key.NewBinding(key.WithKeys("r")),
	Up:         key.NewBinding(key.WithKeys("up", "k")),
	Down:       key.NewBinding(key.WithKeys("down", "j")),
	Enter:      key.NewBinding(key.WithKeys("enter")),
	Escape:     key.NewBinding(key.WithKeys("esc")),
	Tab1:       key.NewBinding(key.WithKeys("1")),
	Tab2:       key.NewBinding(key.WithKeys("2")),
	Tab3:       key.NewBinding(key.WithKeys("3")),
	Tab4:       key.NewBinding(key.WithKeys("4")),
	Tab5:       key.NewBinding(key.WithKeys("5")),
}

// SignalSummary is the subset of a dispatch-API signal the dashboard shows.
type SignalSummary struct {
	SignalID string
	Action   string
	Ticker   string
	Quantity int
	State    string
}

// CooldownSummary mirrors api.cooldownEntry.
type CooldownSummary struct {
	Action           string
	Ticker           string
	RemainingSeconds int
}

// HeartbeatSummary mirrors api.heartbeatEntry.
type HeartbeatSummary struct {
	ClientID         string
	Status           string
	SecondsSinceLast int64
}

// StatusSummary mirrors the subset of api.statusResponse the dashboard shows.
type StatusSummary struct {
	TradingEnabled  bool
	MarketOpen      bool
	EntryCount      int
	TotalTrades     int
	TotalPnL        float64
	ConsecutiveLoss int
	TotalExposure   float64
	MaxExposure     float64
	OpenPositions   int
	MaxPositions    int
}

// Model is relayctl's bubbletea model. It holds only display state — all
// HTTP polling happens in cmd/relayctl, which pushes fetched data in via
// Send* helpers below.
type Model struct {
	CurrentScreen Screen
	Width, Height int

	Status     StatusSummary
	Signals    []SignalSummary
	Cooldowns  []CooldownSummary
	Heartbeats []HeartbeatSummary
	LogLines   []string

	StartTime  time.Time
	LastPolled time.Time
	Err        error

	Anim AnimationState

	OnToggleKillSwitch func()
}

func NewModel() Model {
	return Model{
		CurrentScreen: ScreenDashboard,
		StartTime:     time.Now(),
		Anim:          NewAnimationState(),
	}
}

func (m *Model) SetCallbacks(toggleKillSwitch func()) {
	m.OnToggleKillSwitch = toggleKillSwitch
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("relayctl"),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return TickMsg(t) }),
		AnimationTickCmd(),
	)
}

// Messages pushed in by cmd/relayctl's poller.
type TickMsg time.Time
type StatusMsg StatusSummary
type SignalsMsg []SignalSummary
type CooldownsMsg []CooldownSummary
type HeartbeatsMsg []HeartbeatSummary
type LogMsg struct{ Lines []string }
type ErrMsg struct{ Err error }

func SendStatus(p *tea.Program, s StatusSummary)         { p.Send(StatusMsg(s)) }
func SendSignals(p *tea.Program, s []SignalSummary)       { p.Send(SignalsMsg(s)) }
func SendCooldowns(p *tea.Program, c []CooldownSummary)   { p.Send(CooldownsMsg(c)) }
func SendHeartbeats(p *tea.Program, h []HeartbeatSummary) { p.Send(HeartbeatsMsg(h)) }
func SendErr(p *tea.Program, err error)                   { p.Send(ErrMsg{err}) }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return TickMsg(t) })

	case AnimationTickMsg:
		m.Anim.Tick()
		return m, AnimationTickCmd()

	case StatusMsg:
		m.Status = StatusSummary(msg)
		m.LastPolled = time.Now()
		return m, nil

	case SignalsMsg:
		m.Signals = msg
		return m, nil

	case CooldownsMsg:
		m.Cooldowns = msg
		return m, nil

	case HeartbeatsMsg:
		m.Heartbeats = msg
		return m, nil

	case LogMsg:
		m.LogLines = append(m.LogLines, msg.Lines...)
		if len(m.LogLines) > 500 {
			m.LogLines = m.LogLines[len(m.LogLines)-500:]
		}
		return m, nil

	case ErrMsg:
		m.Err = msg.Err
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.KillSwitch):
		if m.OnToggleKillSwitch != nil {
			m.OnToggleKillSwitch()
		}
		return m, nil
	case key.Matches(msg, keys.Tab1):
		m.CurrentScreen = ScreenDashboard
	case key.Matches(msg, keys.Tab2):
		m.CurrentScreen = ScreenSignals
	case key.Matches(msg, keys.Tab3):
		m.CurrentScreen = ScreenCooldowns
	case key.Matches(msg, keys.Tab4):
		m.CurrentScreen = ScreenHeartbeats
	case key.Matches(msg, keys.Tab5):
		m.CurrentScreen = ScreenLogs
	}
	return m, nil
}

func (m Model) View() string {
	if m.Width == 0 {
		return "initializing relayctl..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.Height - lipgloss.Height(header) - lipgloss.Height(footer)

	var body string
	switch m.CurrentScreen {
	case ScreenSignals:
		body = m.renderSignals(bodyHeight)
	case ScreenCooldowns:
		body = m.renderCooldowns(bodyHeight)
	case ScreenHeartbeats:
		body = m.renderHeartbeats(bodyHeight)
	case ScreenLogs:
		body = m.renderLogs(bodyHeight)
	default:
		body = m.renderDashboard(bodyHeight)
	}

	return StylePage.Width(m.Width).Height(m.Height).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, body, footer),
	)
}

func (m Model) renderHeader() string {
	status := "TRADING ENABLED"
	style := StyleProfit
	if !m.Status.TradingEnabled {
		status = "KILL SWITCH ACTIVE"
		style = StyleLoss
	}
	market := "MARKET CLOSED"
	if m.Status.MarketOpen {
		market = "MARKET OPEN"
	}
	title := StyleHeader.Render(" relayctl ") + "  " + style.Render(status) + "  " + StyleFooter.Render(market)
	return renderBox("", title, m.Width, 3)
}

func (m Model) renderFooter() string {
	hints := strings.Join([]string{
		RenderHotKey("1", " dashboard"),
		RenderHotKey("2", " signals"),
		RenderHotKey("3", " cooldowns"),
		RenderHotKey("4", " heartbeats"),
		RenderHotKey("5", " logs"),
		RenderHotKey("k", " kill-switch"),
		RenderHotKey("q", " quit"),
	}, "  ")
	return StyleFooter.Width(m.Width).Render(" " + hints)
}

func (m Model) renderDashboard(h int) string {
	s := m.Status
	util := 0.0
	if s.MaxExposure > 0 {
		util = s.TotalExposure / s.MaxExposure
	}

	lines := []string{
		fmt.Sprintf("Daily entries:       %d", s.EntryCount),
		fmt.Sprintf("Daily trades:        %d", s.TotalTrades),
		fmt.Sprintf("Daily PnL:           %.0f", s.TotalPnL),
		fmt.Sprintf("Consecutive losses:  %d", s.ConsecutiveLoss),
		fmt.Sprintf("Open positions:      %d / %d", s.OpenPositions, s.MaxPositions),
		"",
		"Exposure utilization:",
		renderGauge(util*100, 40, ColorAccentGreen),
		"",
		fmt.Sprintf("Last polled: %s", formatSince(m.LastPolled)),
	}
	if m.Err != nil {
		lines = append(lines, "", StyleLoss.Render("poll error: "+m.Err.Error()))
	}
	return renderBox("status", strings.Join(lines, "\n"), m.Width, h)
}

func (m Model) renderSignals(h int) string {
	var b strings.Builder
	b.WriteString(StyleTableHeader.Render(fmt.Sprintf("%-28s %-6s %-6s %-8s %-10s", "SIGNAL_ID", "ACTION", "TICKER", "QTY", "STATE")))
	b.WriteString("\n")
	for _, s := range m.Signals {
		b.WriteString(fmt.Sprintf("%-28s %-6s %-6s %-8d %-10s\n", truncate(s.SignalID, 28), s.Action, s.Ticker, s.Quantity, s.State))
	}
	if len(m.Signals) == 0 {
		b.WriteString(StyleFooter.Render("(no pending signals)"))
	}
	return renderBox("pending signals", b.String(), m.Width, h)
}

func (m Model) renderCooldowns(h int) string {
	var b strings.Builder
	b.WriteString(StyleTableHeader.Render(fmt.Sprintf("%-6s %-6s %-12s", "ACTION", "TICKER", "REMAINING")))
	b.WriteString("\n")
	for _, c := range m.Cooldowns {
		b.WriteString(fmt.Sprintf("%-6s %-6s %-12s\n", c.Action, c.Ticker, formatDuration(time.Duration(c.RemainingSeconds)*time.Second)))
	}
	if len(m.Cooldowns) == 0 {
		b.WriteString(StyleFooter.Render("(no active cooldowns)"))
	}
	return renderBox("cooldowns", b.String(), m.Width, h)
}

func (m Model) renderHeartbeats(h int) string {
	var b strings.Builder
	b.WriteString(StyleTableHeader.Render(fmt.Sprintf("%-20s %-10s %-10s", "CLIENT_ID", "STATUS", "LAST SEEN")))
	b.WriteString("\n")
	for _, hb := range m.Heartbeats {
		style := StyleProfit
		if hb.Status != "active" {
			style = StyleLoss
		}
		b.WriteString(fmt.Sprintf("%-20s %-10s %-10s\n", hb.ClientID, style.Render(hb.Status), formatDuration(time.Duration(hb.SecondsSinceLast)*time.Second)+" ago"))
	}
	if len(m.Heartbeats) == 0 {
		b.WriteString(StyleFooter.Render("(no clients reporting)"))
	}
	return renderBox("heartbeats", b.String(), m.Width, h)
}

func (m Model) renderLogs(h int) string {
	maxLines := h - 2
	lines := m.LogLines
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return renderBox("logs", strings.Join(lines, "\n"), m.Width, h)
}

func formatSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return formatDuration(time.Since(t)) + " ago"
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func truncate(s string, n int) string { return runewidth.Truncate(s, n, "") }

func renderBox(title, content string, w, h int) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)
	if w > 2 {
		style = style.Width(w - 2)
	}
	if h > 2 {
		style = style.Height(h - 2)
	}
	body := content
	if title != "" {
		body = StyleHeader.Render(" "+title+" ") + "\n" + content
	}
	return style.Render(body)
}

func renderGauge(percent float64, width int, color lipgloss.Color) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(float64(width) * percent / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(color).Render(bar) + fmt.Sprintf(" %5.1f%%", percent)
}
