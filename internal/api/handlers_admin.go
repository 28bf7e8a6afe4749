package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"

	"kabuto-relay/internal/metrics"
	"kabuto-relay/internal/store"
)

// handleHeartbeat records a client liveness ping, per spec §6.
func (s *Server) handleHeartbeat(c *fiber.Ctx) error {
	var req heartbeatRequest
	if err := c.BodyParser(&req); err != nil {
		return failValidation(c, "malformed JSON body")
	}
	if req.ClientID == "" {
		return failValidation(c, "client_id is required")
	}

	at := req.Timestamp
	if at == 0 {
		at = time.Now().Unix()
	}
	if err := s.deps.DB.UpsertHeartbeat(req.ClientID, at); err != nil {
		return failInternal(c, err)
	}

	log.Debug().Str("client_id", req.ClientID).Msg("heartbeat received")
	return c.JSON(heartbeatResponse{Status: "success", Message: "Heartbeat acknowledged for " + req.ClientID})
}

// handleHeartbeatList lists every client's last ping and freshness, per
// spec §6's /api/admin/heartbeats.
func (s *Server) handleHeartbeatList(c *fiber.Ctx) error {
	hbs, err := s.deps.DB.AllHeartbeats()
	if err != nil {
		return failInternal(c, err)
	}

	now := time.Now().Unix()
	staleAfter := int64(s.deps.HeartbeatStaleAfter.Seconds())
	out := make([]heartbeatEntry, 0, len(hbs))
	for _, hb := range hbs {
		since := now - hb.LastHeartbeat
		status := "active"
		if since >= staleAfter {
			status = "inactive"
		}
		out = append(out, heartbeatEntry{
			ClientID:         hb.ClientID,
			LastHeartbeat:    hb.LastHeartbeat,
			Status:           status,
			SecondsSinceLast: since,
		})
	}

	return c.JSON(heartbeatListResponse{Status: "success", Count: len(out), Heartbeats: out})
}

// handleStatus serves the comprehensive system status of spec §6's /status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	tradingEnabled, err := s.deps.KillSwitch.IsTradingEnabled()
	if err != nil {
		return failInternal(c, err)
	}

	now := time.Now()
	marketOpen := s.deps.Clock.IsSafeWindow(now)

	date := now.In(s.deps.Clock.Location).Format("2006-01-02")
	stats, err := s.deps.DB.GetOrCreateDailyStats(date)
	if err != nil {
		return failInternal(c, err)
	}

	totalExposure, err := s.deps.DB.TotalExposure()
	if err != nil {
		return failInternal(c, err)
	}
	openPositions, err := s.deps.DB.OpenPositionCount()
	if err != nil {
		return failInternal(c, err)
	}

	maxExposure := s.deps.Risk.Config().MaxTotalExposure
	utilization := 0.0
	if maxExposure > 0 {
		utilization = totalExposure / maxExposure * 100
	}
	maxEntries, _ := s.deps.Risk.Limits()

	overallStatus := "active"
	if !tradingEnabled {
		overallStatus = "disabled"
	}

	return c.JSON(statusResponse{
		Status:         overallStatus,
		TradingEnabled: tradingEnabled,
		MarketOpen:     marketOpen,
		DailyStats: dailyStatsDTO{
			EntryCount:        stats.EntryCount,
			ExitCount:         stats.ExitCount,
			TotalTrades:       stats.TotalTrades,
			TotalPnL:          stats.TotalPnL,
			ConsecutiveLosses: stats.ConsecutiveLosses,
			ErrorCount:        stats.ErrorCount,
		},
		RiskMetrics: riskMetricsDTO{
			TotalExposure:          totalExposure,
			MaxTotalExposure:       maxExposure,
			ExposureUtilizationPct: utilization,
			OpenPositions:          openPositions,
			MaxOpenPositions:       s.deps.Risk.Config().MaxOpenPositions,
			DailyEntries:           stats.EntryCount,
			MaxDailyEntries:        maxEntries,
		},
		Timestamp: now.Unix(),
	})
}

// handleHealth reports durable-store and ephemeral-store reachability, per
// spec §6's /health. Grounded on
// original_source/relay_server/app/api/health.py's health_check, with the
// source's Redis ping replaced by the in-process ephemeral store's own
// read/write round-trip (there is no network hop to fail against).
func (s *Server) handleHealth(c *fiber.Ctx) error {
	storeStatus := "OK"
	if err := s.deps.DB.Ping(); err != nil {
		storeStatus = "ERROR: " + err.Error()
	}

	ephemeralStatus := "OK"
	const probeKey = "health:probe"
	s.deps.Ephemeral.Set(probeKey, "1", time.Second)
	if !s.deps.Ephemeral.Exists(probeKey) {
		ephemeralStatus = "ERROR: probe key not found after set"
	}

	overall := "healthy"
	if storeStatus != "OK" || ephemeralStatus != "OK" {
		overall = "unhealthy"
	}

	return c.JSON(healthResponse{
		Status:    overall,
		Timestamp: time.Now().Unix(),
		Version:   "1.0.0",
		Store:     storeStatus,
		Ephemeral: ephemeralStatus,
	})
}

// handleKillSwitchToggle implements the admin toggle of spec §6, decided by
// SPEC_FULL.md §14.4 to be a single {enabled, password, reason} form.
func (s *Server) handleKillSwitchToggle(c *fiber.Ctx) error {
	var req killSwitchRequest
	if err := c.BodyParser(&req); err != nil {
		return failValidation(c, "malformed JSON body")
	}
	if req.Password != s.deps.Security.AdminPassword {
		log.Warn().Msg("kill switch: invalid admin password")
		return failUnauthorized(c, "invalid admin password")
	}

	var message string
	if req.Enabled {
		if err := s.deps.KillSwitch.Deactivate("admin"); err != nil {
			return failInternal(c, err)
		}
		message = "Trading enabled"
	} else {
		reason := req.Reason
		if reason == "" {
			reason = "Manual activation by admin"
		}
		if err := s.deps.KillSwitch.Activate("manual", reason); err != nil {
			return failInternal(c, err)
		}
		message = "Trading disabled: " + reason
		if s.deps.Notify != nil {
			var pnl float64
			var trades int
			if stats, serr := s.deps.DB.GetOrCreateDailyStats(store.DateKey(time.Now())); serr == nil {
				pnl, trades = stats.TotalPnL, stats.TotalTrades
			}
			s.deps.Notify.KillSwitchActivated(c.Context(), reason, pnl, trades)
		}
	}

	if s.deps.Stream != nil {
		s.deps.Stream.Broadcast(streamEvent("kill_switch_toggled", fiber.Map{"enabled": req.Enabled}))
	}

	return c.JSON(killSwitchResponse{
		Status:         "success",
		TradingEnabled: req.Enabled,
		Message:        message,
		Timestamp:      time.Now().Unix(),
	})
}

func (s *Server) handleKillSwitchStatus(c *fiber.Ctx) error {
	status, err := s.deps.KillSwitch.GetStatus()
	if err != nil {
		return failInternal(c, err)
	}
	message := "Trading enabled"
	if !status.TradingEnabled {
		reason := status.Reason
		if reason == "" {
			reason = "Unknown"
		}
		message = "Trading disabled: " + reason
	}
	return c.JSON(killSwitchResponse{
		Status:         "success",
		TradingEnabled: status.TradingEnabled,
		Message:        message,
		Timestamp:      time.Now().Unix(),
	})
}

// handleCooldownList lists every active cooldown with remaining TTL, per
// spec §6's GET /api/admin/cooldowns.
func (s *Server) handleCooldownList(c *fiber.Ctx) error {
	active := s.deps.Cooldown.Active()
	out := make([]cooldownEntry, 0, len(active))
	for _, a := range active {
		out = append(out, cooldownEntry{
			Key:              "cooldown:" + a.Action + ":" + a.Ticker,
			Action:           a.Action,
			Ticker:           a.Ticker,
			RemainingSeconds: a.RemainingS,
			RemainingMinutes: float64(a.RemainingS) / 60.0,
		})
	}
	return c.JSON(cooldownListResponse{Status: "success", Count: len(out), Cooldowns: out})
}

// handleCooldownReset resets cooldowns matching ticker/action query
// parameters, "*" meaning wildcard for either, per spec §4.4/§6.
func (s *Server) handleCooldownReset(c *fiber.Ctx) error {
	ticker := c.Query("ticker", "*")
	action := c.Query("action", "*")

	s.deps.Cooldown.Reset(action, ticker)
	log.Info().Str("ticker", ticker).Str("action", action).Msg("cooldown reset")

	return c.JSON(fiber.Map{
		"status":    "success",
		"message":   "Cooldown reset for ticker=" + ticker + ", action=" + action,
		"timestamp": time.Now().Unix(),
	})
}

// handleAdminStream upgrades to the admin live-stream websocket of
// SPEC_FULL.md §13.3.
func (s *Server) handleAdminStream(c *fiber.Ctx) error {
	return adaptor.HTTPHandlerFunc(s.deps.Stream.ServeHTTP)(c)
}

// handleMetrics serves the Prometheus exposition of SPEC_FULL.md §13.1.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	return adaptor.HTTPHandler(metrics.Handler())(c)
}
