package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"kabuto-relay/internal/metrics"
	"kabuto-relay/internal/store"
)

func toSignalDTO(s *store.Signal) signalDTO {
	return signalDTO{
		SignalID:   s.SignalID,
		Action:     s.Action,
		Ticker:     s.Ticker,
		Quantity:   s.Quantity,
		Price:      s.PriceType,
		EntryPrice: s.EntryPrice,
		StopLoss:   s.StopLoss,
		TakeProfit: s.TakeProfit,
		ATR:        s.ATR,
		State:      s.State,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		Checksum:   s.Checksum,
	}
}

// handlePendingSignals implements the poll-pending operation of spec §4.8,
// running the five-level pre-dispatch validator (§4.6) over every PENDING
// signal before it is returned. Grounded on
// original_source/relay_server/app/api/signals.py's get_pending_signals.
func (s *Server) handlePendingSignals(c *fiber.Ctx) error {
	timer := prometheus.NewTimer(metrics.DispatchPollDuration)
	defer timer.ObserveDuration()

	now := time.Now()
	pending, err := s.deps.DB.PendingSignals(now.Unix())
	if err != nil {
		return failInternal(c, err)
	}
	if len(pending) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	var validated []signalDTO
	for _, sig := range pending {
		result, err := s.deps.Validator.Validate(sig.Ticker, sig.Action, sig.Quantity, "market")
		if err != nil {
			return failInternal(c, err)
		}
		if result.Allowed {
			validated = append(validated, toSignalDTO(sig))
			continue
		}

		reason := "Pre-order validation failed: " + result.Reason
		if ferr := s.deps.DB.FailSignal(sig.SignalID, reason); ferr != nil {
			log.Error().Err(ferr).Str("signal_id", sig.SignalID).Msg("failed to mark signal FAILED after validator rejection")
		}
		metrics.SignalsRejected.WithLabelValues("pre_dispatch", result.Reason).Inc()
		log.Warn().Str("signal_id", sig.SignalID).Str("reason", result.Reason).Msg("signal failed pre-dispatch validation")
	}

	if len(validated) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.JSON(pendingListResponse{
		Status:    "success",
		Timestamp: now.Unix(),
		Count:     len(validated),
		Signals:   validated,
	})
}

func (s *Server) handleGetSignal(c *fiber.Ctx) error {
	sig, err := s.deps.DB.GetSignal(c.Params("id"))
	if err == store.ErrNotFound {
		return failNotFound(c, "signal not found")
	}
	if err != nil {
		return failInternal(c, err)
	}
	return c.JSON(toSignalDTO(sig))
}

// handleAck implements the acknowledge operation of spec §4.8: checksum
// must match, and a second ack against an already-FETCHED signal is a
// success no-op.
func (s *Server) handleAck(c *fiber.Ctx) error {
	signalID := c.Params("id")

	var req ackRequest
	if err := c.BodyParser(&req); err != nil {
		return failValidation(c, "malformed JSON body")
	}

	sig, err := s.deps.DB.GetSignal(signalID)
	if err == store.ErrNotFound {
		return failNotFound(c, "signal not found")
	}
	if err != nil {
		return failInternal(c, err)
	}

	if sig.Checksum != req.Checksum {
		log.Error().Str("signal_id", signalID).Msg("checksum mismatch on ack")
		return fail(c, fiber.StatusBadRequest, codeChecksumMismatch, "checksum mismatch", nil)
	}

	updated, err := s.deps.DB.AckSignal(signalID, req.ClientID, time.Now().Unix())
	if err != nil {
		return failInternal(c, err)
	}

	log.Info().Str("signal_id", signalID).Str("client_id", req.ClientID).Msg("signal acknowledged")

	var fetchedAt int64
	if updated.FetchedAt != nil {
		fetchedAt = *updated.FetchedAt
	}
	return c.JSON(ackResponse{Status: "success", SignalID: signalID, State: "fetched", AcknowledgedAt: fetchedAt})
}

// handleExecuted implements the report-executed operation of spec §4.8:
// Signal, ExecutionLog, Position, and DailyStats all move together.
func (s *Server) handleExecuted(c *fiber.Ctx) error {
	signalID := c.Params("id")

	var req executedRequest
	if err := c.BodyParser(&req); err != nil {
		return failValidation(c, "malformed JSON body")
	}
	if req.ExecutionPrice <= 0 || req.ExecutionQty <= 0 {
		return failValidation(c, "execution_price and execution_quantity must be positive")
	}

	sig, err := s.deps.DB.GetSignal(signalID)
	if err == store.ErrNotFound {
		return failNotFound(c, "signal not found")
	}
	if err != nil {
		return failInternal(c, err)
	}

	executedAt := req.ExecutedAt
	if executedAt == 0 {
		executedAt = time.Now().Unix()
	}

	if err := s.deps.DB.MarkExecuted(signalID, req.ExecutionPrice, req.OrderID, executedAt); err != nil {
		if err == store.ErrAlreadyExists {
			return failConflict(c, codeStateConflict, "signal already executed")
		}
		return failInternal(c, err)
	}

	positionEffect := "open"
	if sig.Action == "sell" {
		positionEffect = "close"
	}
	executionID := "EXE_" + time.Unix(executedAt, 0).UTC().Format("20060102_150405") + "_" + sig.Ticker

	execLog := &store.ExecutionLog{
		ExecutionID:    executionID,
		SignalID:       signalID,
		OrderID:        req.OrderID,
		Action:         sig.Action,
		Ticker:         sig.Ticker,
		Quantity:       req.ExecutionQty,
		Price:          req.ExecutionPrice,
		TotalAmount:    req.ExecutionPrice * float64(req.ExecutionQty),
		PositionEffect: positionEffect,
		RealizedPnL:    req.RealizedPnL,
		ExecutedAt:     executedAt,
	}
	if err := s.deps.DB.InsertExecutionLog(execLog); err != nil {
		return failInternal(c, err)
	}

	if err := s.deps.Reconciler.Apply(signalID, sig.Ticker, sig.Action, req.ExecutionQty, req.ExecutionPrice, executedAt); err != nil {
		return failInternal(c, err)
	}

	var outcome *store.FillOutcome
	if req.RealizedPnL != nil && req.IsWin != nil {
		outcome = &store.FillOutcome{PnL: *req.RealizedPnL, IsWin: *req.IsWin}
	}
	dailyStats, err := s.deps.Risk.RecordFill(sig.Action, outcome)
	if err != nil {
		return failInternal(c, err)
	}

	// Re-evaluate the auto-kill predicates on every fill, independent of
	// the pre-dispatch validator's buy-only check, per spec §4.10.
	if tripped, reason, err := s.deps.Risk.CheckAutoKillSwitch(); err != nil {
		return failInternal(c, err)
	} else if tripped {
		log.Warn().Str("signal_id", signalID).Str("reason", reason).Msg("auto kill-switch triggered after fill")
		if s.deps.Notify != nil {
			s.deps.Notify.KillSwitchActivated(c.Context(), reason, dailyStats.TotalPnL, dailyStats.TotalTrades)
		}
		if s.deps.Stream != nil {
			s.deps.Stream.Broadcast(streamEvent("kill_switch_activated", fiber.Map{"reason": reason}))
		}
	}

	if dailyStats.ConsecutiveLosses > 0 && s.deps.Blacklist != nil && s.deps.Blacklist.ShouldAutoBan(dailyStats.ConsecutiveLosses) {
		if _, err := s.deps.Blacklist.AddAutoForLosses(sig.Ticker, dailyStats.ConsecutiveLosses); err != nil {
			log.Error().Err(err).Str("ticker", sig.Ticker).Msg("failed to auto-blacklist ticker after loss streak")
		}
	}

	metrics.SignalsExecuted.Inc()
	log.Info().
		Str("signal_id", signalID).
		Str("order_id", req.OrderID).
		Str("ticker", sig.Ticker).
		Float64("execution_price", req.ExecutionPrice).
		Int("quantity", req.ExecutionQty).
		Msg("order executed")

	if s.deps.Stream != nil {
		s.deps.Stream.Broadcast(streamEvent("signal_executed", fiber.Map{"signal_id": signalID, "ticker": sig.Ticker}))
	}

	return c.JSON(executedResponse{Status: "success", SignalID: signalID, State: "executed", ExecutionLogged: true})
}

// handleFailed implements the report-failed operation of spec §4.8.
func (s *Server) handleFailed(c *fiber.Ctx) error {
	signalID := c.Params("id")

	var req failedRequest
	if err := c.BodyParser(&req); err != nil {
		return failValidation(c, "malformed JSON body")
	}

	if err := s.deps.DB.FailSignal(signalID, req.Error); err != nil {
		if err == store.ErrNotFound {
			return failNotFound(c, "signal not found")
		}
		return failInternal(c, err)
	}

	log.Error().Str("signal_id", signalID).Str("error", req.Error).Msg("signal execution failed")

	if s.deps.Notify != nil {
		s.deps.Notify.OrderFailed(c.Context(), signalID, "", req.Error)
	}
	if s.deps.Stream != nil {
		s.deps.Stream.Broadcast(streamEvent("signal_failed", fiber.Map{"signal_id": signalID, "error": req.Error}))
	}

	return c.JSON(failedResponse{Status: "failure_recorded", Message: "Signal " + signalID + " marked as failed"})
}
