package api

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"kabuto-relay/internal/audit"
	"kabuto-relay/internal/metrics"
	"kabuto-relay/internal/store"
)

var tickerPattern = regexp.MustCompile(`^\d{4}$`)

// handleWebhook is the main ingress of spec §4.1, running gates §4.2-§4.5 in
// order before persisting a PENDING signal. Grounded on
// original_source/relay_server/app/api/webhook.py's receive_webhook.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return failValidation(c, "malformed JSON body")
	}

	if req.Passphrase != s.deps.Security.Passphrase {
		log.Warn().Str("remote_addr", c.IP()).Str("request_id", requestIDOf(c)).Msg("webhook: invalid passphrase")
		return failUnauthorized(c, "invalid passphrase")
	}

	if msg := validateWebhookShape(req); msg != "" {
		return failValidation(c, msg)
	}

	// §4.2 dedup gate: replay the cached reply for an identical
	// (timestamp, ticker, action) within the TTL window.
	dedupKey := DedupKey(req.Timestamp, req.Ticker, req.Action)
	if cached, ok := s.deps.Ephemeral.Get(dedupKey); ok {
		log.Info().Str("key", dedupKey).Msg("webhook: duplicate request, replaying cached reply")
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	// §4.3 market-hours gate.
	now := time.Now()
	decision := s.deps.Clock.ShouldAcceptSignal(now)
	if !decision.Accept && decision.Action == "REJECT" {
		metrics.SignalsRejected.WithLabelValues("market_hours", decision.Reason).Inc()
		return failPolicy(c, "signal rejected: "+decision.Reason)
	}

	// §4.4 cooldown gate.
	cd := s.deps.Cooldown.Check(req.Action, req.Ticker)
	if !cd.Allowed {
		metrics.SignalsRejected.WithLabelValues("cooldown", cd.Reason).Inc()
		return failCooldown(c, "cooldown active: "+cd.Reason, cd.RetryAfterS)
	}

	// §4.5 position gate (sell only).
	if req.Action == "sell" {
		pos, err := s.deps.DB.GetPosition(req.Ticker)
		if err != nil {
			return failInternal(c, err)
		}
		if pos == nil {
			metrics.SignalsRejected.WithLabelValues("position", "no_position_to_sell").Inc()
			return failPolicy(c, "cannot sell "+req.Ticker+": no position held")
		}
		if pos.Quantity < req.Quantity {
			metrics.SignalsRejected.WithLabelValues("position", "insufficient_position").Inc()
			return failPolicy(c, "cannot sell: insufficient position")
		}
	}

	signalID := GenerateSignalID(now, req.Ticker, req.Action)
	checksum := GenerateChecksum(signalID, req.Action, req.Ticker, req.Quantity, req.EntryPrice, req.StopLoss, req.TakeProfit)
	expiresAt := now.Add(s.deps.SignalTTL).Unix()

	sig := &store.Signal{
		SignalID:   signalID,
		Action:     req.Action,
		Ticker:     req.Ticker,
		Quantity:   req.Quantity,
		PriceType:  req.Price,
		EntryPrice: req.EntryPrice,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		ATR:        req.ATR,
		RRRatio:    req.RRRatio,
		RSI:        req.RSI,
		State:      store.StatePending,
		Checksum:   checksum,
		SourceIP:   c.IP(),
		CreatedAt:  now.Unix(),
		ExpiresAt:  expiresAt,
	}

	if err := s.deps.DB.InsertSignal(sig); err != nil {
		if err == store.ErrAlreadyExists {
			// Lost the race to an identical in-flight ingress; fetch and
			// return the winner's signal_id per spec §5's ordering rule.
			existing, gerr := s.deps.DB.GetSignal(signalID)
			if gerr == nil {
				return c.JSON(webhookResponse{Status: "success", SignalID: existing.SignalID, Message: "duplicate, already queued", Timestamp: now.Unix()})
			}
		}
		return failInternal(c, err)
	}

	// §4.4 cooldown set, after persistence succeeds.
	s.deps.Cooldown.Set(req.Action, req.Ticker)

	// §4.12 audit writers: structured log + CSV append.
	log.Info().
		Str("signal_id", signalID).
		Str("action", req.Action).
		Str("ticker", req.Ticker).
		Int("quantity", req.Quantity).
		Float64("entry_price", req.EntryPrice).
		Msg("signal received")

	if s.deps.Audit != nil {
		s.deps.Audit.Log(audit.Row{
			SignalID:   signalID,
			Action:     req.Action,
			Ticker:     req.Ticker,
			Quantity:   audit.FormatInt(req.Quantity),
			Price:      req.Price,
			EntryPrice: audit.FormatFloat(&req.EntryPrice),
			StopLoss:   audit.FormatFloat(req.StopLoss),
			TakeProfit: audit.FormatFloat(req.TakeProfit),
			ATR:        audit.FormatFloat(req.ATR),
			RRRatio:    audit.FormatFloat(req.RRRatio),
			RSI:        audit.FormatFloat(req.RSI),
			Checksum:   checksum,
			State:      store.StatePending,
			SourceIP:   c.IP(),
		})
	}

	metrics.SignalsIngested.WithLabelValues(req.Action).Inc()

	resp := webhookResponse{Status: "success", SignalID: signalID, Message: "Signal received and queued", Timestamp: now.Unix()}
	if body, err := json.Marshal(resp); err == nil {
		s.deps.Ephemeral.Set(dedupKey, string(body), 300*time.Second)
	}

	return c.JSON(resp)
}

// handleWebhookTest is the dry-run ingress of spec §4.1: shape + passphrase
// checks only, no persistence.
func (s *Server) handleWebhookTest(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return failValidation(c, "malformed JSON body")
	}

	if req.Passphrase != s.deps.Security.Passphrase {
		log.Warn().Str("remote_addr", c.IP()).Msg("test webhook: invalid passphrase")
		return failUnauthorized(c, "invalid passphrase")
	}

	log.Info().Str("action", req.Action).Str("ticker", req.Ticker).Msg("test webhook received")

	return c.JSON(webhookResponse{
		Status:    "test_success",
		SignalID:  "test_signal_id",
		Message:   "Test webhook received successfully (dry run)",
		Timestamp: time.Now().Unix(),
	})
}

func validateWebhookShape(req webhookRequest) string {
	if req.Action != "buy" && req.Action != "sell" {
		return "action must be buy or sell"
	}
	if !tickerPattern.MatchString(req.Ticker) {
		return "ticker must be a 4-digit code"
	}
	if req.Quantity <= 0 {
		return "quantity must be positive"
	}
	if req.EntryPrice <= 0 {
		return "entry_price must be positive"
	}
	if req.Timestamp == "" {
		return "timestamp is required"
	}
	return ""
}
