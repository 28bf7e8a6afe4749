package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kabuto-relay/internal/adminstream"
	"kabuto-relay/internal/api"
	"kabuto-relay/internal/audit"
	"kabuto-relay/internal/blacklist"
	"kabuto-relay/internal/config"
	"kabuto-relay/internal/cooldown"
	"kabuto-relay/internal/ephemeral"
	"kabuto-relay/internal/health"
	"kabuto-relay/internal/markethours"
	"kabuto-relay/internal/notify"
	"kabuto-relay/internal/reconcile"
	"kabuto-relay/internal/risk"
	"kabuto-relay/internal/store"
	"kabuto-relay/internal/validate"
)

func main() {
	setupLogger()
	log.Info().Msg("relay starting...")

	cfgPath := os.Getenv("RELAY_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.NewManager(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize relay")
	}
	defer cleanup()

	server := api.NewServer(cfg.Get().Server.Host, cfg.Get().Server.Port, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	staleAfter := time.Duration(cfg.Get().Heartbeat.StaleAfterSeconds) * time.Second
	checker := health.NewChecker(deps.DB, deps.Notify, deps.Stream, staleAfter, 30*time.Second)
	checker.Start(ctx)

	go runExpirySweep(ctx, deps.DB)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("relay server stopped")
		}
	}()

	log.Info().
		Str("host", cfg.Get().Server.Host).
		Int("port", cfg.Get().Server.Port).
		Msg("relay server started")

	if deps.Notify != nil {
		deps.Notify.SystemStarted(context.Background())
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")
	cancel()
	if err := server.Shutdown(); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
	log.Info().Msg("goodbye")
}

// runExpirySweep periodically transitions stale PENDING signals to EXPIRED,
// per spec §4.7's signal lifecycle.
func runExpirySweep(ctx context.Context, db *store.DB) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.ExpireStalePending(time.Now().Unix())
			if err != nil {
				log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("count", n).Msg("expired stale pending signals")
			}
		}
	}
}

// buildDeps wires every domain collaborator from the loaded config into an
// api.Deps, grounded on the teacher's cmd/bot/main.go's initComponents
// shape (one function building every collaborator, returned as a tuple the
// caller assembles) generalized to the relay's much larger dependency set
// (a struct instead of seven positional returns).
func buildDeps(cfg *config.Manager) (api.Deps, func(), error) {
	c := cfg.Get()

	db, err := store.NewDB(c.Store.SQLitePath)
	if err != nil {
		return api.Deps{}, nil, err
	}

	eph := ephemeral.New(time.Duration(c.Ephemeral.SweepIntervalSeconds) * time.Second)

	clock, err := markethours.NewClock(
		c.MarketHours.Timezone,
		c.MarketHours.MorningSafeStart, c.MarketHours.MorningSafeEnd,
		c.MarketHours.AfternoonSafeStart, c.MarketHours.AfternoonSafeEnd,
		offHoursAction(c.MarketHours.OffHoursAction),
		c.MarketHours.Holidays,
	)
	if err != nil {
		db.Close()
		return api.Deps{}, nil, err
	}

	cd := cooldown.New(eph, cooldown.Config{
		BuySameTicker:  time.Duration(c.Cooldown.BuySameTickerSeconds) * time.Second,
		BuyAnyTicker:   time.Duration(c.Cooldown.BuyAnyTickerSeconds) * time.Second,
		SellSameTicker: time.Duration(c.Cooldown.SellSameTickerSeconds) * time.Second,
		SellAnyTicker:  time.Duration(c.Cooldown.SellAnyTickerSeconds) * time.Second,
	})

	ks := risk.NewKillSwitch(db)
	riskCtl := risk.NewController(db, ks, risk.Config{
		MaxOpenPositions:       c.Risk.MaxOpenPositions,
		MaxTotalExposure:       c.Risk.MaxTotalExposure,
		MaxPositionPerTicker:   c.Risk.MaxPositionPerTicker,
		MaxSectorExposurePct:   c.Risk.MaxSectorExposurePct,
		MaxDailyEntries:        c.Risk.MaxDailyEntries,
		MaxDailyTrades:         c.Risk.MaxDailyTrades,
		MaxDailyLoss:           c.Risk.MaxDailyLoss,
		MaxConsecutiveLosses:   c.Risk.MaxConsecutiveLosses,
		EstimatedPricePerShare: c.Risk.EstimatedPricePerShare,
	})

	bl := blacklist.New(db, c.Risk.DynamicBlacklistStreak, time.Duration(c.Risk.DynamicBlacklistTTLDays)*24*time.Hour)
	validator := validate.New(db, ks, clock, bl, riskCtl, validate.Config{
		MinQuantity: c.Signal.MinQuantity,
		MaxQuantity: c.Signal.MaxQuantity,
	})
	rec := reconcile.New(db)

	auditWriter, err := audit.NewWriter(c.Audit.CSVPath)
	if err != nil {
		db.Close()
		return api.Deps{}, nil, err
	}

	webhookURLs := map[notify.Level]string{}
	if c.Notify.SlackWebhookInfo != "" {
		webhookURLs[notify.LevelInfo] = c.Notify.SlackWebhookInfo
	}
	if c.Notify.SlackWebhookWarning != "" {
		webhookURLs[notify.LevelWarning] = c.Notify.SlackWebhookWarning
	}
	if c.Notify.SlackWebhookError != "" {
		webhookURLs[notify.LevelError] = c.Notify.SlackWebhookError
	}
	if c.Notify.SlackWebhookCritical != "" {
		webhookURLs[notify.LevelCritical] = c.Notify.SlackWebhookCritical
	}
	notifyThrottle := ephemeral.New(time.Minute)
	notifier := notify.New(webhookURLs, notifyThrottle, time.Duration(c.Notify.ThrottleMinutes)*time.Minute)

	stream := adminstream.NewHub()

	deps := api.Deps{
		DB:         db,
		Ephemeral:  eph,
		Cooldown:   cd,
		Clock:      clock,
		KillSwitch: ks,
		Risk:       riskCtl,
		Blacklist:  bl,
		Validator:  validator,
		Reconciler: rec,
		Audit:      auditWriter,
		Notify:     notifier,
		Stream:     stream,
		Security: api.Security{
			Passphrase:    cfg.GetPassphrase(),
			APIKey:        cfg.GetAPIKey(),
			AdminPassword: cfg.GetAdminPassword(),
		},
		SignalTTL:           time.Duration(c.Signal.TTLSeconds) * time.Second,
		HeartbeatStaleAfter: time.Duration(c.Heartbeat.StaleAfterSeconds) * time.Second,
	}

	cleanup := func() {
		db.Close()
	}
	return deps, cleanup, nil
}

func offHoursAction(cfgValue string) string {
	if cfgValue == "queue" {
		return "QUEUE"
	}
	return "REJECT"
}

func setupLogger() {
	log.Logger = zerolog.New(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"},
	).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
