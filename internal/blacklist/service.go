// Package blacklist bans tickers from trading permanently, for a fixed
// term, or dynamically after a losing streak, per spec §4.11. Grounded on
// _examples/original_source/relay_server/app/services/blacklist.py.
package blacklist

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"kabuto-relay/internal/store"
)

// Service checks and manages ticker bans.
type Service struct {
	db                *store.DB
	dynamicTTL        time.Duration
	dynamicStreak     int
}

// New builds a Service. dynamicStreak is the consecutive-loss count that
// triggers an automatic dynamic ban; dynamicTTL is how long that ban lasts
// (default 30 days, per the source).
func New(db *store.DB, dynamicStreak int, dynamicTTL time.Duration) *Service {
	return &Service{db: db, dynamicStreak: dynamicStreak, dynamicTTL: dynamicTTL}
}

// IsBlacklisted reports whether ticker is currently banned, sweeping expired
// entries first exactly as the source's is_blacklisted does.
func (s *Service) IsBlacklisted(ticker string) (bool, error) {
	if err := s.db.SweepExpiredBlacklist(time.Now().Unix()); err != nil {
		return false, err
	}
	entry, err := s.db.GetBlacklistEntry(ticker)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	log.Warn().Str("ticker", ticker).Str("reason", entry.Reason).Msg("ticker is blacklisted")
	return true, nil
}

// Add bans ticker. expiryDays of 0 means permanent. A pre-existing ban for
// the same ticker is left untouched, matching the source's idempotent add.
func (s *Service) Add(ticker, reason, banType string, expiryDays int, addedBy string) (*store.BlacklistEntry, error) {
	existing, err := s.db.GetBlacklistEntry(ticker)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Warn().Str("ticker", ticker).Msg("ticker already blacklisted")
		return existing, nil
	}

	now := time.Now()
	var expiresAt *int64
	if expiryDays > 0 {
		e := now.Add(time.Duration(expiryDays) * 24 * time.Hour).Unix()
		expiresAt = &e
	}

	entry := &store.BlacklistEntry{
		Ticker:    ticker,
		Reason:    reason,
		Type:      banType,
		AddedAt:   now.Unix(),
		ExpiresAt: expiresAt,
		AddedBy:   addedBy,
	}
	if err := s.db.UpsertBlacklistEntry(entry); err != nil {
		return nil, err
	}
	log.Info().Str("ticker", ticker).Str("type", banType).Msg("added to blacklist")
	return entry, nil
}

// Remove lifts a ban. Returns false if ticker was not banned.
func (s *Service) Remove(ticker string) (bool, error) {
	existing, err := s.db.GetBlacklistEntry(ticker)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if err := s.db.RemoveBlacklistEntry(ticker); err != nil {
		return false, err
	}
	log.Info().Str("ticker", ticker).Msg("removed from blacklist")
	return true, nil
}

// All lists every active ban, sweeping expired entries first.
func (s *Service) All() ([]*store.BlacklistEntry, error) {
	if err := s.db.SweepExpiredBlacklist(time.Now().Unix()); err != nil {
		return nil, err
	}
	return s.db.AllBlacklistEntries()
}

// AddAutoForLosses dynamically bans ticker after consecutiveLosses losses in
// a row, per spec §4.11's streak-triggered dynamic blacklist.
func (s *Service) AddAutoForLosses(ticker string, consecutiveLosses int) (*store.BlacklistEntry, error) {
	reason := fmt.Sprintf("auto-blacklisted after %d consecutive losses", consecutiveLosses)
	days := int(s.dynamicTTL / (24 * time.Hour))
	return s.Add(ticker, reason, store.BanDynamic, days, "auto")
}

// ShouldAutoBan reports whether consecutiveLosses for ticker has reached the
// configured dynamic-blacklist streak threshold.
func (s *Service) ShouldAutoBan(consecutiveLosses int) bool {
	return s.dynamicStreak > 0 && consecutiveLosses >= s.dynamicStreak
}
