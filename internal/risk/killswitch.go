// Package risk implements the kill-switch and the final risk-control gate of
// spec §4.10, independent from the strategy logic that produced a signal.
// Grounded on
// _examples/original_source/relay_server/app/services/kill_switch.py and
// risk_control.py.
package risk

import (
	"time"

	"github.com/rs/zerolog/log"

	"kabuto-relay/internal/metrics"
	"kabuto-relay/internal/store"
)

// KillSwitch is the manual/automatic trading halt, backed by store.SystemState.
type KillSwitch struct {
	db *store.DB
}

// NewKillSwitch builds a KillSwitch over db.
func NewKillSwitch(db *store.DB) *KillSwitch {
	return &KillSwitch{db: db}
}

// IsTradingEnabled reports whether trading is currently allowed. Absent
// state defaults to enabled, matching the source's lazy-initialize-to-true
// behavior.
func (k *KillSwitch) IsTradingEnabled() (bool, error) {
	v, ok, err := k.db.GetState(store.StateKeyTradingEnabled)
	if err != nil {
		return false, err
	}
	if !ok {
		if err := k.db.SetState(store.StateKeyTradingEnabled, "true"); err != nil {
			return false, err
		}
		return true, nil
	}
	return v == "true", nil
}

// Status is the tagged-sum-type kill-switch status payload of spec §6.
type Status struct {
	TradingEnabled bool   `json:"trading_enabled"`
	KillSwitchActive bool  `json:"kill_switch_active"`
	Reason         string `json:"reason,omitempty"`
	ActivatedAt    string `json:"activated_at,omitempty"`
	ActivatedBy    string `json:"activated_by,omitempty"`
}

// GetStatus returns the current kill-switch state for the admin surface.
func (k *KillSwitch) GetStatus() (Status, error) {
	enabled, err := k.IsTradingEnabled()
	if err != nil {
		return Status{}, err
	}
	if enabled {
		return Status{TradingEnabled: true, KillSwitchActive: false}, nil
	}

	reason, _, _ := k.db.GetState(store.StateKeyKillSwitchReason)
	activatedAt, _, _ := k.db.GetState(store.StateKeyKillSwitchActedAt)
	activatedBy, _, _ := k.db.GetState(store.StateKeyKillSwitchActedBy)
	return Status{
		TradingEnabled:   false,
		KillSwitchActive: true,
		Reason:           reason,
		ActivatedAt:      activatedAt,
		ActivatedBy:      activatedBy,
	}, nil
}

// Activate disables trading. activatedBy is "manual" (admin surface) or
// "auto_trigger" (risk control breach).
func (k *KillSwitch) Activate(activatedBy, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if err := k.db.SetState(store.StateKeyTradingEnabled, "false"); err != nil {
		return err
	}
	if err := k.db.SetState(store.StateKeyKillSwitchReason, reason); err != nil {
		return err
	}
	if err := k.db.SetState(store.StateKeyKillSwitchActedAt, now); err != nil {
		return err
	}
	if err := k.db.SetState(store.StateKeyKillSwitchActedBy, activatedBy); err != nil {
		return err
	}

	metrics.KillSwitchActivations.WithLabelValues(activatedBy).Inc()
	log.Error().Str("activated_by", activatedBy).Str("reason", reason).
		Msg("KILL SWITCH ACTIVATED")
	return nil
}

// Deactivate re-enables trading.
func (k *KillSwitch) Deactivate(deactivatedBy string) error {
	if err := k.db.SetState(store.StateKeyTradingEnabled, "true"); err != nil {
		return err
	}
	if err := k.db.SetState(store.StateKeyKillSwitchReason, ""); err != nil {
		return err
	}
	log.Warn().Str("deactivated_by", deactivatedBy).Msg("kill switch deactivated")
	return nil
}
