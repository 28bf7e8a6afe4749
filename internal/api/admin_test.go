package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealth_ReportsHealthy(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "healthy", out.Status)
	require.Equal(t, "OK", out.Store)
	require.Equal(t, "OK", out.Ephemeral)
}

func TestStatus_ReportsTradingEnabledByDefault(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(t, out.TradingEnabled)
	require.Equal(t, "active", out.Status)
}

func TestKillSwitch_ToggleRequiresAdminPassword(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodPost, "/api/admin/kill-switch", killSwitchRequest{
		Enabled:  false,
		Password: "wrong",
		Reason:   "testing",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestKillSwitch_ActivateThenDeactivate(t *testing.T) {
	s := newTestServer(t)

	off := doJSON(t, s, http.MethodPost, "/api/admin/kill-switch", killSwitchRequest{
		Enabled:  false,
		Password: "test-admin",
		Reason:   "manual test halt",
	})
	require.Equal(t, http.StatusOK, off.StatusCode)

	statusResp := doJSON(t, s, http.MethodGet, "/api/admin/kill-switch/status", nil)
	var status killSwitchResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	require.False(t, status.TradingEnabled)

	on := doJSON(t, s, http.MethodPost, "/api/admin/kill-switch", killSwitchRequest{
		Enabled:  true,
		Password: "test-admin",
	})
	require.Equal(t, http.StatusOK, on.StatusCode)

	statusResp2 := doJSON(t, s, http.MethodGet, "/api/admin/kill-switch/status", nil)
	var status2 killSwitchResponse
	require.NoError(t, json.NewDecoder(statusResp2.Body).Decode(&status2))
	require.True(t, status2.TradingEnabled)
}

func TestHeartbeat_RecordAndList(t *testing.T) {
	s := newTestServer(t)

	resp := doJSON(t, s, http.MethodPost, "/heartbeat", heartbeatRequest{ClientID: "executor-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listResp := doJSON(t, s, http.MethodGet, "/api/admin/heartbeats", nil)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var out heartbeatListResponse
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&out))
	require.Equal(t, 1, out.Count)
	require.Equal(t, "executor-1", out.Heartbeats[0].ClientID)
	require.Equal(t, "active", out.Heartbeats[0].Status)
}

func TestCooldown_ListAndReset(t *testing.T) {
	s := newTestServer(t)
	s.deps.Cooldown.Set("buy", "7203")

	listResp := doJSON(t, s, http.MethodGet, "/api/admin/cooldowns", nil)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var out cooldownListResponse
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&out))
	require.GreaterOrEqual(t, out.Count, 0)

	req, err := http.NewRequest(http.MethodDelete, "/api/admin/cooldowns?ticker=7203&action=buy", nil)
	require.NoError(t, err)
	resetResp, err := s.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resetResp.StatusCode)
}
