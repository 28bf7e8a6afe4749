package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kabuto-relay/internal/store"
)

func insertTestSignal(t *testing.T, s *Server, signalID, action, ticker string) *store.Signal {
	t.Helper()
	now := time.Now().Unix()
	checksum := GenerateChecksum(signalID, action, ticker, 100, 1850.0, nil, nil)
	sig := &store.Signal{
		SignalID:   signalID,
		Action:     action,
		Ticker:     ticker,
		Quantity:   100,
		PriceType:  "market",
		EntryPrice: 1850.0,
		State:      store.StatePending,
		Checksum:   checksum,
		CreatedAt:  now,
		ExpiresAt:  now + 900,
	}
	require.NoError(t, s.deps.DB.InsertSignal(sig))
	return sig
}

// doAuthedJSON performs an authenticated JSON request against the dispatch
// API, mirroring doJSON (webhook_test.go) but with the bearer key attached.
func doAuthedJSON(t *testing.T, s *Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-key")
	resp, err := s.App().Test(req, 2000)
	require.NoError(t, err)
	return resp
}

func TestDispatch_RequiresAPIKey(t *testing.T) {
	s := newTestServer(t)
	resp := doJSON(t, s, http.MethodGet, "/api/signals/pending", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDispatch_PendingAndGet(t *testing.T) {
	s := newTestServer(t)
	sig := insertTestSignal(t, s, "sig_20260731_090000_7203_buy", "buy", "7203")

	resp := doAuthedJSON(t, s, http.MethodGet, "/api/signals/pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out pendingListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 1, out.Count)
	require.Equal(t, sig.SignalID, out.Signals[0].SignalID)

	getResp := doAuthedJSON(t, s, http.MethodGet, "/api/signals/"+sig.SignalID, nil)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestDispatch_PendingEmptyIs204(t *testing.T) {
	s := newTestServer(t)
	resp := doAuthedJSON(t, s, http.MethodGet, "/api/signals/pending", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestDispatch_GetUnknownSignalIs404(t *testing.T) {
	s := newTestServer(t)
	resp := doAuthedJSON(t, s, http.MethodGet, "/api/signals/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDispatch_AckChecksumMismatch(t *testing.T) {
	s := newTestServer(t)
	sig := insertTestSignal(t, s, "sig_20260731_090001_7203_buy", "buy", "7203")

	resp := doAuthedJSON(t, s, http.MethodPost, "/api/signals/"+sig.SignalID+"/ack", ackRequest{
		ClientID: "client-1",
		Checksum: "wrong-checksum",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDispatch_AckIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	sig := insertTestSignal(t, s, "sig_20260731_090002_7203_buy", "buy", "7203")

	for i := 0; i < 2; i++ {
		resp := doAuthedJSON(t, s, http.MethodPost, "/api/signals/"+sig.SignalID+"/ack", ackRequest{
			ClientID: "client-1",
			Checksum: sig.Checksum,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestDispatch_ExecutedThenDoubleExecuteConflicts(t *testing.T) {
	s := newTestServer(t)
	sig := insertTestSignal(t, s, "sig_20260731_090003_7203_buy", "buy", "7203")

	execBody := executedRequest{
		ClientID:       "client-1",
		ExecutionPrice: 1855.0,
		ExecutionQty:   100,
		OrderID:        "ORD-1",
	}

	first := doAuthedJSON(t, s, http.MethodPost, "/api/signals/"+sig.SignalID+"/executed", execBody)
	require.Equal(t, http.StatusOK, first.StatusCode)

	pos, err := s.deps.DB.GetPosition(sig.Ticker)
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.Equal(t, 100, pos.Quantity)

	second := doAuthedJSON(t, s, http.MethodPost, "/api/signals/"+sig.SignalID+"/executed", execBody)
	require.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestDispatch_ExecutedRejectsNonPositiveQuantity(t *testing.T) {
	s := newTestServer(t)
	sig := insertTestSignal(t, s, "sig_20260731_090005_7203_buy", "buy", "7203")

	resp := doAuthedJSON(t, s, http.MethodPost, "/api/signals/"+sig.SignalID+"/executed", executedRequest{
		ClientID:       "client-1",
		ExecutionPrice: 1855.0,
		ExecutionQty:   0,
		OrderID:        "ORD-2",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestDispatch_ConsecutiveSellLossesTripKillSwitchViaExecutedHandler drives
// the real /executed HTTP handler (not risk.Controller directly) through a
// run of sell-only losing fills and asserts the kill-switch trips on its
// own, matching spec §4.10 Testable Scenario 6 — the auto-kill predicate
// must fire from the fill-report path, independent of the pre-dispatch
// validator's buy-only gate.
func TestDispatch_ConsecutiveSellLossesTripKillSwitchViaExecutedHandler(t *testing.T) {
	s := newTestServer(t)
	maxConsecutiveLosses := s.deps.Risk.Config().MaxConsecutiveLosses

	pnl := -100.0
	isWin := false
	// Each fill gets its own executed_at second: the execution id is
	// EXE_<executed_at>_<ticker>, so same-ticker fills need distinct seconds.
	baseExecutedAt := time.Now().Unix()

	for i := 0; i < maxConsecutiveLosses; i++ {
		sig := insertTestSignal(t, s, "sig_loss_streak_sell_"+string(rune('a'+i)), "sell", "7203")
		resp := doAuthedJSON(t, s, http.MethodPost, "/api/signals/"+sig.SignalID+"/executed", executedRequest{
			ClientID:       "client-1",
			ExecutionPrice: 1800.0,
			ExecutionQty:   100,
			OrderID:        "ORD-LOSS-" + string(rune('a'+i)),
			ExecutedAt:     baseExecutedAt + int64(i),
			RealizedPnL:    &pnl,
			IsWin:          &isWin,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	statusResp := doAuthedJSON(t, s, http.MethodGet, "/api/admin/kill-switch/status", nil)
	require.Equal(t, http.StatusOK, statusResp.StatusCode)
	var ksStatus killSwitchResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&ksStatus))
	require.False(t, ksStatus.TradingEnabled)
}

func TestDispatch_Failed(t *testing.T) {
	s := newTestServer(t)
	sig := insertTestSignal(t, s, "sig_20260731_090004_7203_buy", "buy", "7203")

	resp := doAuthedJSON(t, s, http.MethodPost, "/api/signals/"+sig.SignalID+"/failed", failedRequest{
		ClientID: "client-1",
		Error:    "broker rejected order",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated, err := s.deps.DB.GetSignal(sig.SignalID)
	require.NoError(t, err)
	require.Equal(t, store.StateFailed, updated.State)
}
