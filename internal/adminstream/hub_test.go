package adminstream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesConnectedClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(Event{Kind: "kill_switch_toggled", Timestamp: time.Now(), Payload: map[string]bool{"enabled": false}})

	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, "kill_switch_toggled", ev.Kind)
}

func TestBroadcastWithNoClientsIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(Event{Kind: "heartbeat"})
	require.Equal(t, 0, hub.ClientCount())
}

func TestDisconnectUnregistersClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
