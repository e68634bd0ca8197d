package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinysense/sensord/pkg/reading"
)

func startHub(t *testing.T) (*ReadingsHub, string) {
	t.Helper()

	hub := NewReadingsHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHub_BroadcastsAcceptedReadings(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, hub.HasClients, time.Second, 10*time.Millisecond)

	r := reading.New(1_700_000_400, 21.5, 48.0)
	hub.BroadcastReading(r)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var payload struct {
		Type    string `json:"type"`
		Reading struct {
			Timestamp   int64   `json:"ts"`
			Temperature float64 `json:"t"`
			Humidity    float64 `json:"h"`
		} `json:"reading"`
	}
	require.NoError(t, json.Unmarshal(msg, &payload))
	assert.Equal(t, "reading", payload.Type)
	assert.Equal(t, r.Timestamp, payload.Reading.Timestamp)
	assert.InDelta(t, r.Temperature, payload.Reading.Temperature, 1e-9)
	assert.InDelta(t, r.Humidity, payload.Reading.Humidity, 1e-9)
}

func TestHub_NoClientsIsNoOp(t *testing.T) {
	hub, _ := startHub(t)

	// Nothing connected: broadcast must not block or queue.
	assert.False(t, hub.HasClients())
	hub.BroadcastReading(reading.New(100, 21.0, 50.0))

	select {
	case msg := <-hub.broadcast:
		t.Fatalf("unexpected queued broadcast: %s", msg)
	default:
	}
}

func TestHub_ClientDisconnectIsDetected(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, hub.HasClients, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return !hub.HasClients() },
		time.Second, 10*time.Millisecond)
}
