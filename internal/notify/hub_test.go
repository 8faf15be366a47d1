package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := &client{id: "a", send: make(chan []byte, 1)}
	b := &client{id: "b", send: make(chan []byte, 1)}
	hub.register(a)
	hub.register(b)
	require.Equal(t, 2, hub.ClientCount())

	at := time.Date(2025, 6, 17, 8, 0, 0, 0, time.UTC)
	require.NoError(t, hub.Publish(context.Background(), QueueUpdate(at)))

	for _, c := range []*client{a, b} {
		var ev Event
		require.NoError(t, json.Unmarshal(<-c.send, &ev))
		assert.Equal(t, KindQueueUpdate, ev.Kind)
		assert.True(t, ev.At.Equal(at))
	}
}

func TestHubDropsForFullBuffers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := &client{id: "slow", send: make(chan []byte, 1)}
	hub.register(slow)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(QueueUpdate(time.Now()))
		hub.Broadcast(QueueUpdate(time.Now()))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
	assert.Len(t, slow.send, 1)
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := &client{id: "c", send: make(chan []byte, 1)}
	hub.register(c)

	hub.unregister(c)
	assert.NotPanics(t, func() { hub.unregister(c) })
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubWebsocketStream(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), QueueUpdate(time.Now())))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, KindQueueUpdate, ev.Kind)

	ws.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
