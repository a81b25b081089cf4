package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/rafflewave/lottosync/internal/events"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingHandler) HandleEvent(_ context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingHandler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingHandler) first() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[0]
}

func TestNewStreamValidation(t *testing.T) {
	_, err := NewStream(Config{}, &recordingHandler{}, nil)
	require.Error(t, err)

	_, err = NewStream(Config{URL: "ws://example.com/ws"}, nil, nil)
	require.Error(t, err)
}

func TestStreamSubscribesAndDeliversEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var (
		mu        sync.Mutex
		subscribe controlMessage
		authed    string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		authed = r.Header.Get("Authorization")
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var control controlMessage
		require.NoError(t, conn.ReadJSON(&control))
		mu.Lock()
		subscribe = control
		mu.Unlock()

		require.NoError(t, conn.WriteJSON(Message{
			Stream: "lottery",
			Event:  "inventory_update",
			Data:   []byte(`{"house_id":"h1","sold_tickets":99}`),
		}))

		// Undecodable events are skipped, not fatal.
		require.NoError(t, conn.WriteJSON(Message{Stream: "lottery", Event: "bogus_event"}))

		require.NoError(t, conn.WriteJSON(Message{
			Stream: "lottery",
			Event:  "draw_completed",
			Data:   []byte(`{"house_id":"h1"}`),
		}))

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	handler := &recordingHandler{}
	stream, err := NewStream(Config{
		URL:     "ws" + strings.TrimPrefix(server.URL, "http"),
		Streams: []string{"lottery", "favorites"},
		Header: func(context.Context) (map[string]string, error) {
			return map[string]string{"Authorization": "Bearer token"}, nil
		},
	}, handler, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		stream.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return handler.count() == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "Bearer token", authed)
	require.Equal(t, "subscribe", subscribe.Action)
	require.Equal(t, []string{"lottery", "favorites"}, subscribe.Streams)

	first := handler.first()
	require.Equal(t, events.TypeInventoryUpdate, first.Kind)
	require.Equal(t, 99, first.InventoryUpdate.SoldTickets)
}

func TestStreamReconnectsAfterDisconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connCount int32
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		mu.Lock()
		connCount++
		n := connCount
		mu.Unlock()

		// First connection drops immediately after one event; the second
		// stays open.
		var control controlMessage
		_ = conn.ReadJSON(&control)
		_ = conn.WriteJSON(Message{Event: "draw_started", Data: []byte(`{"house_id":"h1"}`)})
		if n == 1 {
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}))
	defer server.Close()

	handler := &recordingHandler{}
	stream, err := NewStream(Config{
		URL:     "ws" + strings.TrimPrefix(server.URL, "http"),
		Streams: []string{"lottery"},
	}, handler, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx)

	// Both the initial connection and the reconnect deliver their event.
	require.Eventually(t, func() bool {
		return handler.count() >= 2
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, connCount, int32(2))
}
