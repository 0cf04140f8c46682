package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func waitConnections(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.GetActiveConnections() == n }, time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return Message{}
	}
}

func TestSendToUser(t *testing.T) {
	hub := startHub(t)
	alice := NewClient(hub, nil, "alice", nil)
	alice2 := NewClient(hub, nil, "alice", nil)
	bob := NewClient(hub, nil, "bob", nil)
	for _, c := range []*Client{alice, alice2, bob} {
		hub.Register(c)
	}
	waitConnections(t, hub, 3)

	hub.SendToUser("alice", Message{Type: "request.accepted", Data: map[string]string{"ride_id": "r1"}})

	assert.Equal(t, "request.accepted", receive(t, alice).Type)
	assert.Equal(t, "request.accepted", receive(t, alice2).Type)
	assert.Empty(t, bob.Send)
}

func TestBroadcastToRide(t *testing.T) {
	hub := startHub(t)
	watcher := NewClient(hub, nil, "w", nil)
	other := NewClient(hub, nil, "o", nil)
	hub.Register(watcher)
	hub.Register(other)
	waitConnections(t, hub, 2)

	rideID := uuid.NewString()
	watcher.handleMessage([]byte(`{"type":"subscribe","ride_id":"` + rideID + `"}`))
	ack := receive(t, watcher)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, rideID, ack.Data)

	hub.BroadcastToRide(rideID, Message{Type: "ride.updated"})
	assert.Equal(t, "ride.updated", receive(t, watcher).Type)
	assert.Empty(t, other.Send)

	watcher.handleMessage([]byte(`{"type":"unsubscribe","ride_id":"` + rideID + `"}`))
	hub.BroadcastToRide(rideID, Message{Type: "ride.updated"})
	assert.Empty(t, watcher.Send)
}

func TestSubscribeRejectsBadRideID(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, "w", nil)
	hub.Register(c)
	waitConnections(t, hub, 1)

	c.handleMessage([]byte(`{"type":"subscribe","ride_id":"r1"}`))
	assert.Equal(t, "error", receive(t, c).Type)
	assert.False(t, c.IsSubscribedToRide("r1"))
}

func TestFullBufferDoesNotBlock(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, "slow", nil)
	hub.Register(c)
	waitConnections(t, hub, 1)

	for i := 0; i < sendBuffer+10; i++ {
		hub.SendToUser("slow", Message{Type: "tick"})
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, "u", nil)
	hub.Register(c)
	waitConnections(t, hub, 1)

	hub.Unregister(c)
	waitConnections(t, hub, 0)
	_, open := <-c.Send
	assert.False(t, open)

	// no panic after the channel is closed
	c.SendMessage(Message{Type: "pong"})
}

func TestStoppedHubDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	live := NewClient(hub, nil, "live", nil)
	hub.Register(live)
	waitConnections(t, hub, 1)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, open := <-live.Send
	assert.False(t, open)

	late := NewClient(hub, nil, "late", nil)
	returned := make(chan struct{})
	go func() {
		hub.Register(late)
		hub.Unregister(late)
		hub.Unregister(live)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("register after stop blocked")
	}

	_, open = <-late.Send
	assert.False(t, open)
	assert.Equal(t, 0, hub.GetActiveConnections())
}

func TestPingOverConnection(t *testing.T) {
	hub := startHub(t)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("user_id"), nil)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user_id=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	waitConnections(t, hub, 1)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)

	hub.SendToUser("alice", Message{Type: "ride.cancelled"})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "ride.cancelled", msg.Type)
}
