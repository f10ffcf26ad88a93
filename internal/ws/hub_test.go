package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, hub *Hub, handle string) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Add(handle, conn)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server := <-serverConns:
		return client, server
	case <-time.After(2 * time.Second):
		t.Fatal("server connection not established")
		return nil, nil
	}
}

func TestHubSendDeliversPayload(t *testing.T) {
	hub := NewHub()
	client, _ := dialTestHub(t, hub, "h1")

	payload, _ := json.Marshal(map[string]string{"type": "status_changed"})
	if err := hub.Send("h1", payload); err != nil {
		t.Fatalf("send: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, received, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(received) != string(payload) {
		t.Fatalf("payload mismatch: %s", received)
	}
}

func TestHubSendUnknownHandleIsDeliveryError(t *testing.T) {
	hub := NewHub()
	if err := hub.Send("ghost", []byte("{}")); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery for unknown handle, got %v", err)
	}
}

func TestHubSendAfterTransportCloseIsDeliveryError(t *testing.T) {
	hub := NewHub()
	_, server := dialTestHub(t, hub, "h1")

	// Simulate an unclean disconnect: the transport is gone but the handle
	// is still tracked.
	_ = server.Close()

	if err := hub.Send("h1", []byte("{}")); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery after transport close, got %v", err)
	}
}

func TestHubRemoveIsIdempotent(t *testing.T) {
	hub := NewHub()
	hub.Remove("never-added")
	if hub.Len() != 0 {
		t.Fatalf("unexpected hub size %d", hub.Len())
	}
}
