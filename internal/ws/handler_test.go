package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campus-incidents/apiserver/types"
)

type recordingRegistry struct {
	mu       sync.Mutex
	records  map[string]types.Connection
	deleted  chan string
	upserted chan types.Connection
}

func newRecordingRegistry() *recordingRegistry {
	return &recordingRegistry{
		records:  make(map[string]types.Connection),
		deleted:  make(chan string, 4),
		upserted: make(chan types.Connection, 4),
	}
}

func (r *recordingRegistry) Upsert(ctx context.Context, conn types.Connection) error {
	r.mu.Lock()
	r.records[conn.Handle] = conn
	r.mu.Unlock()
	r.upserted <- conn
	return nil
}

func (r *recordingRegistry) Delete(ctx context.Context, handle string) error {
	r.mu.Lock()
	delete(r.records, handle)
	r.mu.Unlock()
	r.deleted <- handle
	return nil
}

func TestConnectRegistersWithDeclaredProfile(t *testing.T) {
	hub := NewHub()
	registry := newRecordingRegistry()
	handler := NewHandler(hub, registry)

	srv := httptest.NewServer(http.HandlerFunc(handler.Connect))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?role=AdministrativeStaff&user_id=U1"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	select {
	case record := <-registry.upserted:
		if record.Role != types.RoleAdministrativeStaff || record.UserID != "U1" {
			t.Fatalf("unexpected registration: %+v", record)
		}
		if record.Handle == "" {
			t.Fatalf("connection handle must be assigned")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
}

func TestConnectDefaultsRoleToStudent(t *testing.T) {
	hub := NewHub()
	registry := newRecordingRegistry()
	handler := NewHandler(hub, registry)

	srv := httptest.NewServer(http.HandlerFunc(handler.Connect))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	select {
	case record := <-registry.upserted:
		if record.Role != types.RoleStudent {
			t.Fatalf("expected default role Student, got %q", record.Role)
		}
		if record.UserID != "" {
			t.Fatalf("expected empty user id, got %q", record.UserID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
}

func TestCloseUnregistersConnection(t *testing.T) {
	hub := NewHub()
	registry := newRecordingRegistry()
	handler := NewHandler(hub, registry)

	srv := httptest.NewServer(http.HandlerFunc(handler.Connect))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var handle string
	select {
	case record := <-registry.upserted:
		handle = record.Handle
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}

	_ = client.Close()

	select {
	case deleted := <-registry.deleted:
		if deleted != handle {
			t.Fatalf("deleted %q, expected %q", deleted, handle)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not unregistered after close")
	}
	if hub.Len() != 0 {
		t.Fatalf("hub must forget closed connections, has %d", hub.Len())
	}
}
