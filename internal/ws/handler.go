package ws

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/campus-incidents/apiserver/types"
)

// Registry defines the registry operations used by the connection lifecycle.
type Registry interface {
	Upsert(ctx context.Context, conn types.Connection) error
	Delete(ctx context.Context, handle string) error
}

// Handler upgrades HTTP requests to WebSocket connections and keeps the
// connection registry in sync with the connection lifecycle.
type Handler struct {
	hub      *Hub
	registry Registry
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, registry Registry) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API serves browser clients from any origin; the push
			// channel itself carries no credentials beyond the declared
			// identity.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// connectProfile is the subscriber profile declared at connect time,
// with explicit defaults applied.
func connectProfile(r *http.Request) (role, userID string) {
	role = r.URL.Query().Get("role")
	if role == "" {
		role = types.RoleStudent
	}
	userID = r.URL.Query().Get("user_id")
	return role, userID
}

// Connect handles GET /ws: it upgrades the request, assigns an opaque
// handle, registers the connection, and unregisters it when the peer
// closes or the read loop fails.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	role, userID := connectProfile(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	handle := uuid.NewString()
	record := types.Connection{Handle: handle, Role: role, UserID: userID}
	if err := h.registry.Upsert(r.Context(), record); err != nil {
		log.Printf("ws: register %s: %v", handle, err)
		_ = conn.Close()
		return
	}
	h.hub.Add(handle, conn)

	go h.readLoop(handle, conn)
}

// readLoop drains inbound frames until the connection dies. The server
// pushes only; client frames are discarded. A read error is the clean-close
// signal that removes the registry entry.
func (h *Handler) readLoop(handle string, conn *websocket.Conn) {
	defer func() {
		h.hub.Remove(handle)
		if err := h.registry.Delete(context.Background(), handle); err != nil {
			log.Printf("ws: unregister %s: %v", handle, err)
		}
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
