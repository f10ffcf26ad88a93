package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrDelivery reports that a payload could not be delivered to a handle:
// either the handle is stale (the peer is gone) or the transport rejected
// the write. Application-level problems never surface as ErrDelivery.
var ErrDelivery = errors.New("delivery failed")

const writeTimeout = 10 * time.Second

// Hub tracks the live WebSocket connections of this process, keyed by the
// opaque handle assigned at upgrade time. It is the transport half of the
// push channel; the durable registry lives in the connection store.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*liveConn
}

// liveConn serializes writes: gorilla connections allow one writer at a time.
type liveConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*liveConn)}
}

// Add tracks a newly upgraded connection under its handle.
func (h *Hub) Add(handle string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[handle] = &liveConn{conn: conn}
}

// Remove forgets a handle. Unknown handles are a no-op.
func (h *Hub) Remove(handle string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, handle)
}

// Send delivers an opaque payload to one handle. A handle this hub does
// not know is stale by definition and yields ErrDelivery, as does any
// transport write failure. Writes are bounded by writeTimeout so a hung
// peer cannot stall the fan-out indefinitely.
func (h *Hub) Send(handle string, payload []byte) error {
	h.mu.RLock()
	lc, ok := h.conns[handle]
	h.mu.RUnlock()
	if !ok {
		return ErrDelivery
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	_ = lc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := lc.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return ErrDelivery
	}
	return nil
}

// Close closes the underlying connection for a handle, if present.
func (h *Hub) Close(handle string) {
	h.mu.Lock()
	lc, ok := h.conns[handle]
	delete(h.conns, handle)
	h.mu.Unlock()
	if ok {
		_ = lc.conn.Close()
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
