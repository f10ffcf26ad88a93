package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/campus-incidents/apiserver/internal/ws"
	"github.com/campus-incidents/apiserver/types"
)

// Registry defines the connection-registry operations the notifier needs:
// resolving delivery targets and evicting handles that failed delivery.
type Registry interface {
	FindByRole(ctx context.Context, role string) ([]types.Connection, error)
	FindByUser(ctx context.Context, userID string) ([]types.Connection, error)
	Delete(ctx context.Context, handle string) error
}

// PushChannel delivers an opaque payload to one connection handle.
type PushChannel interface {
	Send(handle string, payload []byte) error
}

// Notifier fans a message out to the connections matching a role or a user
// identity. Delivery is best-effort: a failed send evicts the stale handle
// from the registry and the fan-out continues. Notifier methods never
// return an error; a notification must never fail the operation that
// triggered it.
//
// Eviction piggy-backs on the send path because a failed delivery is the
// only reliable signal that a connection went away without a clean close.
// There is no background sweep.
type Notifier struct {
	registry Registry
	channel  PushChannel
}

func New(registry Registry, channel PushChannel) *Notifier {
	return &Notifier{registry: registry, channel: channel}
}

// NotifyRole delivers the message to every connection registered with the
// given role.
func (n *Notifier) NotifyRole(ctx context.Context, message any, role string) {
	conns, err := n.registry.FindByRole(ctx, role)
	if err != nil {
		log.Printf("notify: resolve role %q: %v", role, err)
		return
	}
	n.deliver(ctx, message, conns)
}

// NotifyUser delivers the message to every connection registered with the
// given user identity.
func (n *Notifier) NotifyUser(ctx context.Context, message any, userID string) {
	conns, err := n.registry.FindByUser(ctx, userID)
	if err != nil {
		log.Printf("notify: resolve user %q: %v", userID, err)
		return
	}
	n.deliver(ctx, message, conns)
}

func (n *Notifier) deliver(ctx context.Context, message any, conns []types.Connection) {
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("notify: marshal message: %v", err)
		return
	}

	for _, conn := range conns {
		err := n.channel.Send(conn.Handle, payload)
		if err == nil {
			continue
		}
		if errors.Is(err, ws.ErrDelivery) {
			// Stale handle: delivery failure doubles as the disconnect
			// signal, so drop the registry entry and keep going.
			log.Printf("notify: evicting stale connection %s", conn.Handle)
			if delErr := n.registry.Delete(ctx, conn.Handle); delErr != nil {
				log.Printf("notify: evict %s: %v", conn.Handle, delErr)
			}
			continue
		}
		log.Printf("notify: send to %s: %v", conn.Handle, err)
	}
}
