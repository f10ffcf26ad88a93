package notify

import (
	"context"
	"testing"

	"github.com/campus-incidents/apiserver/internal/ws"
	"github.com/campus-incidents/apiserver/types"
)

type fakeRegistry struct {
	conns   map[string]types.Connection
	deleted []string
}

func newFakeRegistry(conns ...types.Connection) *fakeRegistry {
	reg := &fakeRegistry{conns: make(map[string]types.Connection)}
	for _, conn := range conns {
		reg.conns[conn.Handle] = conn
	}
	return reg
}

func (r *fakeRegistry) FindByRole(ctx context.Context, role string) ([]types.Connection, error) {
	var out []types.Connection
	for _, conn := range r.conns {
		if conn.Role == role {
			out = append(out, conn)
		}
	}
	return out, nil
}

func (r *fakeRegistry) FindByUser(ctx context.Context, userID string) ([]types.Connection, error) {
	var out []types.Connection
	for _, conn := range r.conns {
		if conn.UserID == userID {
			out = append(out, conn)
		}
	}
	return out, nil
}

func (r *fakeRegistry) Delete(ctx context.Context, handle string) error {
	delete(r.conns, handle)
	r.deleted = append(r.deleted, handle)
	return nil
}

type fakeChannel struct {
	sent    map[string][][]byte
	failing map[string]bool
}

func newFakeChannel(failing ...string) *fakeChannel {
	ch := &fakeChannel{
		sent:    make(map[string][][]byte),
		failing: make(map[string]bool),
	}
	for _, handle := range failing {
		ch.failing[handle] = true
	}
	return ch
}

func (c *fakeChannel) Send(handle string, payload []byte) error {
	if c.failing[handle] {
		return ws.ErrDelivery
	}
	c.sent[handle] = append(c.sent[handle], payload)
	return nil
}

func TestNotifyRoleTargetsOnlyMatchingRole(t *testing.T) {
	registry := newFakeRegistry(
		types.Connection{Handle: "c1", Role: types.RoleAdministrativeStaff},
		types.Connection{Handle: "c2", Role: types.RoleAdministrativeStaff},
		types.Connection{Handle: "c3", Role: types.RoleStudent, UserID: "u1"},
	)
	channel := newFakeChannel()
	notifier := New(registry, channel)

	notifier.NotifyRole(context.Background(), map[string]string{"hello": "admins"}, types.RoleAdministrativeStaff)

	if len(channel.sent["c1"]) != 1 || len(channel.sent["c2"]) != 1 {
		t.Fatalf("expected one delivery to each admin connection, got %v", channel.sent)
	}
	if len(channel.sent["c3"]) != 0 {
		t.Fatalf("student connection must not receive role broadcast")
	}
}

func TestNotifyRoleEvictsFailedHandleAndContinues(t *testing.T) {
	registry := newFakeRegistry(
		types.Connection{Handle: "dead", Role: types.RoleAdministrativeStaff},
		types.Connection{Handle: "alive", Role: types.RoleAdministrativeStaff},
	)
	channel := newFakeChannel("dead")
	notifier := New(registry, channel)

	notifier.NotifyRole(context.Background(), map[string]string{"k": "v"}, types.RoleAdministrativeStaff)

	if _, ok := registry.conns["dead"]; ok {
		t.Fatalf("failed handle must be evicted from the registry")
	}
	if _, ok := registry.conns["alive"]; !ok {
		t.Fatalf("surviving handle must stay registered")
	}
	if len(channel.sent["alive"]) != 1 {
		t.Fatalf("delivery failure on one handle must not abort the fan-out")
	}
}

func TestNotifyUserDeliversToAllUserConnections(t *testing.T) {
	registry := newFakeRegistry(
		types.Connection{Handle: "c1", Role: types.RoleStudent, UserID: "u1"},
		types.Connection{Handle: "c2", Role: types.RoleStudent, UserID: "u1"},
		types.Connection{Handle: "c3", Role: types.RoleStudent, UserID: "u2"},
	)
	channel := newFakeChannel("c2")
	notifier := New(registry, channel)

	notifier.NotifyUser(context.Background(), map[string]string{"k": "v"}, "u1")

	if len(channel.sent["c1"]) != 1 {
		t.Fatalf("expected delivery to the surviving u1 connection")
	}
	if len(channel.sent["c3"]) != 0 {
		t.Fatalf("other users must not receive the message")
	}
	if _, ok := registry.conns["c2"]; ok {
		t.Fatalf("failed u1 connection must be evicted")
	}
	if _, ok := registry.conns["c1"]; !ok {
		t.Fatalf("registry must contain exactly the surviving connection for u1")
	}
}

func TestNotifyNoConnectionsIsANoOp(t *testing.T) {
	registry := newFakeRegistry()
	channel := newFakeChannel()
	notifier := New(registry, channel)

	notifier.NotifyRole(context.Background(), map[string]string{"k": "v"}, types.RoleAuthority)
	notifier.NotifyUser(context.Background(), map[string]string{"k": "v"}, "missing")

	if len(channel.sent) != 0 {
		t.Fatalf("no deliveries expected, got %v", channel.sent)
	}
}
