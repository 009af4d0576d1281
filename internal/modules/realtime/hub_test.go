package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"planora/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(h *Hub, userID int64, role domain.UserRole) *Client {
	c := newClient(nil, userID, role)
	h.Register(c)
	h.Join(c, UserRoom(userID))
	if role == domain.RoleAdmin {
		h.Join(c, AdminRoom)
	}
	return c
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected an event on the client queue")
		return Event{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected event on client queue: %s", msg)
	default:
	}
}

func TestPublish_ReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub()
	alice := connect(hub, 1, domain.RoleUser)
	bob := connect(hub, 2, domain.RoleUser)
	admin := connect(hub, 3, domain.RoleAdmin)

	hub.Publish(UserRoom(1), "appointment.updated", map[string]any{"id": 42})

	ev := receive(t, alice)
	assert.Equal(t, "appointment.updated", ev.Event)
	assertSilent(t, bob)
	assertSilent(t, admin)
}

func TestPublish_AdminRoomFansOutToAllAdmins(t *testing.T) {
	hub := NewHub()
	user := connect(hub, 1, domain.RoleUser)
	admin1 := connect(hub, 10, domain.RoleAdmin)
	admin2 := connect(hub, 11, domain.RoleAdmin)

	hub.Publish(AdminRoom, "user.online", map[string]any{"user_id": 1})

	assert.Equal(t, "user.online", receive(t, admin1).Event)
	assert.Equal(t, "user.online", receive(t, admin2).Event)
	assertSilent(t, user)
}

func TestPublish_EmptyRoomIsDropped(t *testing.T) {
	hub := NewHub()
	// nobody connected: at-most-once means the event just vanishes
	hub.Publish(AdminRoom, "user.online", nil)
	hub.Publish(UserRoom(99), "note.created", nil)
}

func TestPublish_SkipsSlowClientWithoutBlocking(t *testing.T) {
	hub := NewHub()
	slow := connect(hub, 1, domain.RoleAdmin)
	fast := connect(hub, 2, domain.RoleAdmin)

	for i := 0; i < cap(slow.send); i++ {
		slow.send <- []byte("backlog")
	}

	done := make(chan struct{})
	go func() {
		hub.Publish(AdminRoom, "user.online", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow client")
	}

	assert.Equal(t, "user.online", receive(t, fast).Event)
	assert.Len(t, slow.send, cap(slow.send), "slow client queue untouched beyond its backlog")
}

func TestUnregister_RemovesClientEverywhere(t *testing.T) {
	hub := NewHub()
	admin := connect(hub, 1, domain.RoleAdmin)
	other := connect(hub, 2, domain.RoleAdmin)

	hub.Unregister(admin)

	assert.Equal(t, 0, hub.ConnectionsForUser(1))
	assert.Equal(t, 1, hub.RoomSize(AdminRoom))

	// queue is closed
	_, open := <-admin.send
	assert.False(t, open)

	// publishing afterwards only reaches the survivor
	hub.Publish(AdminRoom, "user.offline", nil)
	assert.Equal(t, "user.offline", receive(t, other).Event)

	// second unregister is a no-op
	hub.Unregister(admin)
}

func TestMultipleConnectionsPerUserShareTheRoom(t *testing.T) {
	hub := NewHub()
	tab1 := connect(hub, 7, domain.RoleUser)
	tab2 := connect(hub, 7, domain.RoleUser)

	assert.Equal(t, 2, hub.ConnectionsForUser(7))

	hub.Publish(UserRoom(7), "note.created", map[string]any{"id": 5})
	assert.Equal(t, "note.created", receive(t, tab1).Event)
	assert.Equal(t, "note.created", receive(t, tab2).Event)

	hub.Unregister(tab1)
	assert.Equal(t, 1, hub.ConnectionsForUser(7))
}

func TestEventEnvelopeShape(t *testing.T) {
	hub := NewHub()
	client := connect(hub, 1, domain.RoleUser)

	hub.Publish(UserRoom(1), "appointment.created", map[string]any{"id": float64(42)})

	ev := receive(t, client)
	assert.Equal(t, "appointment.created", ev.Event)
	data, ok := ev.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), data["id"])
}

func TestUserRoomNaming(t *testing.T) {
	assert.Equal(t, "user:42", UserRoom(42))
}
