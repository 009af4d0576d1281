package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"planora/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// AdminRoom receives events meant for every connected admin dashboard.
const AdminRoom = "admin-dashboard"

// UserRoom names the private room of one user. All of a user's connections
// (multiple tabs, devices) share it.
func UserRoom(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Event is the wire envelope for everything pushed over a connection.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Broadcaster is the publish primitive handed to the rest of the system.
// Fire-and-forget: no acknowledgement, no persistence, events to empty rooms
// are dropped.
type Broadcaster interface {
	Publish(room, event string, payload any)
}

// Client is one websocket connection with its outbound queue. The hub writes
// to send; the client's write pump drains it. A full queue means the client
// is too slow and the event is skipped for it.
type Client struct {
	id     uuid.UUID
	userID int64
	role   domain.UserRole
	conn   *websocket.Conn
	send   chan []byte
}

func newClient(conn *websocket.Conn, userID int64, role domain.UserRole) *Client {
	return &Client{
		id:     uuid.New(),
		userID: userID,
		role:   role,
		conn:   conn,
		send:   make(chan []byte, 64),
	}
}

// Hub tracks connected clients and their room memberships.
type Hub struct {
	mutex   sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	members map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		members: make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.members[c] = make(map[string]struct{})
}

// Unregister removes the client from every room and closes its queue. Safe
// to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	rooms, exists := h.members[c]
	if !exists {
		return
	}
	for room := range rooms {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.members, c)
	close(c.send)
}

func (h *Hub) Join(c *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.members[c]; !exists {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	h.members[c][room] = struct{}{}
}

// Publish fans an event out to every client in the room, best-effort: a
// client whose queue is full is skipped rather than blocking the publisher.
func (h *Hub) Publish(room, event string, payload any) {
	msg, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Printf("realtime: cannot marshal event=%s: %v", event, err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			log.Printf("realtime: dropping event=%s for slow client user_id=%d", event, c.userID)
		}
	}
}

// RoomSize reports how many clients are currently in a room.
func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

// ConnectionsForUser counts a user's live connections.
func (h *Hub) ConnectionsForUser(userID int64) int {
	return h.RoomSize(UserRoom(userID))
}

// Close tears down every connection, typically on shutdown.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for c := range h.members {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
		delete(h.members, c)
	}
	h.rooms = make(map[string]map[*Client]struct{})
}
