package realtime

import (
	"context"
	"log"
	"net/http"
	"time"

	"planora/internal/domain"
	"planora/internal/pkg/jwt"
	"planora/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict origins once the frontend domains are settled
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PresenceStore mirrors connection state into the user record.
type PresenceStore interface {
	SetOnlineStatus(ctx context.Context, userID int64, online bool, at time.Time) error
}

// Handler upgrades authenticated websocket connections and binds them to
// their broadcast rooms.
type Handler struct {
	hub        *Hub
	jwtService *jwt.Service
	presence   PresenceStore
}

func NewHandler(hub *Hub, jwtService *jwt.Service, presence PresenceStore) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		presence:   presence,
	}
}

func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.GET("/ws", h.HandleConnection)
}

// HandleConnection serves GET /ws?token=<access token>. Browsers cannot set
// headers on websocket dials, so the credential travels as a query
// parameter. Authentication happens before the upgrade.
func (h *Handler) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing token query parameter")
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed user_id=%d: %v", claims.UserID, err)
		return
	}

	client := newClient(conn, claims.UserID, domain.UserRole(claims.Role))
	h.hub.Register(client)
	h.hub.Join(client, UserRoom(client.userID))
	if client.role == domain.RoleAdmin {
		h.hub.Join(client, AdminRoom)
	}

	h.markOnline(client, true)
	log.Printf("realtime: connected user_id=%d conn=%s", client.userID, client.id)

	go h.writePump(client)
	go h.readPump(client)
}

// readPump drains inbound frames. Clients do not speak upward beyond
// keep-alive; the read loop exists to notice disconnects and enforce the
// pong deadline. It owns connection teardown.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		_ = client.conn.Close()
		h.markOnline(client, false)
		log.Printf("realtime: disconnected user_id=%d conn=%s", client.userID, client.id)
	}()

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error user_id=%d: %v", client.userID, err)
			}
			return
		}
	}
}

// writePump pushes queued events to the peer and keeps the connection alive
// with pings. It exits when the hub closes the send queue or a write fails.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// markOnline updates presence and tells the admin dashboards. Presence flips
// to offline only when the user's last connection goes away.
func (h *Handler) markOnline(client *Client, online bool) {
	if !online && h.hub.ConnectionsForUser(client.userID) > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if err := h.presence.SetOnlineStatus(ctx, client.userID, online, now); err != nil {
		log.Printf("realtime: presence update failed user_id=%d: %v", client.userID, err)
	}

	event := "user.online"
	if !online {
		event = "user.offline"
	}
	h.hub.Publish(AdminRoom, event, gin.H{"user_id": client.userID, "at": now})
}
