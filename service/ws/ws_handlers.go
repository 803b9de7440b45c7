package ws

import (
	"net/http"
	"time"

	"github.com/KAsare1/slotbook-server/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Client struct {
	HostID uint
	Conn   *websocket.Conn
	Send   chan []byte
	hub    *Hub
}

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler accepts upgrades from the given origins; an empty list allows any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

// RegisterRoutes expects a router that already authenticates the host.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	hostID, err := utils.GetHostIDFromContext(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Warn("websocket upgrade failed", "host_id", hostID, "error", err)
		return
	}

	client := &Client{HostID: hostID, Conn: conn, Send: make(chan []byte, sendBuffer), hub: h.hub}
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound frames and notices when the peer goes away.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
