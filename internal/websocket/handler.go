package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"roomcoordinator/internal/room"
)

// ARCHITECTURAL DISCOVERY: a package-level upgrader configuration enables
// reuse and consistent settings across handler instances.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // FUNCTIONAL DISCOVERY: origin checking is left to a fronting proxy.
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades HTTP connections to WebSocket and feeds every frame to
// the room coordinator.
// ARCHITECTURAL DISCOVERY: unlike the source, authentication does not gate
// the upgrade — a doctor's bearer token only matters once the first
// join_room event names a role, so the upgrade happens unconditionally and
// the coordinator rejects bad joins over the open socket instead of over
// HTTP.
type Handler struct {
	coordinator *room.Coordinator
}

func NewHandler(coordinator *room.Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn)
	h.coordinator.Connect(wsConn.ID(), wsConn)

	go h.handleConnection(wsConn)
}

// handleConnection runs one socket's read pump and heartbeat until the
// client disconnects, then tears its session down through the coordinator.
// TECHNICAL DISCOVERY: 60-second read deadline with a 30-second ping
// interval, carried over from the source's heartbeat settings.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.coordinator.Disconnect(conn.ID())
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	ctx := context.Background()
	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error on %s: %v", conn.ID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env room.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = conn.WriteJSON(room.Envelope{Event: room.EventError, Data: json.RawMessage(`{"message":"malformed frame"}`)})
			continue
		}
		h.coordinator.Dispatch(ctx, conn.ID(), env)
	}
}
