package realtime

import (
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// Hub relays opaque JSON messages between the clients of a match. It carries
// no game logic; clients coordinate ready pings, emotes, whatever they like,
// and poll the HTTP state endpoints for the truth.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*websocket.Conn]bool)}
}

func (h *Hub) join(matchID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[matchID] == nil {
		h.rooms[matchID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[matchID][conn] = true
}

func (h *Hub) leave(matchID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[matchID], conn)
	if len(h.rooms[matchID]) == 0 {
		delete(h.rooms, matchID)
	}
}

// broadcast fans a payload out to every connection in the room except the
// sender. Send failures drop that connection's message only.
func (h *Hub) broadcast(matchID string, sender *websocket.Conn, payload []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[matchID]))
	for conn := range h.rooms[matchID] {
		if conn != sender {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("ws write failed for match %s: %v", matchID, err)
		}
	}
}

// Serve is the connection loop for /ws/matches/:id. It registers the
// connection in the match room and relays every inbound message to the peers.
func (h *Hub) Serve(conn *websocket.Conn) {
	matchID := conn.Params("id")
	h.join(matchID, conn)
	defer func() {
		h.leave(matchID, conn)
		_ = conn.Close()
	}()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.broadcast(matchID, conn, payload)
	}
}
