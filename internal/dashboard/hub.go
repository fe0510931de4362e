// Package dashboard serves an HTTP/WebSocket spectator view of the
// match: a snapshot status endpoint, the live scoreboard, and a
// websocket stream that mirrors the match's start, step, scoreboard and
// game_over frames (other player-facing frames such as team_status,
// turn, countdown and info are not mirrored). It never mutates match
// state.
package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // spectators are read-only and unauthenticated by design
	},
}

// Hub fans out broadcast frames to every connected spectator, and hands
// a freshly subscribed spectator a snapshot of current match state so
// it doesn't sit blank until the next live event.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex

	info MatchInfo
}

// NewHub returns an idle Hub; call Run on its own goroutine to start
// fanning out.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// SetInfo wires the match controller in after both it and the Hub have
// been constructed, breaking the construction-order cycle between them
// (the controller is built with a reference to its spectator Hub, so
// the Hub cannot require a MatchInfo up front). Safe to call once,
// before Run starts accepting subscribers.
func (h *Hub) SetInfo(info MatchInfo) {
	h.mutex.Lock()
	h.info = info
	h.mutex.Unlock()
}

// Run drains the broadcast channel and writes every message to every
// connected spectator. A client whose write fails or times out is
// dropped.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("dashboard: spectator write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades an inbound HTTP request to a websocket connection
// and registers it as a spectator.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("dashboard: upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	info := h.info
	h.mutex.Unlock()
	log.Printf("dashboard: spectator connected, total %d", n)

	if info != nil {
		if snap, err := json.Marshal(info.DashboardSnapshot()); err == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, snap); err != nil {
				log.Printf("dashboard: initial snapshot write failed: %v", err)
			}
		}
	}

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			n := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("dashboard: spectator disconnected, total %d", n)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("dashboard: spectator read error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast enqueues data to be pushed to every connected spectator.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}
