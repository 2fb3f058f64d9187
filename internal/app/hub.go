package app

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const writeWait = 2 * time.Second

// hub fans telemetry out to websocket subscribers.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	log     *zap.SugaredLogger
}

func newHub(logger *zap.SugaredLogger) *hub {
	return &hub{clients: map[*websocket.Conn]bool{}, log: logger}
}

// handleWS upgrades HTTP to websocket and registers the client for broadcasts.
func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugw("ws upgrade failed", "error", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.log.Debugw("feed subscriber joined", "remote", r.RemoteAddr)

	// read loop to detect disconnect
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// broadcast sends a message to all connected websocket clients.
func (h *hub) broadcast(msg string) {
	h.mu.Lock()
	var failed []*websocket.Conn
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			failed = append(failed, c)
		}
	}
	h.mu.Unlock()
	for _, c := range failed {
		h.remove(c)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		h.remove(c)
	}
}
