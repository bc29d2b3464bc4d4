package net

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"ShapeBoard/internal/api"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Peer is one connected websocket client.
type Peer struct {
	conn *websocket.Conn
	user string
	mu   sync.Mutex
}

func (p *Peer) write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks the websocket clients of every user so a change made from one
// client can be announced to the others.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]map[*Peer]bool
	logger *log.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		peers:  make(map[string]map[*Peer]bool),
		logger: logger.WithPrefix("hub"),
	}
}

// Add registers a peer for user.
func (h *Hub) Add(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[p.user] == nil {
		h.peers[p.user] = make(map[*Peer]bool)
	}
	h.peers[p.user][p] = true
	h.logger.Debug("peer added", "user", p.user, "addr", p.conn.RemoteAddr())
}

// Remove unregisters a peer.
func (h *Hub) Remove(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers[p.user], p)
	if len(h.peers[p.user]) == 0 {
		delete(h.peers, p.user)
	}
	h.logger.Debug("peer removed", "user", p.user, "addr", p.conn.RemoteAddr())
}

// Count returns how many peers user has connected.
func (h *Hub) Count(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers[user])
}

// Broadcast sends ev to every peer of user. Peers that fail to receive are
// dropped.
func (h *Hub) Broadcast(user string, ev api.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "err", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Peer, 0, len(h.peers[user]))
	for p := range h.peers[user] {
		targets = append(targets, p)
	}
	h.mu.RUnlock()

	for _, p := range targets {
		if err := p.write(data); err != nil {
			h.logger.Warn("send failed", "user", user, "addr", p.conn.RemoteAddr(), "err", err)
			p.conn.Close()
			h.Remove(p)
		}
	}
}

// Serve upgrades the request to a websocket for user and blocks until the
// client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, user string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	p := &Peer{conn: conn, user: user}
	h.Add(p)
	defer func() {
		h.Remove(p)
		conn.Close()
	}()

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for user, peers := range h.peers {
		for p := range peers {
			p.mu.Lock()
			p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			p.mu.Unlock()
			p.conn.Close()
		}
		delete(h.peers, user)
	}
}

// Watch connects to a drawing events endpoint and calls fn for each event
// until ctx is cancelled or the connection drops.
func Watch(ctx context.Context, url, token string, fn func(api.Event)) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", url, err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		var ev api.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		fn(ev)
	}
}
