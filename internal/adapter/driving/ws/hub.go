// Package ws implements the Broadcaster port over websockets. Clients
// connect once, send subscribe messages for the scopes they care about, and
// receive pull request and stats updates as they happen.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Broadcaster = (*Hub)(nil)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the per-client outbound queue. A client that falls this
	// far behind is disconnected rather than allowed to stall the hub.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-host tool; the HTTP layer binds to loopback by default.
	CheckOrigin: func(*http.Request) bool { return true },
}

// envelope is the wire shape of every hub-to-client message.
type envelope struct {
	Type  string `json:"type"`
	Scope string `json:"scope,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// clientCommand is the wire shape of client-to-hub messages.
type clientCommand struct {
	Action string `json:"action"`
	Scope  string `json:"scope"`
}

// prPayload is the pull request shape pushed to clients.
type prPayload struct {
	RepoFullName string `json:"repo_full_name"`
	Number       int    `json:"number"`
	Title        string `json:"title"`
	State        string `json:"state"`
	URL          string `json:"url"`
	Author       string `json:"author"`
	IsDraft      bool   `json:"is_draft"`
	Status       string `json:"status"`
	UpdatedAt    string `json:"updated_at"`
	Change       string `json:"change"`
}

// statsPayload is the scope statistics shape pushed to clients.
type statsPayload struct {
	ScopeKey       string `json:"scope_key"`
	TotalOpen      int    `json:"total_open"`
	AssignedToUser int    `json:"assigned_to_user"`
	ReviewRequests int    `json:"review_requests"`
	NeedsReview    int    `json:"needs_review"`
	LastUpdated    string `json:"last_updated"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	scopes map[string]bool
}

// subscribedTo reports whether a client should see messages for a scope.
// A client that never subscribed to anything receives every scope.
func (c *client) subscribedTo(scopeKey string) bool {
	if len(c.scopes) == 0 {
		return true
	}
	return c.scopes[scopeKey]
}

// Hub fans broadcasts out to connected websocket clients. Delivery is best
// effort: a dead or slow client is dropped, never waited on.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// ServeWS upgrades an HTTP request to a websocket connection and runs its
// read and write pumps until the peer disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		scopes: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("websocket client connected", "remote", r.RemoteAddr, "clients", count)

	if greeting, err := json.Marshal(envelope{Type: "connection_established"}); err == nil {
		c.send <- greeting
	}

	go h.writePump(c)
	h.readPump(c)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastPRChange pushes one pull request change to every client
// subscribed to the scope.
func (h *Hub) BroadcastPRChange(scopeKey string, kind model.ChangeKind, pr model.PullRequest) {
	h.publish(scopeKey, envelope{
		Type:  "pr_update",
		Scope: scopeKey,
		Data: prPayload{
			RepoFullName: pr.RepoFullName,
			Number:       pr.Number,
			Title:        pr.Title,
			State:        string(pr.State),
			URL:          pr.URL,
			Author:       pr.Author,
			IsDraft:      pr.IsDraft,
			Status:       string(pr.Status),
			UpdatedAt:    pr.UpdatedAt.UTC().Format(time.RFC3339),
			Change:       string(kind),
		},
	})
}

// BroadcastStats pushes updated scope statistics to every client subscribed
// to the scope.
func (h *Hub) BroadcastStats(scopeKey string, stats model.ScopeStats) {
	h.publish(scopeKey, envelope{
		Type:  "scope_stats_update",
		Scope: scopeKey,
		Data: statsPayload{
			ScopeKey:       stats.ScopeKey,
			TotalOpen:      stats.TotalOpen,
			AssignedToUser: stats.AssignedToUser,
			ReviewRequests: stats.ReviewRequests,
			NeedsReview:    stats.NeedsReview,
			LastUpdated:    stats.LastUpdated.UTC().Format(time.RFC3339),
		},
	})
}

func (h *Hub) publish(scopeKey string, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		slog.Error("marshal broadcast failed", "type", env.Type, "error", err)
		return
	}

	h.mu.RLock()
	var stalled []*client
	for c := range h.clients {
		if !c.subscribedTo(scopeKey) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		slog.Warn("dropping stalled websocket client")
		h.drop(c)
	}
}

// drop removes a client and closes its send channel, which terminates its
// write pump.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()

	close(c.send)
	_ = c.conn.Close()
}

// readPump consumes client commands until the connection dies.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			slog.Warn("discarding malformed websocket command", "error", err)
			continue
		}

		h.mu.Lock()
		switch cmd.Action {
		case "subscribe":
			if cmd.Scope != "" {
				c.scopes[cmd.Scope] = true
			}
		case "unsubscribe":
			delete(c.scopes, cmd.Scope)
		}
		h.mu.Unlock()
	}
}

// writePump drains the client's send channel and keeps the connection alive
// with pings.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
