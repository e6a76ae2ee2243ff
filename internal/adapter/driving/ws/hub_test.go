package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
)

// dialTestClient connects a websocket client to a hub-backed test server and
// consumes the connection greeting.
func dialTestClient(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var greeting envelope
	require.NoError(t, conn.ReadJSON(&greeting))
	require.Equal(t, "connection_established", greeting.Type)

	return conn
}

// waitForClients blocks until the hub has registered n clients.
func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == n
	}, time.Second, 5*time.Millisecond)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHub_BroadcastsPRChangeToAllByDefault(t *testing.T) {
	hub := NewHub()
	conn := dialTestClient(t, hub)
	waitForClients(t, hub, 1)

	hub.BroadcastPRChange("acme/widgets", model.ChangeNew, model.PullRequest{
		RepoFullName: "acme/widgets",
		Number:       7,
		Title:        "Add widget",
		State:        model.PRStateOpen,
		Status:       model.StatusNeedsReview,
		UpdatedAt:    time.Now(),
	})

	env := readEnvelope(t, conn)
	assert.Equal(t, "pr_update", env.Type)
	assert.Equal(t, "acme/widgets", env.Scope)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var payload prPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, 7, payload.Number)
	assert.Equal(t, "new_pr", payload.Change)
}

func TestHub_SubscriptionFiltersScopes(t *testing.T) {
	hub := NewHub()
	conn := dialTestClient(t, hub)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteJSON(clientCommand{Action: "subscribe", Scope: "acme/platform"}))

	// Subscribe handling is asynchronous; wait for it to land.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			if c.scopes["acme/platform"] {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	hub.BroadcastStats("acme/other", model.ScopeStats{ScopeKey: "acme/other"})
	hub.BroadcastStats("acme/platform", model.ScopeStats{ScopeKey: "acme/platform", TotalOpen: 3})

	// Only the subscribed scope arrives.
	env := readEnvelope(t, conn)
	assert.Equal(t, "scope_stats_update", env.Type)
	assert.Equal(t, "acme/platform", env.Scope)
}

func TestHub_DropsDisconnectedClients(t *testing.T) {
	hub := NewHub()
	conn := dialTestClient(t, hub)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)

	// Broadcasting with no clients must not panic or block.
	hub.BroadcastStats("acme/widgets", model.ScopeStats{})
}
