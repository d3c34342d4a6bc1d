package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveClient upgrades every request into a started Client and hands it back
func serveClient(t *testing.T, hub *Hub, workspaceID int32, userID uuid.UUID) (*websocket.Conn, *Client) {
	t.Helper()
	clients := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(conn, workspaceID, userID, hub)
		c.Start()
		clients <- c
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	select {
	case c := <-clients:
		return conn, c
	case <-time.After(time.Second):
		t.Fatal("client was not started")
		return nil, nil
	}
}

func TestClient_DeliversHubEvents(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	conn, _ := serveClient(t, hub, 7, userID)

	require.Eventually(t, func() bool { return hub.ClientCount(7) == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(7, DealCreated(map[string]interface{}{"id": float64(1)}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"deal.created"`)
}

func TestClient_DisconnectMemberClosesSocket(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	conn, client := serveClient(t, hub, 7, userID)

	hub.DisconnectMember(7, userID)

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatal("client was not closed")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.ErrorIs(t, client.Send([]byte("late")), ErrClientClosed)
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestClient_PeerCloseUnregisters(t *testing.T) {
	hub := NewHub()
	conn, client := serveClient(t, hub, 7, uuid.New())
	require.Equal(t, 1, hub.TotalClientCount())

	require.NoError(t, conn.Close())

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatal("client was not closed")
	}
	assert.Eventually(t, func() bool { return hub.TotalClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
