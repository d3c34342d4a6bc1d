package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Connection timings. The server only pushes; inbound frames other than
// pongs and close are read and dropped.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 512
	sendBuffer     = 256
)

// Client is one browser tab subscribed to a workspace's pipeline and to its
// user's notifications
type Client struct {
	id          string
	workspaceID int32
	userID      uuid.UUID
	conn        *websocket.Conn
	hub         *Hub

	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewClient creates a client for an upgraded connection. Call Start to
// register it and begin serving.
func NewClient(conn *websocket.Conn, workspaceID int32, userID uuid.UUID, hub *Hub) *Client {
	return &Client{
		id:          uuid.New().String(),
		workspaceID: workspaceID,
		userID:      userID,
		conn:        conn,
		hub:         hub,
		outbox:      make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}
}

func (c *Client) ID() string         { return c.id }
func (c *Client) WorkspaceID() int32 { return c.workspaceID }
func (c *Client) UserID() uuid.UUID  { return c.userID }

// Send queues data for the writer. A full outbox means the peer is not keeping
// up; the frame is dropped and ErrClientClosed reported so the hub logs it.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.outbox <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrClientClosed
	}
}

// Close signals both loops to stop. The write loop sends a close frame and
// releases the connection. It is idempotent.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Done is closed once the client has been closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Start registers the client with its hub and serves the connection until the
// peer goes away or the hub disconnects it
func (c *Client) Start() {
	c.hub.Register(c)
	go c.writeLoop()
	go c.readLoop()
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Int32("workspace_id", c.workspaceID).
					Msg("WebSocket unexpected close")
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case data := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Str("user_id", c.userID.String()).
					Msg("WebSocket write error")
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
