package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ledgersync/ledgersync/internal/utils"
)

const (
	writeTimeout   = 20 * time.Second
	pingInterval   = 30 * time.Second
	sendBuffer     = 16
	shutdownReason = "shutdown"
)

// WebsocketClient is one connected device. Devices never send anything but
// control frames, so reads are discarded.
type WebsocketClient struct {
	ConnID string
	Info   *ClientInfo
	Closed chan struct{}

	conn      *websocket.Conn
	send      chan *Notification
	closeOnce sync.Once
}

func NewWebsocketClient(conn *websocket.Conn, info *ClientInfo) *WebsocketClient {
	return &WebsocketClient{
		ConnID: utils.TokenHex(4),
		Info:   info,
		Closed: make(chan struct{}),
		conn:   conn,
		send:   make(chan *Notification, sendBuffer),
	}
}

// Start runs the write loop until the connection drops or ctx ends.
func (c *WebsocketClient) Start(ctx context.Context) {
	slog.Debug("wsclient start", "connId", c.ConnID, "device", c.Info.DeviceID)
	go c.writeLoop(c.conn.CloseRead(ctx))
}

// Enqueue queues a notification without blocking. A full buffer drops it;
// the device already has a pull pending.
func (c *WebsocketClient) Enqueue(n *Notification) bool {
	select {
	case <-c.Closed:
		return false
	case c.send <- n:
		return true
	default:
		return false
	}
}

func (c *WebsocketClient) Close() {
	c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
}

func (c *WebsocketClient) closeConnection(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.conn.Close(status, reason)
		close(c.Closed)
		slog.Debug("wsclient closed", "connId", c.ConnID)
	})
}

func (c *WebsocketClient) writeLoop(ctx context.Context) {
	defer c.closeConnection(websocket.StatusNormalClosure, shutdownReason)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case n := <-c.send:
			ctxWrite, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(ctxWrite, c.conn, n)
			cancel()
			if err != nil {
				slog.Warn("wsclient writer", "connId", c.ConnID, "error", err)
				return
			}

		case <-ticker.C:
			ctxPing, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(ctxPing)
			cancel()
			if err != nil {
				slog.Debug("wsclient ping", "connId", c.ConnID, "error", err)
				return
			}

		case <-c.Closed:
			return

		case <-ctx.Done():
			return
		}
	}
}
