package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/ledgersync/ledgersync/internal/relay/handlers/api"
	"github.com/ledgersync/ledgersync/internal/relay/middlewares"
)

const maxMessageSize = 4 * 1024

// WebsocketHub fans account notifications out to connected devices.
type WebsocketHub struct {
	clients  map[string]*WebsocketClient
	register chan *WebsocketClient
	done     chan struct{}

	wg sync.WaitGroup
	mu sync.RWMutex
}

func NewHub() *WebsocketHub {
	return &WebsocketHub{
		clients:  make(map[string]*WebsocketClient),
		register: make(chan *WebsocketClient),
		done:     make(chan struct{}),
	}
}

func (h *WebsocketHub) Run(ctx context.Context) {
	slog.Info("wshub started")
	defer slog.Info("wshub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConnID] = client
			slog.Debug("wshub registered", "connId", client.ConnID, "user", client.Info.User, "device", client.Info.DeviceID, "active", len(h.clients))
			h.mu.Unlock()

			h.wg.Add(1)
			client.Start(ctx)
			go func() {
				<-client.Closed

				h.mu.Lock()
				delete(h.clients, client.ConnID)
				slog.Debug("wshub removed", "connId", client.ConnID, "active", len(h.clients))
				h.mu.Unlock()
				h.wg.Done()
			}()
		case <-ctx.Done():
			return
		case <-h.done:
			return
		}
	}
}

func (h *WebsocketHub) Shutdown(ctx context.Context) {
	select {
	case <-h.done:
		return
	default:
		close(h.done)
	}

	h.mu.RLock()
	clients := make([]*WebsocketClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		go client.Close()
	}

	waited := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		slog.Warn("wshub shutdown timed out")
	}
	slog.Info("wshub shutdown")
}

// WebsocketHandler upgrades an authenticated device's request and hands the
// connection to the hub. Must run after JWTAuth and RequireDevice.
func (h *WebsocketHub) WebsocketHandler(ctx *gin.Context) {
	device := middlewares.Device(ctx)
	if device == nil {
		api.AbortWithError(ctx, http.StatusForbidden, api.CodeDeviceNotFound, errors.New("device missing"))
		return
	}

	conn, err := websocket.Accept(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Accept already wrote the response
		ctx.Abort()
		ctx.Error(err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := NewWebsocketClient(conn, &ClientInfo{
		User:     middlewares.User(ctx),
		DeviceID: device.DeviceID,
		IPAddr:   ctx.ClientIP(),
		Version:  ctx.GetHeader("X-LedgerSync-Version"),
	})

	select {
	case h.register <- client:
	case <-h.done:
		client.closeConnection(websocket.StatusGoingAway, shutdownReason)
	}
}

// Notify sends n to every connected device of the account except one,
// usually the device whose push caused it. It returns the number queued.
func (h *WebsocketHub) Notify(account, excludeDevice string, n *Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if client.Info.User != account || client.Info.DeviceID == excludeDevice {
			continue
		}
		if client.Enqueue(n) {
			sent++
		} else {
			slog.Debug("wshub notification dropped", "connId", client.ConnID, "device", client.Info.DeviceID)
		}
	}
	return sent
}

// Connected counts open connections for the account.
func (h *WebsocketHub) Connected(account string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, client := range h.clients {
		if client.Info.User == account {
			n++
		}
	}
	return n
}
