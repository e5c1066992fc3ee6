package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersync/ledgersync/internal/relay/events"
	"github.com/ledgersync/ledgersync/internal/relay/middlewares"
)

type allowAll struct{}

func (allowAll) CheckDevice(_ context.Context, account, deviceID string) (*events.Device, error) {
	return &events.Device{Account: account, DeviceID: deviceID, TrustState: events.TrustActive}, nil
}

func newHubServer(t *testing.T) (*WebsocketHub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/events", func(c *gin.Context) {
		c.Set("user", c.GetHeader("X-Test-User"))
	}, middlewares.RequireDevice(allowAll{}), hub.WebsocketHandler)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		hub.Shutdown(shutdownCtx)
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
}

func dial(t *testing.T, url, user, device string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("X-Test-User", user)
	header.Set("X-Device-Id", device)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestNotifyReachesOtherDevicesOfAccount(t *testing.T) {
	hub, url := newHubServer(t)

	dial(t, url, "alice@example.com", "dev-a")
	peer := dial(t, url, "alice@example.com", "dev-b")
	dial(t, url, "bob@example.com", "dev-x")

	require.Eventually(t, func() bool {
		return hub.Connected("alice@example.com") == 2 && hub.Connected("bob@example.com") == 1
	}, 2*time.Second, 10*time.Millisecond)

	sent := hub.Notify("alice@example.com", "dev-a", &Notification{Type: NotificationEventsAvailable, Seq: 7})
	assert.Equal(t, 1, sent)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var got Notification
	require.NoError(t, wsjson.Read(ctx, peer, &got))
	assert.Equal(t, NotificationEventsAvailable, got.Type)
	assert.Equal(t, int64(7), got.Seq)
}

func TestClosedClientIsRemoved(t *testing.T) {
	hub, url := newHubServer(t)

	conn := dial(t, url, "alice@example.com", "dev-a")
	require.Eventually(t, func() bool { return hub.Connected("alice@example.com") == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool { return hub.Connected("alice@example.com") == 0 }, 2*time.Second, 10*time.Millisecond)
}
