package relaysdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	eventsPath              = apiPrefix + "/events"
	eventsBufferSize        = 16
	eventsReconnectDelay    = 1 * time.Second
	eventsMaxReconnectDelay = 30 * time.Second
	eventsDialTimeout       = 10 * time.Second
	eventsMaxMessageSize    = 64 * 1024
)

type tokenFunc func(ctx context.Context) (string, error)

// EventsAPI keeps a websocket open to the relay and forwards its
// notifications. It reconnects with backoff until closed.
type EventsAPI struct {
	baseURL  string
	token    tokenFunc
	deviceID string

	mu        sync.Mutex
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}
}

func newEventsAPI(baseURL string, token tokenFunc, deviceID string) *EventsAPI {
	return &EventsAPI{baseURL: baseURL, token: token, deviceID: deviceID}
}

// Subscribe starts the connection loop. The returned channel is closed when
// ctx ends or Close is called. Only one subscription runs at a time.
func (e *EventsAPI) Subscribe(ctx context.Context) (<-chan Notification, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return nil, errors.New("relaysdk: events already subscribed")
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	out := make(chan Notification, eventsBufferSize)
	go e.run(ctx, out)
	return out, nil
}

func (e *EventsAPI) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *EventsAPI) Close() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (e *EventsAPI) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *EventsAPI) run(ctx context.Context, out chan<- Notification) {
	defer func() {
		e.setConnected(false)
		close(out)
		close(e.done)
		slog.Debug("events loop shutdown")
	}()

	delay := eventsReconnectDelay
	for {
		err := e.connectAndRead(ctx, out)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !isExpectedCloseError(err) {
			slog.Warn("events disconnected", "error", err, "retryIn", delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay = min(delay*2, eventsMaxReconnectDelay)
		delay = time.Duration(float64(delay) * (0.75 + rand.Float64()*0.5))
	}
}

func (e *EventsAPI) connectAndRead(ctx context.Context, out chan<- Notification) error {
	token, err := e.token(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set(HeaderDeviceID, e.deviceID)

	dialCtx, cancel := context.WithTimeout(ctx, eventsDialTimeout)
	conn, _, err := websocket.Dial(dialCtx, websocketURL(e.baseURL), &websocket.DialOptions{HTTPHeader: header})
	cancel()
	if err != nil {
		return fmt.Errorf("dial events: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(eventsMaxMessageSize)

	e.setConnected(true)
	defer e.setConnected(false)
	slog.Info("events connected")

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var n Notification
		if err := jsonUnmarshal(raw, &n); err != nil {
			slog.Warn("events decode", "error", err)
			continue
		}

		select {
		case out <- n:
		default:
			// consumers only need to know that something changed
			slog.Debug("events buffer full, dropped", "type", n.Type, "seq", n.Seq)
		}
	}
}

func websocketURL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/") + eventsPath
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

func isExpectedCloseError(err error) bool {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed)
}
