package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ChannelHandlers are the lifecycle callbacks of the control data
// channel. They are wired before Dial returns; OnMessage is invoked
// from a single reader in strict arrival order.
type ChannelHandlers struct {
	OnOpen    func()
	OnClose   func()
	OnError   func(error)
	OnMessage func(payload []byte)
}

// DataChannel is the opaque transport primitive: send a serialized
// payload, or tear it down.
type DataChannel interface {
	Send(payload []byte) error
	Close() error
}

// Transport establishes the peer connection and its control data
// channel, authenticated with a short-lived credential.
type Transport interface {
	Dial(ctx context.Context, credential string, handlers ChannelHandlers) (DataChannel, error)
}

// WebSocketTransport dials the remote model service over a websocket
// that carries the control event stream.
type WebSocketTransport struct {
	URL    string
	Model  string
	Dialer *websocket.Dialer
}

// Dial opens the channel, invokes OnOpen, and starts the read loop.
func (t *WebSocketTransport) Dial(ctx context.Context, credential string, handlers ChannelHandlers) (DataChannel, error) {
	endpoint, err := t.endpoint()
	if err != nil {
		return nil, err
	}

	headers := make(http.Header)
	headers.Set("Authorization", "Bearer "+credential)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	ch := &wsChannel{conn: conn, handlers: handlers}
	if handlers.OnOpen != nil {
		handlers.OnOpen()
	}
	go ch.readLoop()
	return ch, nil
}

func (t *WebSocketTransport) endpoint() (string, error) {
	u, err := url.Parse(t.URL)
	if err != nil {
		return "", fmt.Errorf("invalid realtime URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("realtime URL must use http(s) or ws(s), got %q", u.Scheme)
	}
	if t.Model != "" {
		q := u.Query()
		q.Set("model", t.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

type wsChannel struct {
	conn     *websocket.Conn
	handlers ChannelHandlers

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

func (c *wsChannel) Send(payload []byte) error {
	if c.closed.Load() {
		return fmt.Errorf("data channel is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	return nil
}

func (c *wsChannel) readLoop() {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if c.handlers.OnError != nil {
					c.handlers.OnError(err)
				}
			}
			if c.handlers.OnClose != nil {
				c.handlers.OnClose()
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(data)
		}
	}
}
