package ws

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	readLimit    = 64 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Client is one live websocket connection owned by an authenticated user.
// A user may hold several clients at once (multiple devices).
type Client struct {
	id        string
	userID    string
	expiresAt time.Time
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	limiter   *rate.Limiter
	closed    int32
}

func NewClient(conn *websocket.Conn, userID string, expiresAt time.Time, rps int) *Client {
	return &Client{
		id:        uuid.NewString(),
		userID:    userID,
		expiresAt: expiresAt,
		ws:        conn,
		send:      make(chan []byte, 256),
		done:      make(chan struct{}),
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) UserID() string    { return c.userID }
func (c *Client) Expiry() time.Time { return c.expiresAt }

// Emit queues an event for this connection only.
func (c *Client) Emit(event string, payload any) {
	b, err := Encode(event, payload)
	if err != nil {
		return
	}
	c.enqueue(b)
}

func (c *Client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- b:
		return true
	default:
		return false
	}
}

// ReadPump reads inbound envelopes and hands them to onEvent in arrival
// order. It returns when the connection drops, the credential runs out, or
// the payload is malformed past recovery.
func (c *Client) ReadPump(onEvent func(*Client, Envelope)) {
	defer c.Close()

	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if time.Now().After(c.expiresAt) {
			c.Emit("authErrorMessage", map[string]any{
				"message": "access token expired, refresh it via /auth/refresh",
			})
			return
		}
		if !c.limiter.Allow() {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			continue
		}
		onEvent(c, env)
	}
}

// WritePump drains the send queue onto the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

// Close is safe to call more than once.
func (c *Client) Close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	}
}
