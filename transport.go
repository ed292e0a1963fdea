package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "chidiya_id"

// getPlayerID resolves the connection's player identity: an explicit
// ?player= query value (headless clients), else the identity cookie, else a
// freshly minted one. The identity doubles as the roster key, so reconnects
// with the same id land on the same Player.
func getPlayerID(w http.ResponseWriter, r *http.Request) string {
	if id := r.URL.Query().Get("player"); id != "" {
		return id
	}

	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// Client is the hub's handle on one connected peer.
type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.stop:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.inbound <- inboundMessage{client: c, msg: msg}:
		case <-h.stop:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// Conn is the client side of the channel to the host: reliable and ordered,
// no bounded latency, no built-in retry. A dropped connection closes
// Messages and is terminal; reconnection is the caller's job.
type Conn interface {
	Send(v any) error
	Messages() <-chan []byte
	Close() error
}

type wsConn struct {
	ws     *websocket.Conn
	wmu    sync.Mutex
	msgs   chan []byte
	closed sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{
		ws:   ws,
		msgs: make(chan []byte, 16),
	}
	go c.readLoop()

	return c
}

func (c *wsConn) readLoop() {
	defer close(c.msgs)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.msgs <- data
	}
}

func (c *wsConn) Send(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	return c.ws.WriteJSON(v)
}

func (c *wsConn) Messages() <-chan []byte {
	return c.msgs
}

func (c *wsConn) Close() error {
	var err error
	c.closed.Do(func() {
		err = c.ws.Close()
	})

	return err
}

var errRoomNotFound = errors.New("room not found")

// dialRoom connects to a room's websocket endpoint. Room identities are
// case-sensitive on the wire, so the code is tried as typed, uppercased,
// and lowercased, each with its own handshake timeout, before giving up.
func dialRoom(ctx context.Context, baseURL, path, code, playerID string, timeout time.Duration) (Conn, error) {
	variants := []string{code, strings.ToUpper(code), strings.ToLower(code)}
	tried := make(map[string]bool, len(variants))

	for _, variant := range variants {
		if tried[variant] {
			continue
		}
		tried[variant] = true

		wsURL, err := roomSocketURL(baseURL, path, variant, playerID)
		if err != nil {
			return nil, err
		}

		dialer := websocket.Dialer{HandshakeTimeout: timeout}
		ws, resp, err := dialer.DialContext(ctx, wsURL, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err == nil {
			return newWSConn(ws), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, errRoomNotFound
}

func roomSocketURL(baseURL, path, code, playerID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + path + "/" + code + "/ws"
	q := u.Query()
	q.Set("player", playerID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
