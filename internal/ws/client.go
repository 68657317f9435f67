package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one live websocket connection. Outbound frames go through a
// buffered channel drained by writeLoop, so Send never blocks the caller.
type Client struct {
	info    ConnInfo
	session Session
	radius  atomic.Int32
	conn    *websocket.Conn
	out     chan []byte
	done    chan struct{}
	once    sync.Once
}

// NewClient wraps conn. conn may be nil when the client is driven without a
// network connection.
func NewClient(conn *websocket.Conn, info ConnInfo, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		info: info,
		conn: conn,
		out:  make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.info.ConnID }
func (c *Client) Info() ConnInfo { return c.info }
func (c *Client) Session() *Session { return &c.session }
func (c *Client) UserID() string { return c.session.UserID }
func (c *Client) Outbound() <-chan []byte { return c.out }

// Radius is the selected proximity radius, readable from any goroutine.
func (c *Client) Radius() int { return int(c.radius.Load()) }

func (c *Client) setRadius(km int) {
	c.session.Radius = km
	c.radius.Store(int32(km))
}

// Send queues payload for delivery without blocking.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.out <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write loop and closes the underlying connection. Safe to call twice.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) writeLoop(writeTimeout time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
