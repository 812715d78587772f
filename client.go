/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	maxMessageSize = 64 << 10
	sendQueueSize  = 64
	writeWait      = 10 * time.Second
)

// Client is one websocket connection. Its id doubles as the player id.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan ServerMessage
	limiter *rate.Limiter

	closed bool // owned by the hub goroutine
}

func newClient(cfg *Config, conn *websocket.Conn) *Client {
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan ServerMessage, sendQueueSize),
		limiter: newCommandLimiter(cfg),
	}
}

func (c *Client) readPump(cfg *Config, h *Hub) {
	defer func() {
		h.detach(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.playerTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.playerTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logf(cfg, "SOCKS: Read from %s failed: %v", c.id, err)
			}
			return
		}
		receivedAt := h.now()
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.playerTimeout))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.submit(command{client: c, msg: msg, receivedAt: receivedAt, err: ErrInvalidPayload})
			continue
		}

		if !c.limiter.Allow() {
			h.submit(command{client: c, msg: msg, receivedAt: receivedAt, err: ErrRateLimited})
			continue
		}

		h.submit(command{client: c, msg: msg, receivedAt: receivedAt})
	}
}

func (c *Client) writePump(cfg *Config) {
	ticker := time.NewTicker(cfg.playerTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
