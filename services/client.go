package services

import (
	"sync"

	"github.com/gorilla/websocket"
)

type Client struct {
	userID uint
	roomID uint
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	once   sync.Once
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// --------------------
// Client read/write pumps
// --------------------
func (c *Client) readPump() {
	defer c.hub.removeClient(c)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debugw("client disconnected", "user_id", c.userID)
			} else {
				c.hub.log.Warnw("client read error", "user_id", c.userID, "error", err)
			}
			return
		}
		c.hub.handleMessage(c, message)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.log.Warnw("client write error", "user_id", c.userID, "error", err)
			return
		}
	}
}
