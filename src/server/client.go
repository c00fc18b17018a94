package server

import (
	"errors"
	"time"

	"ledger-socket/src/metrics"
	"ledger-socket/src/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096 // subscribers are not expected to send anything
	sendBuffer     = 64
)

var errHubStopped = errors.New("hub stopped")

// -----------------------------------------------------------------------------
// Client is one live subscriber.
// -----------------------------------------------------------------------------

type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan *models.MEvent
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan *models.MEvent, sendBuffer),
	}
}

// -----------------------------------------------------------------------------
// readPump discards client payloads and notices disconnects
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c)
		c.conn.Close()
		c.hub.Logger.Debug("Subscriber %s disconnected", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			return
		}
	}
}

// -----------------------------------------------------------------------------
// writePump - sends events to the subscriber
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				c.hub.Logger.Info("Write to subscriber %s failed: %v", c.id, err)
				metrics.SubscriberPruned()
				c.hub.Unsubscribe(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unsubscribe(c)
				return
			}
		}
	}
}
