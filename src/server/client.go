package server

import (
	"sync"
	"time"

	"mse-pipeline/src/models"

	"github.com/gorilla/websocket"
)


const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	maxBatch       = 64
)

// -----------------------------------------------------------------------------

// Client is one websocket subscriber. An empty runID receives every run.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan models.MProgressEvent

	mu    sync.Mutex
	runID string
}

func (c *Client) subscribe(runID string) {
	c.mu.Lock()
	c.runID = runID
	c.mu.Unlock()
}

func (c *Client) wants(ev models.MProgressEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID == "" || c.runID == ev.RunID
}

// -----------------------------------------------------------------------------
// Pumps
// -----------------------------------------------------------------------------

// readPump applies subscribe commands and detects dead peers through pong
// deadlines. It owns unregistering the client.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.Logger.Debug("Progress client dropped: %v", err)
			}
			return
		}
		c.hub.handleClientMessage(c, message)
	}
}

// writePump sends events as JSON arrays. Events already queued when a write
// starts go out in the same frame, so a burst of task events costs one frame.
func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			batch := []models.MProgressEvent{ev}
			for n := len(c.send); n > 0 && len(batch) < maxBatch; n-- {
				next, ok := <-c.send
				if !ok {
					break
				}
				batch = append(batch, next)
			}
			if err := c.conn.WriteJSON(batch); err != nil {
				c.hub.Logger.Debug("Progress write failed: %v", err)
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
