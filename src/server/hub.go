package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"mse-pipeline/src/logger"
	"mse-pipeline/src/models"
	"mse-pipeline/src/utils"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// Hub fans progress events out to websocket clients. It implements
// interfaces.IProgressReporter so runs can publish without knowing about HTTP.
type Hub struct {
	Logger *logger.Logger

	clients    map[*Client]struct{}
	broadcast  chan models.MProgressEvent
	register   chan *Client
	unregister chan *Client

	// last event per run, replayed to new subscribers
	latest  map[string]models.MProgressEvent
	history *utils.RingBuffer[models.MProgressEvent]
	mu      sync.RWMutex
	done   chan struct{}
}

const historySize = 500

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		Logger:     log,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan models.MProgressEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		latest:     make(map[string]models.MProgressEvent),
		history:    utils.NewRingBuffer[models.MProgressEvent](historySize),
		done:       make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Run is the hub loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			for _, ev := range h.latest {
				select {
				case client.send <- ev:
				default:
				}
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.history.Append(ev)
			h.mu.Lock()
			if ev.RunID != "" {
				h.latest[ev.RunID] = ev
			}
			for client := range h.clients {
				if !client.wants(ev) {
					continue
				}
				select {
				case client.send <- ev:
				default:
					// slow consumer, drop it rather than block the hub
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// -----------------------------------------------------------------------------

// Publish queues ev for broadcast. It never blocks; when the queue is full
// the event is dropped.
func (h *Hub) Publish(ev models.MProgressEvent) {
	select {
	case h.broadcast <- ev:
	default:
		h.Logger.Warning("Progress queue full, dropping %s event for run %s", ev.Kind, ev.RunID)
	}
}

// Connections returns the number of connected websocket clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Latest returns the last event seen for runID.
func (h *Hub) Latest(runID string) (models.MProgressEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev, ok := h.latest[runID]
	return ev, ok
}

// Recent returns up to n of the most recent events, oldest first.
func (h *Hub) Recent(n int) []models.MProgressEvent {
	return h.history.GetLatest(n)
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan models.MProgressEvent, 256),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// handleClientMessage applies {"command":"subscribe","run_id":"..."}; an empty
// run_id subscribes to every run.
func (h *Hub) handleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		h.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	switch cmd.Command {
	case "subscribe":
		client.subscribe(cmd.RunID)
		if ev, ok := h.Latest(cmd.RunID); ok {
			select {
			case client.send <- ev:
			default:
			}
		}
	case "unsubscribe":
		client.subscribe("")
	}
}
