package server

import (
	"net/http"
	"sync"
	"sync/atomic"

	"ledger-socket/src/logger"
	"ledger-socket/src/metrics"
	"ledger-socket/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub owns the subscriber set. Only the Run goroutine touches clients; every
// other caller goes through the register, unregister and broadcast channels.
// -----------------------------------------------------------------------------

type Hub struct {
	Logger *logger.Logger

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *models.MEvent

	count    atomic.Int64
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// -----------------------------------------------------------------------------

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		Logger:  log,
		clients: make(map[*Client]struct{}),
		// Buffered so a burst of mutations never waits on the fan-out
		broadcast:  make(chan *models.MEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------
// Hub Loop
// -----------------------------------------------------------------------------

// Run is the main Hub loop. It returns after Stop.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.sizeChanged()

		case client := <-h.unregister:
			h.remove(client)

		case event := <-h.broadcast:
			metrics.RecordBroadcast(event.Data.Estado)
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// slow or dead subscriber: drop it instead of blocking the hub
					h.Logger.Warning("Pruning subscriber %s: send buffer full", client.id)
					h.remove(client)
					metrics.SubscriberPruned()
				}
			}

		case <-h.quit:
			for client := range h.clients {
				h.remove(client)
			}
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.sizeChanged()
}

func (h *Hub) sizeChanged() {
	h.count.Store(int64(len(h.clients)))
	metrics.SetSubscribers(len(h.clients))
}

// -----------------------------------------------------------------------------

// Stop ends Run and closes every subscriber. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Count reports the registered subscribers.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// -----------------------------------------------------------------------------
// Subscriber Management
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Subscribe upgrades the request and registers the connection. On a failed
// handshake the upgrader has already answered the request.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Info("Failed to upgrade websocket: %v", err)
		return err
	}

	client := newClient(h, conn)
	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return errHubStopped
	}

	h.Logger.Debug("Subscriber %s connected", client.id)
	go client.writePump()
	go client.readPump()
	return nil
}

// -----------------------------------------------------------------------------

// Unsubscribe removes client; unknown or already removed clients are ignored.
func (h *Hub) Unsubscribe(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// -----------------------------------------------------------------------------

// Broadcast queues event for every subscriber active when it is dequeued.
func (h *Hub) Broadcast(event *models.MEvent) {
	select {
	case h.broadcast <- event:
	case <-h.quit:
	}
}
