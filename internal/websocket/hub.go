package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/benam/api/internal/model"
	"github.com/benam/api/internal/pipeline"
)

// Client represents a WebSocket client watching one date.
// Send is never closed; done is closed once the hub drops the client.
type Client struct {
	DateKey string
	Conn    *websocket.Conn
	Send    chan []byte

	done chan struct{}
}

func newClient(dateKey string, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		DateKey: dateKey,
		Conn:    conn,
		Send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
}

// trySend queues data without blocking. It reports false when the buffer
// is full or the client was already dropped.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub fans job updates out to the clients subscribed to each date.
// It implements pipeline.Reporter.
type Hub struct {
	// Clients grouped by date key
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	DateKey string
	Message []byte
}

var _ pipeline.Reporter = (*Hub)(nil)

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.DateKey] == nil {
				h.clients[client.DateKey] = make(map[*Client]bool)
			}
			h.clients[client.DateKey][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.DateKey] {
				if !client.trySend(msg.Message) {
					// slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops client; callers hold mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.DateKey]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.done)
	if len(clients) == 0 {
		delete(h.clients, client.DateKey)
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) send(dateKey string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}
	// never stall the pipeline on a full queue
	select {
	case h.broadcast <- &BroadcastMessage{DateKey: dateKey, Message: data}:
	default:
		log.Printf("WebSocket broadcast queue full, dropping update for %s", dateKey)
	}
}

// Progress sends a progress update to all date subscribers
func (h *Hub) Progress(job *model.Job) {
	h.send(job.DateKey, model.WSProgressMessage{
		Type:     model.WSMessageTypeProgress,
		DateKey:  job.DateKey,
		JobID:    job.JobID,
		Progress: job.Progress,
		Status:   job.Status,
		Step:     job.CurrentStep,
	})
}

// Completed sends the artifact references of a finished job
func (h *Hub) Completed(job *model.Job) {
	h.send(job.DateKey, model.WSCompleteMessage{
		Type:    model.WSMessageTypeComplete,
		DateKey: job.DateKey,
		JobID:   job.JobID,
		Result:  pipeline.Result(job),
	})
}

// Failed sends an error message to all date subscribers
func (h *Hub) Failed(job *model.Job) {
	message := "processing failed"
	if job.Error != nil {
		message = *job.Error
	}
	h.send(job.DateKey, model.WSErrorMessage{
		Type:    model.WSMessageTypeError,
		DateKey: job.DateKey,
		JobID:   job.JobID,
		Error: model.WSError{
			Code:    "JOB_FAILED",
			Message: message,
		},
	})
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, dateKey string) {
	client := newClient(dateKey, c, 256)

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-client.done:
				c.WriteMessage(websocket.CloseMessage, []byte{})
				return

			case message := <-client.Send:
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.trySend(data)
		}
	}
}
