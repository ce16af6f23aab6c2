package controlsurface

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/agentkernel/core/internal/hub"
)

const wsSendBufferSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The control surface is typically fronted by the deploying operator's
	// own reverse proxy; origin policy is enforced there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan hub.Message
}

// EventStream fans out Hub messages to connected WebSocket clients (the
// §6.5 monitor surface's push channel).
type EventStream struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

// NewEventStream constructs an empty EventStream.
func NewEventStream() *EventStream {
	return &EventStream{clients: make(map[*wsClient]bool)}
}

// ServeHTTP upgrades the connection and registers it for broadcast.
func (es *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[EVENTSTREAM] upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan hub.Message, wsSendBufferSize)}
	es.mu.Lock()
	es.clients[client] = true
	es.mu.Unlock()

	go es.writePump(client)
	go es.readPump(client)
}

// Broadcast pushes a message to every connected client, dropping it for
// any client whose buffer is full rather than blocking the publisher.
func (es *EventStream) Broadcast(msg hub.Message) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	for c := range es.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("[EVENTSTREAM] dropping event for slow client")
		}
	}
}

// Pipe subscribes to src (e.g. a hub.Hub topic or global channel) and
// forwards every message to connected clients until src closes.
func (es *EventStream) Pipe(src <-chan hub.Message) {
	go func() {
		for msg := range src {
			es.Broadcast(msg)
		}
	}()
}

func (es *EventStream) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			es.remove(c)
			return
		}
	}
}

// readPump drains and discards inbound frames (the stream is one-way),
// detecting client disconnects.
func (es *EventStream) readPump(c *wsClient) {
	defer es.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (es *EventStream) remove(c *wsClient) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if _, ok := es.clients[c]; ok {
		delete(es.clients, c)
		close(c.send)
	}
}

// ClientCount reports the number of currently-connected clients.
func (es *EventStream) ClientCount() int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return len(es.clients)
}
