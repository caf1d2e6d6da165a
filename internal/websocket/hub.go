// Package websocket provides WebSocket connection management and message
// fanout for the guest portal and admin console.
package websocket

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// TopicAll receives every message regardless of topic. Admin console clients
// subscribe to it.
const TopicAll = "*"

type envelope struct {
	topic string
	data  []byte
}

// Hub maintains the set of active WebSocket clients and routes messages by
// topic. A guest portal client subscribes to its own session topic; the admin
// console subscribes to everything.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client

	mu  sync.RWMutex
	log *logrus.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run starts the hub's main event loop.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.WithField("total", total).Debug("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.WithField("total", total).Debug("WebSocket client disconnected")

		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.subscribed(env.topic) {
					continue
				}
				select {
				case client.send <- env.data:
				default:
					// Client send buffer full, close connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish sends a message to every client subscribed to the topic.
func (h *Hub) Publish(topic string, data []byte) {
	select {
	case h.broadcast <- envelope{topic: topic, data: data}:
	default:
		h.log.Warn("Broadcast channel full, dropping message")
	}
}

// Send delivers a message to one client, outside topic fanout. Used for
// request/response frames like pong. Membership is checked under the hub lock
// so a concurrent disconnect cannot close the channel mid-send.
func (h *Hub) Send(client *Client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client represents a WebSocket client connection with its topic set.
type Client struct {
	hub    *Hub
	topics map[string]bool
	send   chan []byte
}

// NewClient creates a client subscribed to the given topics. A client with
// the TopicAll topic receives every message.
func NewClient(hub *Hub, topics ...string) *Client {
	set := make(map[string]bool, len(topics))
	for _, topic := range topics {
		set[topic] = true
	}
	return &Client{
		hub:    hub,
		topics: set,
		send:   make(chan []byte, 256),
	}
}

// Send returns the send channel for the client.
func (c *Client) Send() chan []byte {
	return c.send
}

func (c *Client) subscribed(topic string) bool {
	return c.topics[TopicAll] || c.topics[topic]
}
