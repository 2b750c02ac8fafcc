// Package realtime streams run lifecycle events to browsers over SSE.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Run lifecycle event names
const (
	EventRunStarted  = "run.started"
	EventRunFinished = "run.finished"
	EventRunFailed   = "run.failed"
	EventRunSkipped  = "run.skipped"
)

// RunEvent is the payload of every run lifecycle event
type RunEvent struct {
	RunID    string    `json:"run_id"`
	Tenant   string    `json:"tenant"`
	At       time.Time `json:"at"`
	Articles int       `json:"articles,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Broker handles Server-Sent Events (SSE) clients and broadcasting
type Broker struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        logrus.FieldLogger
}

// NewBroker creates a new SSE broker
func NewBroker(log logrus.FieldLogger) *Broker {
	return &Broker{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 100),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the broker loop; it returns after Stop
func (b *Broker) Run() {
	for {
		select {
		case <-b.done:
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client)
			}
			b.mu.Unlock()
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			n := len(b.clients)
			b.mu.Unlock()
			b.log.WithField("clients", n).Debug("SSE client connected")

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
			n := len(b.clients)
			b.mu.Unlock()
			b.log.WithField("clients", n).Debug("SSE client disconnected")

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
					// Skip if client buffer is full to prevent blocking
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Stop ends the broker loop and disconnects every client
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

// Clients returns the number of connected clients
func (b *Broker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientChan := make(chan []byte, 10)
	select {
	case b.register <- clientChan:
	case <-b.done:
		return
	case <-r.Context().Done():
		return
	}

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			select {
			case b.unregister <- clientChan:
			case <-b.done:
			}
			return
		case msg, open := <-clientChan:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Broadcast sends a message to all connected clients
func (b *Broker) Broadcast(event string, payload interface{}) {
	jsonBytes, err := json.Marshal(message{Event: event, Payload: payload})
	if err != nil {
		b.log.WithError(err).Error("Error marshalling broadcast message")
		return
	}

	select {
	case b.broadcast <- jsonBytes:
	default:
		// Drop if broadcast buffer full
	}
}
