package sse

import (
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

/*
SSEBroker fans events out to subscribers. A subscriber may ask for the
events of a single request key, or for everything. Each event is sent as

data: {json}\n\n
*/
type SSEBroker struct {
	mu        sync.RWMutex
	clients   map[chan []byte]string
	closed    bool
	heartbeat time.Duration
}

func NewSSEBroker() *SSEBroker {
	return &SSEBroker{
		clients:   make(map[chan []byte]string),
		heartbeat: 25 * time.Second,
	}
}

/*
NewTestSSEBroker uses a short heartbeat.
*/
func NewTestSSEBroker() *SSEBroker {
	broker := NewSSEBroker()
	broker.heartbeat = 100 * time.Millisecond
	return broker
}

/*
Subscribe streams events to the client until it disconnects. The
requestKey query parameter narrows the stream to one request.
*/
func (broker *SSEBroker) Subscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)

	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, ok := broker.add(r.URL.Query().Get("requestKey"))

	if !ok {
		http.Error(w, "broker closed", http.StatusGone)
		return
	}

	ticker := time.NewTicker(broker.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			broker.remove(ch)
			return
		case msg, open := <-ch:
			if !open {
				return
			}

			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()
		}
	}
}

func (broker *SSEBroker) add(filter string) (chan []byte, bool) {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return nil, false
	}

	ch := make(chan []byte, 16)
	broker.clients[ch] = filter

	return ch, true
}

/*
Broadcast sends v to every subscriber of key and to every unfiltered
subscriber. Slow subscribers miss events rather than block the sender.
*/
func (broker *SSEBroker) Broadcast(key string, v any) error {
	msg, err := json.Marshal(v)

	if err != nil {
		return err
	}

	broker.mu.RLock()
	defer broker.mu.RUnlock()

	if broker.closed {
		return nil
	}

	for ch, filter := range broker.clients {
		if filter != "" && filter != key {
			continue
		}

		select {
		case ch <- msg:
		default:
		}
	}

	return nil
}

func (broker *SSEBroker) Subscribers() int {
	broker.mu.RLock()
	defer broker.mu.RUnlock()

	return len(broker.clients)
}

/*
Close disconnects all clients and refuses new ones.
*/
func (broker *SSEBroker) Close() {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return
	}

	broker.closed = true

	for ch := range broker.clients {
		close(ch)
	}

	broker.clients = map[chan []byte]string{}
}

func (broker *SSEBroker) remove(ch chan []byte) {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if _, ok := broker.clients[ch]; ok {
		delete(broker.clients, ch)
		close(ch)
	}
}
