// Package sse implements a Server-Sent Events broker that tells gallery
// viewers when public mind maps or templates change.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/mindmaps/internal/mindmap"
)

// Event types emitted alongside the mind-map lifecycle kinds.
const (
	TypeGalleryUpdated   = "gallery.updated"
	TypeTemplatesUpdated = "templates.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type mindMapEventReq struct {
	kind string
	id   string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + gallery throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	galleryMin  time.Duration
	allowOrigin string

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	mindMapCh     chan mindMapEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given gallery throttle interval.
// allowOrigin is sent as Access-Control-Allow-Origin; empty means "*".
func NewBroker(galleryThrottle time.Duration, allowOrigin string) *Broker {
	if galleryThrottle <= 0 {
		galleryThrottle = 2 * time.Second
	}
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	b := &Broker{
		galleryMin:    galleryThrottle,
		allowOrigin:   allowOrigin,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		mindMapCh:     make(chan mindMapEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGallery time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.mindMapCh:
			broadcast(Event{Type: req.kind, Data: map[string]string{"id": req.id}})

			now := time.Now()
			if now.Sub(lastGallery) >= b.galleryMin {
				lastGallery = now
				broadcast(Event{Type: TypeGalleryUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishMindMapEvent publishes a mind-map change and a throttled
// gallery.updated event.
func (b *Broker) PublishMindMapEvent(kind mindmap.ChangeKind, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.mindMapCh <- mindMapEventReq{kind: string(kind), id: id}:
	case <-b.stopped:
	}
}

// MindMapChanged implements mindmap.Notifier. Changes that never touch a
// public document are not announced.
func (b *Broker) MindMapChanged(c mindmap.Change) {
	if !c.Public && !c.WasPublic {
		return
	}
	kind := c.Kind
	if c.Kind == mindmap.Updated && !c.Public {
		// Unpublished maps leave the gallery.
		kind = mindmap.Deleted
	}
	b.PublishMindMapEvent(kind, c.ID)
}

// PublishTemplatesUpdated announces a template library re-sync.
func (b *Broker) PublishTemplatesUpdated(changed int) {
	b.Publish(Event{Type: TypeTemplatesUpdated, Data: map[string]int{"changed": changed}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", b.allowOrigin)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

var _ mindmap.Notifier = (*Broker)(nil)
