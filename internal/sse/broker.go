// Package sse streams load-state transitions to UI surfaces as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
)

// Event is one SSE message addressed to a surface.
type Event struct {
	Surface string `json:"-"`
	Type    string `json:"type"`
	Data    any    `json:"data"`
}

type subscription struct {
	ch      chan []byte
	surface string
}

// Broker fans events out to the subscribers of each surface.
//
// A single goroutine owns the subscriber set; public methods talk to it over
// channels.
type Broker struct {
	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	closeSurface  chan string
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

type countReq struct {
	surface string
	resp    chan int
}

// NewBroker starts a broker.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		closeSurface:  make(chan string, 16),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.surface

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			payload, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
			for ch, surface := range clients {
				if surface != event.Surface {
					continue
				}
				select {
				case ch <- raw:
				default:
					// Slow client; drop rather than stall the loop.
				}
			}

		case surface := <-b.closeSurface:
			for ch, s := range clients {
				if s == surface {
					delete(clients, ch)
					close(ch)
				}
			}

		case req := <-b.countReqCh:
			n := 0
			for _, s := range clients {
				if req.surface == "" || s == req.surface {
					n++
				}
			}
			req.resp <- n
		}
	}
}

// Close stops the broker and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client for surface's events.
func (b *Broker) Subscribe(surface string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, surface: surface}:
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

// ClientCount returns the number of subscribers of surface, or of all
// surfaces when surface is empty.
func (b *Broker) ClientCount(surface string) int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- countReq{surface: surface, resp: resp}:
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

// Publish queues an event for the subscribers of event.Surface.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishState emits a "resource.<status>" event carrying state.
func (b *Broker) PublishState(surface, status string, state any) {
	b.Publish(Event{Surface: surface, Type: "resource." + status, Data: state})
}

// CloseSurface disconnects every subscriber of surface.
func (b *Broker) CloseSurface(surface string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.closeSurface <- surface:
	case <-b.stopped:
	}
}

// ServeHTTP streams events for the surface named by the "surface" query
// parameter (GET /api/events?surface=<id>).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	surface := r.URL.Query().Get("surface")
	if surface == "" {
		http.Error(w, "surface is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(surface)
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
