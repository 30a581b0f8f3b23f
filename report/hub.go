package report

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event types sent to websocket watchers.
const (
	EventSolution = "solution"
	EventSolvable = "solvable"
)

// Event is the JSON frame sent to watchers.
type Event struct {
	Type   string `json:"type"`
	Edges  int    `json:"edges"`
	Record string `json:"record"`
	Ts     int64  `json:"ts"`
}

const (
	watcherBuffer = 16
	writeTimeout  = 5 * time.Second
)

// Hub streams findings to websocket watchers. A watcher that connects
// late first receives the most recent event. Slow watchers drop events
// rather than stall the supervisor.
type Hub struct {
	mu       sync.Mutex
	watchers map[chan Event]struct{}
	last     *Event
	closed   bool
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[chan Event]struct{})}
}

func (h *Hub) Solution(edges int, record string) {
	h.publish(Event{Type: EventSolution, Edges: edges, Record: record, Ts: time.Now().UnixMilli()})
}

func (h *Hub) Solvable() {
	h.publish(Event{Type: EventSolvable, Ts: time.Now().UnixMilli()})
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = &ev
	for ch := range h.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Watchers returns the number of connected watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// Close ends every watcher stream with a normal closure.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.watchers {
		close(ch)
		delete(h.watchers, ch)
	}
}

func (h *Hub) subscribe() chan Event {
	ch := make(chan Event, watcherBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	if h.last != nil {
		ch <- *h.last
	}
	h.watchers[ch] = struct{}{}
	return ch
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watchers, ch)
}

// ServeHTTP upgrades the request and streams events until the watcher
// goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("report: accept: %v", err)
		return
	}
	defer conn.CloseNow()

	events := h.subscribe()
	defer h.unsubscribe(events)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "supervisor stopped")
				return
			}
			if err := write(ctx, conn, ev); err != nil {
				log.Printf("report: watcher gone: %v", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
