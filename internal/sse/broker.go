// Package sse streams index changes to connected clients as Server-Sent
// Events. Per-note events are sent as they happen; bursts (a vault sync, a
// purge) are also summarised into one index.changed event per window.
// Frames carry sequential ids so a reconnecting client can resume with
// Last-Event-ID from a short in-memory history.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/vaultvec/internal/checksum"
)

// Event types.
const (
	TypeNoteIndexed   = "note.indexed"
	TypeNotePurged    = "note.purged"
	TypeIndexChanged  = "index.changed"
	TypeSyncCompleted = "sync.completed"
)

const (
	defaultChangeWindow = 2 * time.Second
	keepAliveInterval   = 25 * time.Second
	clientBuffer        = 64
	historySize         = 128

	// MaxSummaryPaths caps ChangeSummary.Paths.
	MaxSummaryPaths = 20
)

// Event is one message to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteEvent is the payload of note.indexed and note.purged. ID is the
// vector-store id of the note.
type NoteEvent struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

// ChangeSummary is the payload of index.changed: everything that changed
// since the previous summary.
type ChangeSummary struct {
	Indexed   int      `json:"indexed"`
	Purged    int      `json:"purged"`
	Paths     []string `json:"paths"`
	Truncated bool     `json:"truncated,omitempty"`
}

func (s *ChangeSummary) add(kind, path string, seen map[string]struct{}) {
	switch kind {
	case "indexed":
		s.Indexed++
	case "purged":
		s.Purged++
	}
	if _, dup := seen[path]; dup {
		return
	}
	seen[path] = struct{}{}
	if len(s.Paths) == MaxSummaryPaths {
		s.Truncated = true
		return
	}
	s.Paths = append(s.Paths, path)
}

type noteChange struct {
	kind string
	path string
}

type subscription struct {
	ch     chan []byte
	lastID uint64
}

type frame struct {
	id  uint64
	raw []byte
}

// Broker fans events out to SSE clients.
//
// One loop goroutine owns the client set, the pending summary and the
// history ring; public methods talk to it over channels.
type Broker struct {
	window    time.Duration
	keepAlive time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan noteChange
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one index.changed summary
// per window.
func NewBroker(window time.Duration) *Broker {
	if window <= 0 {
		window = defaultChangeWindow
	}

	b := &Broker{
		window:        window,
		keepAlive:     keepAliveInterval,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan noteChange, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	var (
		clients = make(map[chan []byte]struct{})
		history []frame
		seq     uint64

		pending   *ChangeSummary
		seenPaths map[string]struct{}
		flush     <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		f := frame{id: seq, raw: fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload)}
		if len(history) == historySize {
			history = history[1:]
		}
		history = append(history, f)

		for ch := range clients {
			select {
			case ch <- f.raw:
			default:
				// Slow client: it can catch up with Last-Event-ID.
			}
		}
	}

	flushSummary := func() {
		if pending != nil {
			broadcast(Event{Type: TypeIndexChanged, Data: pending})
		}
		pending, seenPaths, flush = nil, nil, nil
	}

	onChange := func(c noteChange) {
		data := NoteEvent{Path: c.path, ID: checksum.PathID(c.path)}
		switch c.kind {
		case "indexed":
			broadcast(Event{Type: TypeNoteIndexed, Data: data})
		case "purged":
			broadcast(Event{Type: TypeNotePurged, Data: data})
		default:
			return
		}
		if pending == nil {
			pending = &ChangeSummary{Paths: []string{}}
			seenPaths = make(map[string]struct{})
			flush = time.After(b.window)
		}
		pending.add(c.kind, c.path, seenPaths)
	}

	for {
		select {
		case <-b.stopCh:
			// Deliver what was queued before Close.
			for drained := false; !drained; {
				select {
				case event := <-b.publishCh:
					broadcast(event)
				case c := <-b.changeCh:
					onChange(c)
				default:
					drained = true
				}
			}
			flushSummary()
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = struct{}{}
			if sub.lastID > 0 {
				replay(sub.ch, history, sub.lastID)
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case c := <-b.changeCh:
			onChange(c)

		case <-flush:
			flushSummary()

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// replay sends the frames after lastID that still fit in the client buffer.
func replay(ch chan []byte, history []frame, lastID uint64) {
	start := len(history)
	for start > 0 && history[start-1].id > lastID {
		start--
	}
	missed := history[start:]
	if len(missed) > cap(ch) {
		missed = missed[len(missed)-cap(ch):]
	}
	for _, f := range missed {
		ch <- f.raw
	}
}

// Close flushes the pending summary, stops the loop and closes every
// client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client that receives events from now on.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeFrom(0)
}

// SubscribeFrom adds a client and first replays the retained events with an
// id greater than lastID.
func (b *Broker) SubscribeFrom(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, lastID: lastID}:
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

// PublishNoteEvent matches index.EventCallback. kind is "indexed" or
// "purged"; other kinds are ignored. The change also counts towards the
// next index.changed summary.
func (b *Broker) PublishNoteEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- noteChange{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events (GET /api/events). A Last-Event-ID header
// resumes after that event.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeFrom(lastID)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
