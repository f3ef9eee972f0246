package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Toast kinds.
const (
	Success = "success"
	Error   = "error"
	Info    = "info"
)

// DefaultTTL is how long a toast stays visible unless dismissed first.
const DefaultTTL = 3 * time.Second

// Toast is a short-lived advisory message.
type Toast struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Event is delivered to the hub subscriber when a toast appears or goes
// away.
type Event struct {
	Toast     Toast
	Dismissed bool
}

// Hub is the process-wide notification channel. Producers fire advisories
// and move on; a single consumer renders them. Each toast self-destructs
// after the TTL or on explicit dismissal, whichever comes first.
type Hub struct {
	mu     sync.Mutex
	ttl    time.Duration
	order  []Toast
	timers map[string]*time.Timer
	events chan Event
}

// NewHub creates a hub with the given TTL. A non-positive TTL falls back to
// DefaultTTL.
func NewHub(ttl time.Duration) *Hub {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Hub{
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
		events: make(chan Event, 64),
	}
}

// Events returns the subscriber channel. Delivery is best effort: if the
// consumer falls behind the buffer, events are dropped rather than blocking
// a producer.
func (h *Hub) Events() <-chan Event {
	return h.events
}

// Success fires a success advisory and returns its id.
func (h *Hub) Success(text string) string {
	return h.publish(Success, text)
}

// Error fires an error advisory and returns its id.
func (h *Hub) Error(text string) string {
	return h.publish(Error, text)
}

// Info fires an info advisory and returns its id.
func (h *Hub) Info(text string) string {
	return h.publish(Info, text)
}

// Active returns the currently visible toasts in the order they were fired.
func (h *Hub) Active() []Toast {
	h.mu.Lock()
	defer h.mu.Unlock()
	active := make([]Toast, len(h.order))
	copy(active, h.order)
	return active
}

// Dismiss removes a toast before its TTL expires. Dismissing an unknown or
// already-expired id is a no-op.
func (h *Hub) Dismiss(id string) {
	h.mu.Lock()
	timer, ok := h.timers[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	timer.Stop()
	delete(h.timers, id)
	toast := h.remove(id)
	h.mu.Unlock()

	h.emit(Event{Toast: toast, Dismissed: true})
}

func (h *Hub) publish(kind, text string) string {
	toast := Toast{ID: uuid.NewString(), Kind: kind, Text: text}

	h.mu.Lock()
	h.order = append(h.order, toast)
	h.timers[toast.ID] = time.AfterFunc(h.ttl, func() {
		h.expire(toast.ID)
	})
	h.mu.Unlock()

	h.emit(Event{Toast: toast})
	return toast.ID
}

func (h *Hub) expire(id string) {
	h.mu.Lock()
	if _, ok := h.timers[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.timers, id)
	toast := h.remove(id)
	h.mu.Unlock()

	h.emit(Event{Toast: toast, Dismissed: true})
}

// remove drops a toast from the display order. Callers hold h.mu.
func (h *Hub) remove(id string) Toast {
	var toast Toast
	kept := h.order[:0]
	for _, t := range h.order {
		if t.ID == id {
			toast = t
			continue
		}
		kept = append(kept, t)
	}
	h.order = kept
	return toast
}

func (h *Hub) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
	}
}
