package vault

import (
	"sync"

	"github.com/google/uuid"
)

// Vault event names. Trigger accepts arbitrary names for custom events.
const (
	EventCreate = "create"
	EventModify = "modify"
	EventDelete = "delete"
	EventRename = "rename"
)

// EventCallback receives the event payload. For the built-in events the
// arguments are: create/modify/delete → (*File); rename → (*File, oldPath).
type EventCallback func(args ...any)

// EventRef is the unsubscribe capability returned by On. Each registration
// gets its own ref, so the same callback can be registered more than once
// and removed individually.
type EventRef struct {
	id    string
	event string
	bus   *eventBus
}

// Unsubscribe removes this registration. Safe to call from within a
// callback during dispatch and safe to call twice.
func (r *EventRef) Unsubscribe() {
	if r == nil || r.bus == nil {
		return
	}
	r.bus.off(r.event, r.id)
}

type busListener struct {
	id string
	fn EventCallback
}

// eventBus dispatches synchronously. The listener list is snapshotted at
// dispatch start, so subscribing or unsubscribing from inside a callback
// never affects the trigger in flight: listeners added during dispatch fire
// on the next trigger. A panicking listener is recovered per-listener so
// the remaining listeners and the triggering operation still complete.
type eventBus struct {
	mu        sync.Mutex
	listeners map[string][]*busListener
}

func newEventBus() *eventBus {
	return &eventBus{listeners: make(map[string][]*busListener)}
}

func (b *eventBus) on(event string, fn EventCallback) *EventRef {
	ref := &EventRef{id: uuid.NewString(), event: event, bus: b}
	b.mu.Lock()
	b.listeners[event] = append(b.listeners[event], &busListener{id: ref.id, fn: fn})
	b.mu.Unlock()
	return ref
}

func (b *eventBus) off(event, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.listeners[event]
	for i, l := range list {
		if l.id == id {
			b.listeners[event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (b *eventBus) trigger(event string, args ...any) {
	b.mu.Lock()
	snapshot := make([]*busListener, len(b.listeners[event]))
	copy(snapshot, b.listeners[event])
	b.mu.Unlock()

	for _, l := range snapshot {
		func() {
			defer func() { _ = recover() }()
			l.fn(args...)
		}()
	}
}
