// Package event provides a lightweight notification fan-out for connected
// clients.
//
// Events carry small identifying payloads (session and message IDs, stream
// sequence numbers); clients fetch full records over HTTP after being
// notified. Stream chunks are the one exception and carry their content
// inline, since replaying them is the whole point.
package event

import (
	"sync"

	"github.com/weavechat/weavechat/pkg/utils"
)

// Event is the interface all event types implement.
type Event interface {
	// EventName returns the unique name for this event type (e.g., "chat.streamChunk")
	EventName() string
}

// Listener is a callback function for handling events.
type Listener func(Event)

// Emitter manages event subscriptions and dispatching.
type Emitter struct {
	mu           sync.RWMutex
	nextID       int
	listeners    map[string]map[int]Listener
	allListeners map[int]Listener
}

// NewEmitter creates a new event emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		listeners:    make(map[string]map[int]Listener),
		allListeners: make(map[int]Listener),
	}
}

// On subscribes to a specific event type. Returns an unsubscribe function.
func (e *Emitter) On(eventName string, fn Listener) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	if e.listeners[eventName] == nil {
		e.listeners[eventName] = make(map[int]Listener)
	}
	e.listeners[eventName][id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners[eventName], id)
	}
}

// OnAny subscribes to all events. Returns an unsubscribe function.
func (e *Emitter) OnAny(fn Listener) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.allListeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.allListeners, id)
	}
}

// Emit dispatches an event to all matching listeners.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	// Copy listeners to avoid holding the lock during callbacks.
	specific := make([]Listener, 0, len(e.listeners[ev.EventName()]))
	for _, fn := range e.listeners[ev.EventName()] {
		specific = append(specific, fn)
	}
	all := make([]Listener, 0, len(e.allListeners))
	for _, fn := range e.allListeners {
		all = append(all, fn)
	}
	e.mu.RUnlock()

	utils.GetLogger().Debug("Emitting event", "event", ev.EventName(),
		"specific", len(specific), "wildcard", len(all))

	for _, fn := range specific {
		fn(ev)
	}
	for _, fn := range all {
		fn(ev)
	}
}

// ---- Global Emitter ----

var globalEmitter *Emitter
var globalOnce sync.Once

// Global returns the global event emitter.
func Global() *Emitter {
	globalOnce.Do(func() {
		globalEmitter = NewEmitter()
	})
	return globalEmitter
}

// Emit is a shortcut for Global().Emit(ev).
func Emit(ev Event) {
	Global().Emit(ev)
}

// On is a shortcut for Global().On(eventName, fn).
func On(eventName string, fn Listener) func() {
	return Global().On(eventName, fn)
}
