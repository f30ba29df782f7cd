// Package events provides a small synchronous event emitter used by the
// connection layer to fan out lifecycle and message notifications to
// registered listeners.
//
// The emitter is generic over both the event kind and the listener function
// type, so each payload shape gets its own fully typed registry. Listeners
// run synchronously on the emitting goroutine, in registration order, and a
// panicking listener never prevents the remaining listeners from running.
package events

import "sync"

// ListenerID identifies a registered listener within one Emitter. Function
// values are not comparable in Go, so removal works through the id returned
// by On rather than by listener reference.
type ListenerID uint64

type entry[F any] struct {
	id ListenerID
	fn F
}

// Emitter maps event kinds to ordered listener lists. The zero value is not
// usable; construct with NewEmitter.
type Emitter[K comparable, F any] struct {
	mu        sync.RWMutex
	nextID    ListenerID
	listeners map[K][]entry[F]

	// onPanic receives values recovered from panicking listeners. May be nil.
	onPanic func(recovered any)
}

// NewEmitter creates an empty Emitter. onPanic, if non-nil, is invoked with
// the recovered value whenever a listener panics during Emit.
func NewEmitter[K comparable, F any](onPanic func(recovered any)) *Emitter[K, F] {
	return &Emitter[K, F]{
		listeners: make(map[K][]entry[F]),
		onPanic:   onPanic,
	}
}

// On registers a listener for the given event kind and returns its id.
// Listeners are invoked in registration order.
func (e *Emitter[K, F]) On(kind K, fn F) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[kind] = append(e.listeners[kind], entry[F]{id: id, fn: fn})
	return id
}

// Off removes the listener with the given id from the event kind. Removing
// an id that was never registered, or was already removed, is a no-op.
func (e *Emitter[K, F]) Off(kind K, id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ls := e.listeners[kind]
	for i, ent := range ls {
		if ent.id == id {
			e.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// Len returns the number of listeners registered for the given kind.
func (e *Emitter[K, F]) Len(kind K) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[kind])
}

// Emit invokes every listener registered for the event kind, synchronously
// and in registration order. The invoke callback receives each listener
// function and is responsible for calling it with the event's arguments.
//
// Emission operates on a snapshot of the listener list taken at emit time,
// so a listener may register or remove listeners, or tear the connection
// down, without corrupting the fan-out in progress.
func (e *Emitter[K, F]) Emit(kind K, invoke func(fn F)) {
	e.mu.RLock()
	ls := e.listeners[kind]
	snapshot := make([]entry[F], len(ls))
	copy(snapshot, ls)
	e.mu.RUnlock()

	for _, ent := range snapshot {
		e.call(invoke, ent.fn)
	}
}

func (e *Emitter[K, F]) call(invoke func(fn F), fn F) {
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(r)
		}
	}()
	invoke(fn)
}

// Close removes all listeners.
func (e *Emitter[K, F]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = make(map[K][]entry[F])
}
