package events

import "taxledger/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Renderable events can be flattened into the attribute form consumed by the
// journal and RPC layers.
type Renderable interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events until the owning operation either commits (Flush) or
// aborts (Reset). Emission order is preserved.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(e Event) {
	if b == nil || e == nil {
		return
	}
	b.pending = append(b.pending, e)
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.pending)
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.pending = nil
}

// Flush forwards the buffered events to dst in order and clears the buffer.
func (b *Buffer) Flush(dst Emitter) {
	if b == nil {
		return
	}
	pending := b.pending
	b.pending = nil
	if dst == nil {
		return
	}
	for _, e := range pending {
		dst.Emit(e)
	}
}

// Fanout delivers every event to each of its emitters in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(e Event) {
	for _, dst := range f {
		if dst != nil {
			dst.Emit(e)
		}
	}
}

// Render converts an event into its attribute form, returning nil for events
// that do not support rendering.
func Render(e Event) *types.Event {
	if r, ok := e.(Renderable); ok {
		return r.Event()
	}
	return nil
}
