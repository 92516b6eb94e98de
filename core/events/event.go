package events

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. the RPC event
// stream feeding the UI).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into every engine until the daemon installs the bus.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
