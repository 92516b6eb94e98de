package events

import (
	"sync"

	"github.com/google/uuid"

	"blockmarket/core/types"
)

// Envelope wraps a committed event with a unique identifier and a monotonic
// sequence number so re-connecting subscribers can deduplicate.
type Envelope struct {
	ID       string       `json:"id"`
	Sequence uint64       `json:"sequence"`
	Event    *types.Event `json:"event"`
}

// Bus is an in-process emitter that fans committed events out to registered
// subscribers. Emission happens strictly after a successful state commit; a
// slow subscriber never blocks the ledger, its channel simply drops the
// oldest pending delivery.
type Bus struct {
	mu       sync.Mutex
	seq      uint64
	nextSub  uint64
	subs     map[uint64]chan Envelope
	capacity int
}

// NewBus creates a bus whose per-subscriber buffers hold capacity envelopes.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 64
	}
	return &Bus{
		subs:     make(map[uint64]chan Envelope),
		capacity: capacity,
	}
}

// Emit implements the Emitter interface. Events that do not carry a payload
// are ignored.
func (b *Bus) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok || carrier.Event() == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	env := Envelope{
		ID:       uuid.NewString(),
		Sequence: b.seq,
		Event:    carrier.Event(),
	}
	for _, ch := range b.subs {
		for {
			select {
			case ch <- env:
			default:
				// Buffer full: drop the oldest delivery and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribe registers a new subscriber and returns its delivery channel plus
// a cancel function. After cancel returns the channel is closed.
func (b *Bus) Subscribe() (<-chan Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	ch := make(chan Envelope, b.capacity)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
