// Package fanout implements the Inflight Discovery broadcast (C5): a
// single discovery run's events are recorded in order and replayed in
// full to any subscriber that joins late, then streamed live from that
// point on. Go has no built-in equivalent of Rust's tokio::sync::broadcast,
// so this keeps an append-only history plus one delivery channel per
// subscriber, both protected by a single mutex so append-then-publish is
// always observed in the order events were produced (§4.5).
package fanout

import (
	"sync"

	"github.com/agentkube/clustercore/pkg/discovery"
)

// subscriberBuffer is generous enough that a subscriber never blocks a
// publish for a normal-sized discovery run; a slow subscriber falling
// behind live events is expected to drain via its channel, not stall the
// publisher.
const subscriberBuffer = 256

// Fanout is one discovery run's broadcast channel. It is safe for
// concurrent use.
type Fanout struct {
	mu          sync.Mutex
	history     []discovery.Event
	subscribers map[uint64]chan discovery.Event
	nextID      uint64
	done        bool
	seen        map[discovery.NaturalKey]struct{}
}

func New() *Fanout {
	return &Fanout{
		subscribers: make(map[uint64]chan discovery.Event),
		seen:        make(map[discovery.NaturalKey]struct{}),
	}
}

// Publish appends ev to the history and delivers it to every current
// subscriber. Publish after a terminal event (Completed or Failed) is a
// no-op: once a run is done, its broadcast is frozen.
func (f *Fanout) Publish(ev discovery.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return
	}

	if rd, ok := ev.(discovery.ResourceDiscovered); ok {
		key := rd.Resource.NaturalKey()
		if _, dup := f.seen[key]; dup {
			return
		}
		f.seen[key] = struct{}{}
	}

	f.history = append(f.history, ev)

	switch ev.(type) {
	case discovery.Completed, discovery.Failed:
		f.done = true
	}

	for _, ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			// Subscriber is behind its buffer; it will still get the full
			// history on any fresh Subscribe call, so dropping here does
			// not lose data permanently, only live-stream freshness.
		}
	}
}

// Subscribe returns a channel that first replays the full history
// recorded so far, then streams subsequent live events. cancel must be
// called to release the subscriber slot once the caller stops reading.
func (f *Fanout) Subscribe() (ch <-chan discovery.Event, cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	buffered := make(chan discovery.Event, subscriberBuffer+len(f.history))
	for _, ev := range f.history {
		buffered <- ev
	}

	if f.done {
		close(buffered)
		return buffered, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subscribers[id] = buffered

	cancel = func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if ch, ok := f.subscribers[id]; ok {
			delete(f.subscribers, id)
			close(ch)
		}
	}

	return buffered, cancel
}

// Done reports whether this run reached a terminal event.
func (f *Fanout) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}
