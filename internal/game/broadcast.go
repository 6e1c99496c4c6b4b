package game

import "sync"

// subscriberBuffer is the per-subscriber channel depth. Snapshots are
// full states, so dropping the oldest buffered one on overflow loses
// nothing a subscriber cannot recover from the next snapshot.
const subscriberBuffer = 16

// broadcaster fans full TableState snapshots out to any number of
// subscribers. A slow subscriber never blocks the publisher: its oldest
// buffered snapshot is dropped to make room.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]chan TableState
	nextID uint64
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]chan TableState)}
}

// subscribe registers a new subscriber and returns its id and channel.
// The channel is closed when the table reaches GAME_OVER or the
// subscriber is removed.
func (b *broadcaster) subscribe() (uint64, <-chan TableState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan TableState, subscriberBuffer)
	if b.closed {
		close(ch)
		return 0, ch
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	return id, ch
}

// unsubscribe removes a subscriber and closes its channel.
func (b *broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// publish delivers a snapshot to every subscriber without ever blocking.
// Publishers call this while holding the table lock, which is what makes
// every subscriber observe the same snapshot order.
func (b *broadcaster) publish(s TableState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
			// Buffer full: drop the oldest snapshot and retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// close terminates every subscription. Further publishes are no-ops.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// count reports the number of live subscribers.
func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
