package filter

import "sync"

// Broadcaster is an explicit pub/sub channel for active-dataset changes.
// Dependents subscribe and re-derive their own state when the source of
// truth moves, instead of listening for ambient events.
type Broadcaster struct {
	mu   sync.Mutex
	subs []chan ActiveDataset
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe returns a buffered channel receiving every published dataset
// change, plus an unsubscribe function.
func (b *Broadcaster) Subscribe() (<-chan ActiveDataset, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ActiveDataset, 8)
	b.subs = append(b.subs, ch)

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers ds to every subscriber. A subscriber that has fallen
// behind its buffer is skipped rather than blocking the publisher.
func (b *Broadcaster) Publish(ds ActiveDataset) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- ds:
		default:
		}
	}
}
