package memory

import (
	"context"
	"sync"
)

// Notifier is an in-process topic fan-out used by document stores when no
// Redis pub/sub is configured. Signals are coalesced: a slow subscriber sees
// at least one pending signal, not one per publish.
type Notifier struct {
	mu     sync.RWMutex
	topics map[string]map[chan struct{}]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{topics: make(map[string]map[chan struct{}]struct{})}
}

func (n *Notifier) Publish(_ context.Context, topic string) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.topics[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *Notifier) Subscribe(_ context.Context, topic string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.topics[topic] == nil {
		n.topics[topic] = make(map[chan struct{}]struct{})
	}
	n.topics[topic][ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.topics[topic][ch]; ok {
			delete(n.topics[topic], ch)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel, nil
}
