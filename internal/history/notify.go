package history

import "sync"

const subscriberBuffer = 16

// notifier fans change events out to subscribers without ever blocking the writer.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Change
}

func (n *notifier) Subscribe() (<-chan Change, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs == nil {
		n.subs = make(map[int]chan Change)
	}
	id := n.next
	n.next++
	ch := make(chan Change, subscriberBuffer)
	n.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (n *notifier) publish(c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- c:
		default:
			// a full buffer already holds undelivered changes for this subscriber
		}
	}
}
