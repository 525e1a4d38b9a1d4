package streaming

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// subscriberBuffer bounds each subscription; a slow reader loses events
// rather than stalling the task runner.
const subscriberBuffer = 64

type subscription struct {
	events  chan TaskEvent
	filter  EventFilter
	dropped atomic.Uint64
}

func (s *subscription) wants(e TaskEvent) bool {
	if s.filter.TaskID != "" && s.filter.TaskID != e.TaskID {
		return false
	}
	return len(s.filter.States) == 0 || slices.Contains(s.filter.States, e.State)
}

// deliver never blocks. When the buffer is full an intermediate event is
// dropped, but a terminal event evicts the oldest buffered one so watchers
// always learn how a task ended.
func (s *subscription) deliver(e TaskEvent) {
	select {
	case s.events <- e:
		return
	default:
	}
	if e.State.Terminal() {
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- e:
		default:
		}
	}
	s.dropped.Add(1)
}

// MemoryHub fans task events out to in-process subscribers.
type MemoryHub struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscription
	nextID  atomic.Uint64
	dropped atomic.Uint64 // from cancelled subscriptions
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[uint64]*subscription)}
}

func (h *MemoryHub) Publish(ctx context.Context, event TaskEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.wants(event) {
			sub.deliver(event)
		}
	}
	return nil
}

// Subscribe registers a filtered subscription. The returned cancel func
// closes the channel and may be called more than once.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan TaskEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	id := h.nextID.Add(1)
	sub := &subscription{events: make(chan TaskEvent, subscriberBuffer), filter: filter}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			h.dropped.Add(sub.dropped.Load())
			close(sub.events)
		})
	}
	return sub.events, cancel, nil
}

// Subscribers returns the number of active subscriptions.
func (h *MemoryHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events were not delivered because a subscriber
// fell behind, over the hub's lifetime.
func (h *MemoryHub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := h.dropped.Load()
	for _, sub := range h.subs {
		n += sub.dropped.Load()
	}
	return n
}

var _ EventHub = (*MemoryHub)(nil)
