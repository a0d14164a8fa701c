package hub

import (
	"sync"

	"market-depth/src/models"
)

// -----------------------------------------------------------------------------
// Overflow Policy
// -----------------------------------------------------------------------------

// OverflowPolicy selects what a saturated client queue does with the next
// message. Whatever the policy, a push never blocks the producer.
type OverflowPolicy int

const (
	// DropNewest discards the incoming message.
	DropNewest OverflowPolicy = iota
	// DropOldest evicts the oldest queued message to make room.
	DropOldest
	// Disconnect drops the message and asks the owning session to close.
	Disconnect
)

// ParseOverflowPolicy maps a config string to a policy, defaulting to
// DropNewest for anything unrecognized.
func ParseOverflowPolicy(s string) OverflowPolicy {
	switch s {
	case "drop_oldest":
		return DropOldest
	case "disconnect":
		return Disconnect
	default:
		return DropNewest
	}
}

// -----------------------------------------------------------------------------
// Queue
// -----------------------------------------------------------------------------

// Queue is the bounded outbound queue for one client: multiple producers
// (feed broadcast, snapshot-on-subscribe), exactly one consumer (the
// session's write loop). Consuming from C() preserves enqueue order.
type Queue struct {
	ch         chan *models.MMarketDataMessage
	policy     OverflowPolicy
	onOverflow func()

	mu      sync.Mutex
	closed  bool
	dropped int64
}

// -----------------------------------------------------------------------------

// NewQueue creates a queue with the given capacity. onOverflow is invoked
// on saturation under the Disconnect policy; it may be nil otherwise.
func NewQueue(size int, policy OverflowPolicy, onOverflow func()) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		ch:         make(chan *models.MMarketDataMessage, size),
		policy:     policy,
		onOverflow: onOverflow,
	}
}

// -----------------------------------------------------------------------------

// Push enqueues without ever blocking. Returns false when the message was
// dropped (queue full under DropNewest/Disconnect, or queue closed).
func (q *Queue) Push(msg *models.MMarketDataMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	select {
	case q.ch <- msg:
		return true
	default:
	}

	switch q.policy {
	case DropOldest:
		select {
		case <-q.ch:
		default:
		}
		select {
		case q.ch <- msg:
			q.dropped++
			return true
		default:
			q.dropped++
			return false
		}
	case Disconnect:
		q.dropped++
		if q.onOverflow != nil {
			q.onOverflow()
		}
		return false
	default: // DropNewest
		q.dropped++
		return false
	}
}

// -----------------------------------------------------------------------------

// C returns the consumer side. The channel is closed by Close.
func (q *Queue) C() <-chan *models.MMarketDataMessage {
	return q.ch
}

// -----------------------------------------------------------------------------

// Close shuts the queue; subsequent pushes are dropped. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// -----------------------------------------------------------------------------

// Dropped returns how many messages were lost to saturation.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
