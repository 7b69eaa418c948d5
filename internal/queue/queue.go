package queue

import (
	"errors"
	"fmt"
	"sync"

	"luxe_sniper/internal/registry"
)

// ErrNotConnected is returned when a chat tries to start investing
// without a bound wallet. It is a user error, surfaced in chat, never
// fatal.
var ErrNotConnected = errors.New("wallet not connected")

// ChangeListener is told after every successful membership change.
// The snapshotter hangs off this hook.
type ChangeListener func(members []int64)

// Queue is the ordered set of accounts subscribed to the shared
// scanner. Insertion order is dispatch priority: the first chat to
// press start is the first served on every signal.
//
// The old global-array-reassigned-everywhere pattern this replaces was
// the biggest source of drift in the product; membership now changes
// only through Enqueue and Dequeue.
type Queue struct {
	mu       sync.RWMutex
	order    []int64
	present  map[int64]bool
	registry *registry.Registry
	onChange ChangeListener
}

func New(reg *registry.Registry) *Queue {
	return &Queue{
		present:  make(map[int64]bool),
		registry: reg,
	}
}

// OnChange registers the membership-change hook. At most one listener.
func (q *Queue) OnChange(fn ChangeListener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onChange = fn
}

// Enqueue appends the account if absent. The account must hold a bound
// credential at this moment; it may go stale later and dispatch will
// skip it then.
func (q *Queue) Enqueue(id int64) error {
	acct, err := q.registry.Get(id)
	if err != nil || !acct.Connected {
		return fmt.Errorf("%w: account %d", ErrNotConnected, id)
	}

	q.mu.Lock()
	if q.present[id] {
		q.mu.Unlock()
		return nil
	}
	q.present[id] = true
	q.order = append(q.order, id)
	members, fn := q.snapshotLocked()
	q.mu.Unlock()

	if fn != nil {
		fn(members)
	}
	return nil
}

// Dequeue removes the account if present. Removing an absent account
// is a no-op and fires no change notification.
func (q *Queue) Dequeue(id int64) {
	q.mu.Lock()
	if !q.present[id] {
		q.mu.Unlock()
		return
	}
	delete(q.present, id)
	for i, member := range q.order {
		if member == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	members, fn := q.snapshotLocked()
	q.mu.Unlock()

	if fn != nil {
		fn(members)
	}
}

// Clear empties the queue, used when the scanner process dies.
// Returns the members that were subscribed so callers can notify them.
func (q *Queue) Clear() []int64 {
	q.mu.Lock()
	dropped := q.order
	q.order = nil
	q.present = make(map[int64]bool)
	members, fn := q.snapshotLocked()
	q.mu.Unlock()

	if fn != nil {
		fn(members)
	}
	return dropped
}

// Members returns a snapshot of the membership in priority order.
// The slice is a copy: dispatch can iterate it while chats start and
// stop without ever observing a half-applied change.
func (q *Queue) Members() []int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]int64(nil), q.order...)
}

// Contains reports current membership, used by the menu renderer.
func (q *Queue) Contains(id int64) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.present[id]
}

// Len reports the subscriber count.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.order)
}

func (q *Queue) snapshotLocked() ([]int64, ChangeListener) {
	return append([]int64(nil), q.order...), q.onChange
}
