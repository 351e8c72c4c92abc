package scheduler

import "github.com/dazedpro/claude-cli-proxy/types"

// queue is a sorted-linear-insertion priority queue keyed by
// (priority, enqueuedAt), as spec §9 sanctions for small queue depths.
type queue struct {
	items []*types.QueueItem
}

func (q *queue) len() int { return len(q.items) }

// insert places item at the position satisfying §3's ordering invariant:
// strictly higher priority first, FIFO within equal priority.
func (q *queue) insert(item *types.QueueItem) {
	i := 0
	for i < len(q.items) && less(q.items[i], item) {
		i++
	}
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = item
}

// less reports whether a dispatches before b. Equal enqueue times count as
// a first, so insert places a new item after existing items it ties with.
func less(a, b *types.QueueItem) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt) || a.EnqueuedAt.Equal(b.EnqueuedAt)
}

// popFront removes and returns the highest-priority, earliest item.
func (q *queue) popFront() *types.QueueItem {
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// removeAt removes the item at index i, preserving order.
func (q *queue) removeAt(i int) {
	q.items = append(q.items[:i], q.items[i+1:]...)
}
