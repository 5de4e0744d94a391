package scheduler

// Queue is an array-backed binary min-heap of Events ordered by Less.
//
// For every non-root index i, Less(nodes[i], nodes[parent(i)]) is false.
// Events with equal keys have no defined relative order.
//
// Queue is not safe for concurrent use; Scheduler serializes access to it.
type Queue struct {
	nodes []Event
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		nodes: make([]Event, 0, 16),
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.nodes)
}

// Insert adds an event in O(log n).
func (q *Queue) Insert(e Event) {
	q.nodes = append(q.nodes, e)
	q.siftUp(len(q.nodes) - 1)
}

// PeekMin returns the minimum event without removing it.
// Returns (Event{}, false) if the queue is empty.
func (q *Queue) PeekMin() (Event, bool) {
	if len(q.nodes) == 0 {
		return Event{}, false
	}
	return q.nodes[0], true
}

// RemoveMin removes and returns the minimum event in O(log n).
// Returns (Event{}, false) if the queue is empty.
func (q *Queue) RemoveMin() (Event, bool) {
	n := len(q.nodes)
	if n == 0 {
		return Event{}, false
	}

	top := q.nodes[0]
	last := n - 1
	q.nodes[0] = q.nodes[last]

	// Drop the callback reference held by the vacated tail slot.
	q.nodes[last] = Event{}
	q.nodes = q.nodes[:last]

	if last > 0 {
		q.siftDown(0)
	}
	return top, true
}

// Snapshot returns a copy of the queued events in heap order.
func (q *Queue) Snapshot() []Event {
	out := make([]Event, len(q.nodes))
	copy(out, q.nodes)
	return out
}

func parent(i int) int     { return (i - 1) / 2 }
func leftChild(i int) int  { return 2*i + 1 }
func rightChild(i int) int { return 2*i + 2 }

func (q *Queue) siftUp(i int) {
	for i > 0 {
		p := parent(i)
		if !Less(q.nodes[i], q.nodes[p]) {
			return
		}
		q.nodes[i], q.nodes[p] = q.nodes[p], q.nodes[i]
		i = p
	}
}

// siftDown moves the node at i toward the leaves. The right child is taken
// only when it is strictly less than both the node and the left child.
func (q *Queue) siftDown(i int) {
	n := len(q.nodes)
	for {
		l := leftChild(i)
		if l >= n {
			return
		}
		if r := rightChild(i); r < n {
			if Less(q.nodes[r], q.nodes[i]) && Less(q.nodes[r], q.nodes[l]) {
				q.nodes[i], q.nodes[r] = q.nodes[r], q.nodes[i]
				i = r
				continue
			}
		}
		if !Less(q.nodes[l], q.nodes[i]) {
			return
		}
		q.nodes[i], q.nodes[l] = q.nodes[l], q.nodes[i]
		i = l
	}
}
