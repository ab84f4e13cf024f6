// Package queue provides the bounded top-k heap used by exact search.
package queue

import "slices"

// Item is a scored candidate. Slot is the index-internal position of the
// record; ID is its external id and breaks distance ties.
type Item struct {
	Slot     uint32
	ID       string
	Distance float32
}

// Less orders items by ascending distance, then ascending id.
func Less(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// TopK keeps the k best items seen so far.
//
// Internally it is a value-based max-heap on (distance, id) so the current
// worst item sits at the root and can be evicted in O(log k).
type TopK struct {
	k     int
	items []Item
}

// NewTopK returns a heap that retains at most k items.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	capacity := k
	if capacity > 1024 {
		capacity = 1024
	}
	return &TopK{k: k, items: make([]Item, 0, capacity)}
}

// Len returns the number of retained items.
func (q *TopK) Len() int { return len(q.items) }

// Full reports whether k items are retained.
func (q *TopK) Full() bool { return len(q.items) >= q.k }

// Offer considers item for inclusion and reports whether it was kept.
func (q *TopK) Offer(item Item) bool {
	if q.k == 0 {
		return false
	}
	if len(q.items) < q.k {
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
		return true
	}
	if !Less(item, q.items[0]) {
		return false
	}
	q.items[0] = item
	q.siftDown(0)
	return true
}

// Drain returns the retained items best first and resets the heap.
func (q *TopK) Drain() []Item {
	out := q.items
	q.items = nil
	slices.SortFunc(out, func(a, b Item) int {
		switch {
		case Less(a, b):
			return -1
		case Less(b, a):
			return 1
		default:
			return 0
		}
	})
	return out
}

// Merge folds sorted partial results into one best-first list of at most k.
func Merge(k int, parts ...[]Item) []Item {
	q := NewTopK(k)
	for _, part := range parts {
		for _, item := range part {
			if !q.Offer(item) && q.Full() {
				// parts are sorted, nothing later in this part can win
				break
			}
		}
	}
	return q.Drain()
}

// worse is the heap order: the root is the maximum under Less.
func (q *TopK) worse(i, j int) bool {
	return Less(q.items[j], q.items[i])
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.worse(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && q.worse(r, l) {
			best = r
		}
		if !q.worse(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
