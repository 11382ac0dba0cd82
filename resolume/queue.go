package resolume

import (
	"context"
	"sync"
)

// queueItem is either an inbound message or a control step that must run on the worker.
// done, when set, is closed once the item has been handled or discarded.
type queueItem struct {
	msg     Message
	control func(t *tree)
	done    chan struct{}
}

func (it queueItem) finish() {
	if it.done != nil {
		close(it.done)
	}
}

// ingestQueue is an unbounded FIFO between the transport goroutine and the worker
type ingestQueue struct {
	mu     sync.Mutex
	items  []queueItem
	notify chan struct{}
}

func newIngestQueue() *ingestQueue {
	return &ingestQueue{notify: make(chan struct{}, 1)}
}

// push appends an item and wakes the worker. It never blocks on a full queue.
func (q *ingestQueue) push(it queueItem) int {
	q.mu.Lock()
	q.items = append(q.items, it)
	n := len(q.items)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return n
}

func (q *ingestQueue) pop() (queueItem, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queueItem{}, 0, false
	}
	it := q.items[0]
	q.items[0] = queueItem{}
	q.items = q.items[1:]
	return it, len(q.items), true
}

// drain discards everything queued and returns how many items were dropped
func (q *ingestQueue) drain() int {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, it := range items {
		it.finish()
	}
	return len(items)
}

func (q *ingestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// run is the worker loop. It is the only goroutine that applies messages to the tree.
func (t *Tracker) run(ctx context.Context) {
	defer close(t.stopped)
	for {
		for t.step() {
		}
		select {
		case <-ctx.Done():
			return
		case <-t.queue.notify:
		}
	}
}

// step handles one queued item. Dequeue and apply share the tree lock so Clear
// cannot interleave with a message that was already taken off the queue.
func (t *Tracker) step() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, remaining, ok := t.queue.pop()
	if !ok {
		return false
	}
	t.metrics.setQueueDepth(remaining)
	defer it.finish()

	if it.control != nil {
		it.control(t.tree)
		return true
	}
	if t.queries.offer(it.msg) {
		t.metrics.replyMatched()
		return true
	}
	t.router.route(it.msg)
	return true
}
