package pool

import (
	"sync"

	"github.com/edwingeng/deque"
)

// readyQueue holds actors that have messages and are waiting for a worker.
type readyQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  deque.Deque // stores *actor
	closed bool
}

func newReadyQueue() *readyQueue {
	q := &readyQueue{queue: deque.NewDeque()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *readyQueue) push(a *actor) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.queue.PushBack(a)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an actor is ready or the queue is closed.
func (q *readyQueue) pop() (*actor, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.queue.Empty() && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	return q.queue.PopFront().(*actor), true
}

func (q *readyQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
