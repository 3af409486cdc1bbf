package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/ternarybob/venor/internal/models"
)

// taskItem wraps a task in the heap with a monotonic sequence number so
// ordering within a priority level is FIFO.
type taskItem struct {
	task *models.ScrapeTask
	seq  uint64
}

// taskHeap implements heap.Interface: higher priority first, then FIFO.
type taskHeap []*taskItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *taskHeap) Push(x interface{}) {
	*h = append(*h, x.(*taskItem))
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}

// taskQueue is a bounded blocking priority queue of scrape tasks.
type taskQueue struct {
	items    *taskHeap
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	seq      uint64
	closed   bool
}

func newTaskQueue(capacity int) *taskQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	h := &taskHeap{}
	heap.Init(h)
	q := &taskQueue{
		items:    h,
		capacity: capacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push adds a task. Returns false when the queue is full or closed.
func (q *taskQueue) push(task *models.ScrapeTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.items.Len() >= q.capacity {
		return false
	}

	q.seq++
	heap.Push(q.items, &taskItem{task: task, seq: q.seq})
	q.cond.Signal()
	return true
}

// pop blocks until a task is available, the queue is closed (returns nil),
// or ctx is done. Waits use a bounded timeout so cancellation is observed
// without leaking goroutines.
func (q *taskQueue) pop(ctx context.Context) (*models.ScrapeTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	const maxWait = 2 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if q.items.Len() > 0 {
			item := heap.Pop(q.items).(*taskItem)
			return item.task, nil
		}

		if q.closed {
			return nil, nil
		}

		// Bounded wait so the context check above runs periodically
		timer := time.AfterFunc(maxWait, q.cond.Broadcast)
		q.cond.Wait()
		timer.Stop()
	}
}

// remove deletes a pending task by ID. Returns false when absent.
func (q *taskQueue) remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range *q.items {
		if item.task.ID == id {
			heap.Remove(q.items, i)
			return true
		}
	}
	return false
}

func (q *taskQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// close wakes all waiters; subsequent pops drain remaining items then
// return nil.
func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
