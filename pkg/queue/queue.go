// Package queue holds pending book status repairs until they are due.
package queue

import (
	"sync"
	"time"

	"bookswap/pkg/models"

	"github.com/google/uuid"
)

type RepairRequest struct {
	ID         string
	BookID     string
	Status     models.BookStatus
	Reason     string
	RetryAt    time.Time
	RetryCount int
	MaxRetries int
}

// Exhausted reports whether the request used up its retries.
func (r *RepairRequest) Exhausted() bool {
	return r.RetryCount >= r.MaxRetries
}

type Queue struct {
	items []*RepairRequest
	now   func() time.Time
	mu    sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		items: make([]*RepairRequest, 0),
		now:   time.Now,
	}
}

// Enqueue adds req. A pending request for the same book is replaced so a
// book is never repaired twice in one drain.
func (q *Queue) Enqueue(req *RepairRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	for i, item := range q.items {
		if item.BookID == req.BookID {
			q.items[i] = req
			return
		}
	}
	q.items = append(q.items, req)
}

// Dequeue removes and returns the first due request, or nil.
func (q *Queue) Dequeue() *RepairRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for i, req := range q.items {
		if !req.RetryAt.After(now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return req
		}
	}
	return nil
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetAll returns a snapshot of every pending request, due or not.
func (q *Queue) GetAll() []*RepairRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]*RepairRequest, len(q.items))
	copy(result, q.items)
	return result
}
