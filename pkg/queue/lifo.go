// Package queue implements a bounded, byte-capacity-limited LIFO work
// queue backing the HTTP sink: when a downstream endpoint is slow, the
// freshest metrics are the most valuable, so overflow evicts the
// oldest entries rather than rejecting the newest. Grounded on the
// lifoq_push/lifoq_get contract original_source/src/sink_http.c
// describes, implemented in the guarded-mutable-structure style
// pkg/metricstore/level.go uses for its sync.RWMutex-guarded maps —
// a sync.Cond substitutes for RWMutex here because Get must block.
package queue

import (
	"container/list"
	"sync"
)

// Status is the outcome of a Push or Get call.
type Status int

const (
	StatusOK Status = iota
	StatusFull
	StatusClosed
)

// Item is one queued entry: an opaque payload and its accounted size
// in bytes (not necessarily len(payload) — callers may account for
// framing overhead too).
type Item struct {
	Payload any
	Size    int
}

// Queue is a bounded LIFO queue of Items, synchronized for concurrent
// producers (flush workers pushing serialized batches) and consumers
// (HTTP worker goroutines popping the most recent batch).
type Queue struct {
	mu        sync.Mutex
	notEmpty  *sync.Cond
	items     *list.List // back = newest (LIFO top)
	usedBytes int
	capBytes  int
	closed    bool
}

// New builds a Queue with the given byte capacity.
func New(capBytes int) *Queue {
	q := &Queue{
		items:    list.New(),
		capBytes: capBytes,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends payload (accounted at size bytes) to the top of the
// queue. If evictIfFull is true and the queue would overflow its
// capacity, the oldest (bottom) entries are evicted — passed to
// onEvict, in oldest-first order — until the new item fits; onEvict
// may be nil. If evictIfFull is false, Push returns StatusFull
// instead of evicting. If the queue is closed, Push returns
// StatusClosed unless allowWhenClosed is true (used to re-queue a
// failed batch during shutdown's drain).
func (q *Queue) Push(item Item, evictIfFull, allowWhenClosed bool, onEvict func(Item)) Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed && !allowWhenClosed {
		return StatusClosed
	}

	if q.usedBytes+item.Size > q.capBytes {
		if !evictIfFull {
			return StatusFull
		}
		for q.usedBytes+item.Size > q.capBytes && q.items.Len() > 0 {
			oldest := q.items.Front()
			evicted := oldest.Value.(Item)
			q.items.Remove(oldest)
			q.usedBytes -= evicted.Size
			if onEvict != nil {
				onEvict(evicted)
			}
		}
	}

	q.items.PushBack(item)
	q.usedBytes += item.Size
	q.notEmpty.Signal()
	return StatusOK
}

// Get blocks until an item is available or the queue is closed and
// drained, then returns the most recently pushed surviving entry.
func (q *Queue) Get() (Item, Status) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 {
		if q.closed {
			return Item{}, StatusClosed
		}
		q.notEmpty.Wait()
	}

	top := q.items.Back()
	item := top.Value.(Item)
	q.items.Remove(top)
	q.usedBytes -= item.Size
	return item, StatusOK
}

// Close marks the queue closed and wakes all blocked Get callers.
// Items already queued are still returned by subsequent Get calls
// (LIFO order) before StatusClosed is reported.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}

// IsClosed is a non-blocking observer of close state.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
