package queue

import (
	"context"
	"errors"
	"sync"
)

var errQueueClosed = errors.New("queue closed")

// MemoryQueue is a channel-backed queue for single-instance deployments and
// tests. Shutdown is signalled through a separate done channel; the event
// channel itself is never closed, so a Publish racing Close cannot panic.
type MemoryQueue struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan Event, size), done: make(chan struct{})}
}

func (q *MemoryQueue) Publish(ctx context.Context, ev Event) error {
	select {
	case <-q.done:
		return errQueueClosed
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return errQueueClosed
	case q.ch <- ev:
		return nil
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case ev := <-q.ch:
					_ = handler(ctx, ev)
				}
			}
		}()
	}
	select {
	case <-ctx.Done():
	case <-q.done:
	}
	wg.Wait()
	return ctx.Err()
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
