package ingest

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned by Push once the queue stops accepting
// records, either because Close was called or because the consumer
// abandoned the queue. The condition is permanent.
var ErrQueueClosed = errors.New("ingest queue closed")

// Queue is an unbounded FIFO handoff between many producers (HTTP
// handlers, the binary protocol listener) and the single batch writer.
// Push never blocks on a slow consumer: records accumulate in an internal
// buffer pumped toward Records(). An atomic depth gauge tracks pending
// records for probes and metrics without locking.
type Queue struct {
	mu     sync.RWMutex
	closed bool

	in    chan FlatRecord
	out   chan FlatRecord
	stop  chan struct{}
	once  sync.Once
	depth atomic.Int64
}

// NewQueue creates the queue and starts its pump goroutine.
func NewQueue() *Queue {
	q := &Queue{
		in:   make(chan FlatRecord),
		out:  make(chan FlatRecord),
		stop: make(chan struct{}),
	}
	go q.pump()
	return q
}

// Push enqueues one record. It returns ErrQueueClosed if the queue no
// longer accepts records and nil otherwise; it never blocks waiting for
// the consumer.
func (q *Queue) Push(rec FlatRecord) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.in <- rec:
		q.depth.Add(1)
		return nil
	case <-q.stop:
		return ErrQueueClosed
	}
}

// Records returns the consumer channel. It is closed after Close once all
// buffered records have been delivered.
func (q *Queue) Records() <-chan FlatRecord {
	return q.out
}

// Close marks the producer side done. Buffered records are still
// delivered; once drained, Records() closes and the consumer performs its
// final flush.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.in)
}

// Abandon is called by the consumer when it stops receiving. Every
// subsequent Push fails immediately with ErrQueueClosed; records still
// buffered are discarded.
func (q *Queue) Abandon() {
	q.once.Do(func() { close(q.stop) })
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Depth returns the number of pushed records not yet handed to the consumer.
func (q *Queue) Depth() int {
	return int(q.depth.Load())
}

// Accepting reports whether Push can still succeed. Readiness probes use
// this to surface a dead batch writer.
func (q *Queue) Accepting() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return !q.closed
}

// pump moves records from producers to the consumer, buffering without
// bound in between. It exits when the queue is abandoned or when Close has
// been called and the buffer is drained.
func (q *Queue) pump() {
	var buf []FlatRecord
	in := q.in
	for in != nil || len(buf) > 0 {
		var out chan FlatRecord
		var next FlatRecord
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}
		select {
		case rec, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, rec)
		case out <- next:
			buf = buf[1:]
			q.depth.Add(-1)
		case <-q.stop:
			return
		}
	}
	close(q.out)
}
