package app

import "sync"

type opKind int

const (
	opSet opKind = iota
	opRemove
	opLoad
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opSet:
		return "set"
	case opRemove:
		return "remove"
	case opLoad:
		return "load"
	default:
		return "barrier"
	}
}

// op is one unit of work for the persistence worker. seq is assigned by the
// queue and is strictly increasing in push order.
type op struct {
	seq   uint64
	kind  opKind
	key   string
	value string
	done  chan struct{}
}

// writeQueue is an unbounded FIFO drained by a single goroutine, so gateway
// calls happen one at a time and in the order they were issued. Pushing never
// blocks the caller.
type writeQueue struct {
	run func(op)

	mu      sync.Mutex
	pending []op
	seq     uint64
	closed  bool

	wake    chan struct{}
	stopped chan struct{}
}

func newWriteQueue(run func(op)) *writeQueue {
	q := &writeQueue{
		run:     run,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

// push stamps o with the next sequence number and schedules it. It returns
// false once the queue is closed.
func (q *writeQueue) push(o op) (op, bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return o, false
	}
	q.seq++
	o.seq = q.seq
	q.pending = append(q.pending, o)
	q.mu.Unlock()

	q.signal()
	return o, true
}

// close stops accepting work. Already queued ops still run.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// len reports the number of ops waiting to run.
func (q *writeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *writeQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *writeQueue) loop() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		next := q.pending[0]
		q.pending[0] = op{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.run(next)
		if next.done != nil {
			close(next.done)
		}
	}
}
