// Package ringchan provides a bounded channel with overwrite-oldest semantics.
package ringchan

import "sync/atomic"

// RingChannel wraps a buffered channel so that a producer never blocks: when
// the buffer is full the oldest element is discarded to make room.
//
//	rc := ringchan.New[[]byte](3)
//	for i := 0; i < 10; i++ {
//	    rc.Send([]byte{byte(i)})
//	}
//	rc.Close()
//	for v := range rc.C() {
//	    fmt.Println(v) // 7, 8, 9
//	}
//
// A RingChannel supports one producer. Consumers read from C.
type RingChannel[T any] struct {
	ch      chan T
	metrics Metrics
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. It is closed by Close.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest element if the buffer is full.
// It reports whether an element was dropped.
func (rc *RingChannel[T]) Send(v T) bool {
	select {
	case rc.ch <- v:
		atomic.AddInt64(&rc.metrics.Written, 1)
		return false
	default:
	}

	dropped := false
	select {
	case <-rc.ch:
		atomic.AddInt64(&rc.metrics.Overwritten, 1)
		dropped = true
	default:
		// consumer drained it meanwhile
	}
	rc.ch <- v
	atomic.AddInt64(&rc.metrics.Written, 1)
	return dropped
}

// TrySend inserts v only if there is room.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		atomic.AddInt64(&rc.metrics.Written, 1)
		return true
	default:
		return false
	}
}

func (rc *RingChannel[T]) Len() int { return len(rc.ch) }

func (rc *RingChannel[T]) Cap() int { return cap(rc.ch) }

// Close closes the underlying channel. Sending afterwards panics.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}

// Metrics returns a snapshot of the counters.
func (rc *RingChannel[T]) Metrics() Metrics {
	return Metrics{
		Written:     atomic.LoadInt64(&rc.metrics.Written),
		Overwritten: atomic.LoadInt64(&rc.metrics.Overwritten),
	}
}

// Metrics counts accepted and overwritten elements.
type Metrics struct {
	Written     int64
	Overwritten int64
}
