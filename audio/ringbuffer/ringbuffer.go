// Package ringbuffer provides the bounded sample buffer which decouples
// the decode goroutine from the playback and analysis paths.
//
// It keeps a full circular history of the most recently written samples.
// The playback consumer advances a read cursor through that history
// (FIFO), while the analysis consumer takes non-destructive snapshots of
// the newest samples, independent of how far playback has drained.
package ringbuffer

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Write after the buffer has been closed.
var ErrClosed = errors.New("ringbuffer: closed")

// RingBuffer is a fixed-capacity circular buffer of interleaved float32
// samples with a single producer and two independent consumers.
type RingBuffer struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	buf      []float32
	capacity int
	written  int64 // total samples ever written
	read     int64 // total samples consumed by playback
	closed   bool
}

// New creates a RingBuffer with the given capacity in samples.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	rb := &RingBuffer{
		buf:      make([]float32, capacity),
		capacity: capacity,
	}
	rb.notFull = sync.NewCond(&rb.mu)
	return rb
}

// Capacity returns the buffer capacity in samples.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// Len returns the number of samples buffered but not yet consumed by
// playback.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.written - rb.read)
}

// Free returns the space left for the producer.
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.capacity - int(rb.written-rb.read)
}

// Write appends samples, blocking while the buffer is full. The producer
// never overwrites samples the playback consumer has not read yet.
// Write returns ErrClosed once the buffer has been closed; a concurrent
// Flush frees space and lets a blocked Write proceed.
func (rb *RingBuffer) Write(samples []float32) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for len(samples) > 0 {
		if rb.closed {
			return ErrClosed
		}

		free := rb.capacity - int(rb.written-rb.read)
		if free == 0 {
			rb.notFull.Wait()
			continue
		}

		n := len(samples)
		if n > free {
			n = free
		}
		for i := 0; i < n; i++ {
			rb.buf[rb.written%int64(rb.capacity)] = samples[i]
			rb.written++
		}
		samples = samples[n:]
	}

	return nil
}

// ReadForPlayback returns exactly n samples in FIFO order, advancing the
// playback cursor. If fewer than n samples are buffered, the output is
// padded with silence and underrun is true. It never blocks.
func (rb *RingBuffer) ReadForPlayback(n int) (out []float32, underrun bool) {
	out = make([]float32, n)

	rb.mu.Lock()
	avail := int(rb.written - rb.read)
	if avail > n {
		avail = n
	}
	for i := 0; i < avail; i++ {
		out[i] = rb.buf[rb.read%int64(rb.capacity)]
		rb.read++
	}
	rb.notFull.Broadcast()
	rb.mu.Unlock()

	// the remainder of out is already zeroed (silence)
	return out, avail < n
}

// PeekRecent returns a copy of the most recent n written samples,
// regardless of the playback cursor. The playback cursor is not moved.
// If fewer than n samples were ever written, the leading part of the
// result is silence.
func (rb *RingBuffer) PeekRecent(n int) []float32 {
	out := make([]float32, n)

	rb.mu.Lock()
	avail := rb.written
	if avail > int64(n) {
		avail = int64(n)
	}
	if avail > int64(rb.capacity) {
		avail = int64(rb.capacity)
	}
	start := rb.written - avail
	for i := int64(0); i < avail; i++ {
		out[int64(n)-avail+i] = rb.buf[(start+i)%int64(rb.capacity)]
	}
	rb.mu.Unlock()

	return out
}

// Flush discards all unread samples and wakes a blocked producer. The
// sample history remains available to PeekRecent until overwritten.
func (rb *RingBuffer) Flush() {
	rb.mu.Lock()
	rb.read = rb.written
	rb.notFull.Broadcast()
	rb.mu.Unlock()
}

// Close marks the buffer closed and unblocks the producer. Subsequent
// Writes fail with ErrClosed; reads keep draining whatever is buffered.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.notFull.Broadcast()
	rb.mu.Unlock()
}
