package audio

import "sync"

// Ring is a thread-safe, fixed-capacity sample buffer that sits between a
// real-time capture callback (the writer) and a polling consumer (the
// reader). When the buffer is full, new writes overwrite the oldest unread
// samples and the number of lost samples is added to [Ring.Overruns].
//
// Neither Write nor Drain blocks, so Ring is safe to use from audio driver
// callbacks.
type Ring struct {
	mu         sync.Mutex
	buf        []float32
	head, tail int64
	overruns   int64
}

// NewRing creates a ring holding at most size samples. A size below 1 is
// treated as 1.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{buf: make([]float32, size)}
}

// Cap returns the capacity of the ring in samples.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of unread samples.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.tail - r.head)
}

// Overruns returns the total number of samples overwritten before they were
// drained.
func (r *Ring) Overruns() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overruns
}

// Write appends samples, overwriting the oldest unread data when full.
func (r *Ring) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := int64(len(r.buf))
	for _, s := range samples {
		r.buf[r.tail%size] = s
		r.tail++
	}
	if lost := r.tail - r.head - size; lost > 0 {
		r.overruns += lost
		r.head += lost
	}
}

// Drain returns every unread sample in write order and empties the ring. The
// returned slice is freshly allocated; it is nil when the ring is empty.
func (r *Ring) Drain() []float32 {
	out, _ := r.DrainAt()
	return out
}

// DrainAt is Drain that also returns the stream offset of the first returned
// sample: the number of samples written before it, including those lost to
// overruns.
func (r *Ring) DrainAt() ([]float32, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.head
	n := int(r.tail - r.head)
	if n == 0 {
		return nil, at
	}
	size := int64(len(r.buf))
	out := make([]float32, n)
	start := int(r.head % size)
	first := copy(out, r.buf[start:])
	if first < n {
		copy(out[first:], r.buf[:n-first])
	}
	r.head = r.tail
	return out, at
}

// Reset discards unread samples and clears the overrun counter.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head, r.tail, r.overruns = 0, 0, 0
}
