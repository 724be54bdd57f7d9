package vad

import "sync"

// rangePool recycles the backing arrays of RangeResult values between
// classification calls.
var rangePool = sync.Pool{
	New: func() any {
		s := make([]Range, 0, 16)
		return &s
	},
}

// RangeResult is the transient output of [RangeClassifier.DetectRanges]. Its
// storage is pooled and may be backed by native memory owned by the backend,
// so callers must call Release exactly when they are done with it, on every
// path. Release is idempotent; Ranges returns nil after release.
//
// A RangeResult is owned by a single caller and must not be retained past the
// tick that produced it.
type RangeResult struct {
	ranges    *[]Range
	onRelease func()
	once      sync.Once
	released  bool
}

// AcquireRangeResult returns an empty result backed by pooled storage.
// onRelease, if non-nil, runs once when the result is released; backends use
// it to free native buffers tied to the call.
func AcquireRangeResult(onRelease func()) *RangeResult {
	s := rangePool.Get().(*[]Range)
	*s = (*s)[:0]
	return &RangeResult{ranges: s, onRelease: onRelease}
}

// Append adds a detected range. It is a no-op after Release.
func (r *RangeResult) Append(rg Range) {
	if r.released || r.ranges == nil {
		return
	}
	*r.ranges = append(*r.ranges, rg)
}

// Ranges returns the detected ranges. The slice aliases pooled storage and
// is only valid until Release.
func (r *RangeResult) Ranges() []Range {
	if r.released || r.ranges == nil {
		return nil
	}
	return *r.ranges
}

// Len returns the number of detected ranges.
func (r *RangeResult) Len() int { return len(r.Ranges()) }

// Released reports whether Release has been called.
func (r *RangeResult) Released() bool { return r.released }

// Release returns the storage to the pool and runs the backend release hook.
// Calling Release more than once is safe.
func (r *RangeResult) Release() {
	r.once.Do(func() {
		r.released = true
		if r.ranges != nil {
			rangePool.Put(r.ranges)
			r.ranges = nil
		}
		if r.onRelease != nil {
			r.onRelease()
		}
	})
}
