package segment

import (
	"fmt"
	"time"
)

// State is the segmentation state.
type State int

const (
	// Idle means no speech span is open.
	Idle State = iota

	// Speaking means a span is open and samples are being accumulated.
	Speaking
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SegmenterConfig holds the sample-level parameters of a [Segmenter].
type SegmenterConfig struct {
	// MinSpeechSamples is the minimum span length that is exported.
	MinSpeechSamples int

	// MaxSegmentSamples cuts a span once it reaches this many samples. Zero
	// disables the limit.
	MaxSegmentSamples int

	// Hysteresis is how long gated evidence may be absent before the span
	// is finalized.
	Hysteresis time.Duration
}

// Outcome describes what a single [Segmenter.Step] did.
type Outcome struct {
	// From and To are the states before and after the step.
	From, To State

	// Appended is the number of samples added to the accumulator.
	Appended int

	// Finalized holds a copy of the span when it was emitted on this step.
	Finalized []float32

	// Forced is set when Finalized was cut by the maximum segment length.
	Forced bool

	// Discarded is the length of a span that was dropped for being shorter
	// than the minimum.
	Discarded int
}

// Transitioned reports whether the state changed.
func (o Outcome) Transitioned() bool { return o.From != o.To }

// Segmenter is the Idle/Speaking state machine. It owns its accumulator
// exclusively; finalized spans are handed out as copies and the accumulator
// storage is reused for the next span.
//
// A Segmenter is not safe for concurrent use.
type Segmenter struct {
	cfg   SegmenterConfig
	state State
	timer time.Duration
	acc   []float32
}

// NewSegmenter creates an idle segmenter.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// State returns the current state.
func (s *Segmenter) State() State { return s.state }

// Timer returns the remaining hysteresis time. It is only meaningful while
// Speaking.
func (s *Segmenter) Timer() time.Duration { return s.timer }

// Len returns the number of accumulated samples.
func (s *Segmenter) Len() int { return len(s.acc) }

// Step advances the state machine by one tick. speech is the gated evidence
// for samples; elapsed is the time since the previous tick.
//
//	Idle,     speech          → reset timer, start span, append   → Speaking
//	Idle,     no speech       → nothing                           → Idle
//	Speaking, speech          → reset timer, append               → Speaking
//	Speaking, no speech       → timer -= elapsed; if still > 0
//	                            append (tail capture)             → Speaking
//	                            else finalize or discard          → Idle
func (s *Segmenter) Step(speech bool, samples []float32, elapsed time.Duration) Outcome {
	out := Outcome{From: s.state}

	switch {
	case speech:
		if s.state == Idle {
			s.acc = s.acc[:0]
			s.state = Speaking
		}
		s.timer = s.cfg.Hysteresis
		s.acc = append(s.acc, samples...)
		out.Appended = len(samples)

	case s.state == Speaking:
		s.timer -= elapsed
		if s.timer > 0 {
			s.acc = append(s.acc, samples...)
			out.Appended = len(samples)
		} else {
			s.finalize(&out)
			s.state = Idle
			s.timer = 0
		}
	}

	if s.state == Speaking && s.cfg.MaxSegmentSamples > 0 && len(s.acc) >= s.cfg.MaxSegmentSamples {
		out.Finalized = s.take()
		out.Forced = true
	}

	out.To = s.state
	return out
}

// Flush closes an open span as if the hysteresis timeout had expired and
// returns to Idle. It returns the span when it is long enough, or the
// discarded length otherwise.
func (s *Segmenter) Flush() (finalized []float32, discarded int) {
	if s.state != Speaking {
		return nil, 0
	}
	var out Outcome
	s.finalize(&out)
	s.state = Idle
	s.timer = 0
	return out.Finalized, out.Discarded
}

// SetConfig replaces the thresholds. An open span continues; a running
// hysteresis countdown is capped at the new hysteresis.
func (s *Segmenter) SetConfig(cfg SegmenterConfig) {
	s.cfg = cfg
	if s.timer > cfg.Hysteresis {
		s.timer = cfg.Hysteresis
	}
}

// Reset drops any open span and returns to Idle.
func (s *Segmenter) Reset() {
	s.state = Idle
	s.timer = 0
	clear(s.acc)
	s.acc = s.acc[:0]
}

func (s *Segmenter) finalize(out *Outcome) {
	if len(s.acc) >= s.cfg.MinSpeechSamples && len(s.acc) > 0 {
		out.Finalized = s.take()
		return
	}
	out.Discarded = len(s.acc)
	s.acc = s.acc[:0]
}

// take copies the accumulator out and clears it.
func (s *Segmenter) take() []float32 {
	seg := make([]float32, len(s.acc))
	copy(seg, s.acc)
	s.acc = s.acc[:0]
	return seg
}
