package segment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
)

// Config holds the session parameters. SampleRate is fixed at construction;
// the thresholds can be changed with [Session.Reconfigure].
type Config struct {
	// SampleRate of every chunk passed to Tick.
	SampleRate int

	// MinSpeech is the minimum span duration that is exported.
	MinSpeech time.Duration

	// Hysteresis is the grace period after evidence stops before the span
	// is finalized.
	Hysteresis time.Duration

	// MaxSegment cuts long spans. Zero disables the limit.
	MaxSegment time.Duration

	// Gate corroborates backend evidence with energy.
	Gate Gate
}

// DefaultConfig returns 16 kHz, 150 ms minimum speech, 1 s hysteresis and
// the default energy gate.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		MinSpeech:  150 * time.Millisecond,
		Hysteresis: time.Second,
		Gate:       DefaultGate(),
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("segment: sample rate must be positive, got %d", c.SampleRate))
	}
	if c.MinSpeech < 0 {
		errs = append(errs, fmt.Errorf("segment: min speech must not be negative, got %s", c.MinSpeech))
	}
	if c.Hysteresis <= 0 {
		errs = append(errs, fmt.Errorf("segment: hysteresis must be positive, got %s", c.Hysteresis))
	}
	if c.MaxSegment < 0 {
		errs = append(errs, fmt.Errorf("segment: max segment must not be negative, got %s", c.MaxSegment))
	}
	if c.MaxSegment > 0 && c.MaxSegment < c.MinSpeech {
		errs = append(errs, fmt.Errorf("segment: max segment %s is shorter than min speech %s", c.MaxSegment, c.MinSpeech))
	}
	if c.Gate.Floor < 0 || c.Gate.Floor > 1 {
		errs = append(errs, fmt.Errorf("segment: energy floor %v out of range [0, 1]", c.Gate.Floor))
	}
	return errors.Join(errs...)
}

// Result summarises one tick.
type Result struct {
	// State after the tick.
	State State

	// Transitioned is set when the tick changed the state.
	Transitioned bool

	// Speech is the gated evidence for the chunk.
	Speech bool

	// Segment is the segment finalized on this tick, if any. It is set even
	// when the export failed.
	Segment *Segment

	// Discarded is the length of a span dropped for being too short.
	Discarded int
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used to measure elapsed time. Defaults to
// [SystemClock].
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithObserver registers an observer for session events.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// Session drives classification, gating and segmentation once per tick.
//
// Tick must be called from a single goroutine. Stop and Reset may be called
// from any goroutine; Stop is idempotent.
type Session struct {
	classifier vad.Classifier
	exporter   Exporter
	clock      Clock
	observer   Observer
	cfg        Config

	mu        sync.Mutex
	seg       *Segmenter
	lastTick  time.Time
	spanStart time.Time
	failures  int
	stopped   bool

	stopOnce sync.Once
	stopErr  error
}

// NewSession creates an idle session. The session owns classifier and
// closes it exactly once on Stop.
func NewSession(classifier vad.Classifier, exporter Exporter, cfg Config, opts ...Option) (*Session, error) {
	if classifier == nil {
		return nil, errors.New("segment: classifier is required")
	}
	if exporter == nil {
		return nil, errors.New("segment: exporter is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		classifier: classifier,
		exporter:   exporter,
		clock:      SystemClock{},
		observer:   NopObserver{},
		cfg:        cfg,
		seg:        NewSegmenter(cfg.segmenterConfig()),
	}
	for _, o := range opts {
		o(s)
	}
	s.lastTick = s.clock.Now()
	return s, nil
}

func (c Config) segmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		MinSpeechSamples:  audio.DurationToSamples(c.MinSpeech, c.SampleRate),
		MaxSegmentSamples: audio.DurationToSamples(c.MaxSegment, c.SampleRate),
		Hysteresis:        c.Hysteresis,
	}
}

// Reconfigure applies new thresholds and gate settings from the next tick
// on. An open span is kept. The sample rate cannot change.
func (s *Session) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.SampleRate != s.cfg.SampleRate {
		return fmt.Errorf("%w: cannot change from %d Hz to %d Hz", ErrSampleRate, s.cfg.SampleRate, cfg.SampleRate)
	}
	if s.stopped {
		return ErrStopped
	}
	s.cfg = cfg
	s.seg.SetConfig(cfg.segmenterConfig())
	return nil
}

// Config returns the active configuration.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// State returns the current segmentation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seg.State()
}

// ConsecutiveFailures returns the number of classification failures in a
// row.
func (s *Session) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Tick processes one chunk. An empty chunk still advances the hysteresis
// timer. The returned error wraps [ErrClassify] and/or [ErrExport] when the
// backend or the exporter failed; in both cases the session keeps running
// and the caller should only report the error.
func (s *Session) Tick(ctx context.Context, chunk audio.Chunk) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return Result{State: s.seg.State()}, ErrStopped
	}

	now := s.clock.Now()
	elapsed := now.Sub(s.lastTick)
	s.lastTick = now

	var errs []error
	if chunk.SampleRate != 0 && chunk.SampleRate != s.cfg.SampleRate {
		errs = append(errs, fmt.Errorf("%w: chunk %d Hz, session %d Hz", ErrSampleRate, chunk.SampleRate, s.cfg.SampleRate))
		chunk = audio.Chunk{SampleRate: s.cfg.SampleRate, Timestamp: chunk.Timestamp}
	}

	var ev vad.Evidence
	if !chunk.Empty() {
		start := time.Now()
		var err error
		ev, err = s.classifier.Classify(ctx, chunk)
		if err != nil {
			s.failures++
			ev = vad.Evidence{}
			errs = append(errs, fmt.Errorf("%w: %w", ErrClassify, err))
		} else {
			s.failures = 0
		}
		s.observer.Classified(time.Since(start), err, s.failures)
	}

	speech := s.cfg.Gate.Allow(chunk, ev)
	out := s.seg.Step(speech, chunk.Samples, elapsed)

	res := Result{
		State:        out.To,
		Transitioned: out.Transitioned(),
		Speech:       speech,
		Discarded:    out.Discarded,
	}
	if out.Transitioned() {
		if out.To == Speaking {
			s.spanStart = now.Add(-chunk.Duration())
		}
		s.observer.Transition(out.From, out.To, now)
	}
	if out.Discarded > 0 {
		s.observer.Discarded(out.Discarded)
	}
	if out.Finalized != nil {
		seg := s.newSegment(out.Finalized, now)
		seg.Forced = out.Forced
		if out.Forced {
			s.spanStart = now
		}
		if err := s.export(ctx, seg); err != nil {
			errs = append(errs, err)
		}
		res.Segment = &seg
	}
	return res, errors.Join(errs...)
}

// Reset abandons any open span and returns to Idle without releasing the
// backend.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.seg.State()
	s.seg.Reset()
	s.failures = 0
	s.lastTick = s.clock.Now()
	if from != Idle {
		s.observer.Transition(from, Idle, s.lastTick)
	}
}

// Stop ends the session: an open span is finalized under the usual minimum
// length rule, and the classifier is closed. Stop is idempotent and safe to
// call from several goroutines; every call returns the first call's error.
func (s *Session) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopped = true

		var errs []error
		from := s.seg.State()
		finalized, discarded := s.seg.Flush()
		now := s.clock.Now()
		if from == Speaking {
			s.observer.Transition(from, Idle, now)
		}
		if discarded > 0 {
			s.observer.Discarded(discarded)
		}
		if finalized != nil {
			seg := s.newSegment(finalized, now)
			seg.Flushed = true
			if err := s.export(ctx, seg); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.classifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("segment: close classifier: %w", err))
		}
		s.stopErr = errors.Join(errs...)
	})
	return s.stopErr
}

func (s *Session) newSegment(samples []float32, end time.Time) Segment {
	return Segment{
		ID:         uuid.NewString(),
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Start:      s.spanStart,
		End:        end,
	}
}

func (s *Session) export(ctx context.Context, seg Segment) error {
	start := time.Now()
	err := s.exporter.Export(ctx, seg)
	s.observer.Exported(seg, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: segment %s: %w", ErrExport, seg.ID, err)
	}
	return nil
}
