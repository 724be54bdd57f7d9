package segment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vadseg/pkg/audio"
	"github.com/MrWong99/vadseg/pkg/provider/vad"
	"github.com/MrWong99/vadseg/pkg/provider/vad/mock"
	"github.com/MrWong99/vadseg/pkg/segment"
)

// recorder is an Exporter that keeps every segment it receives.
type recorder struct {
	mu   sync.Mutex
	segs []segment.Segment
	err  error
}

func (r *recorder) Export(_ context.Context, seg segment.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segs = append(r.segs, seg)
	return r.err
}

// events is an Observer that records transitions and counters.
type events struct {
	segment.NopObserver
	transitions []segment.State
	discarded   int
	classifyErr int
	exported    int
	lastRun     int
}

func (e *events) Transition(_, to segment.State, _ time.Time) {
	e.transitions = append(e.transitions, to)
}

func (e *events) Classified(_ time.Duration, err error, consecutive int) {
	if err != nil {
		e.classifyErr++
	}
	e.lastRun = consecutive
}

func (e *events) Exported(segment.Segment, time.Duration, error) { e.exported++ }
func (e *events) Discarded(n int)                                 { e.discarded += n }

type harness struct {
	sess  *segment.Session
	clock *segment.ManualClock
	exp   *recorder
	ev    *events
}

func newHarness(t *testing.T, cfg segment.Config, cls vad.Classifier) *harness {
	t.Helper()
	h := &harness{
		clock: segment.NewManualClock(time.Unix(0, 0)),
		exp:   &recorder{},
		ev:    &events{},
	}
	sess, err := segment.NewSession(cls, h.exp, cfg,
		segment.WithClock(h.clock),
		segment.WithObserver(h.ev),
	)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	h.sess = sess
	return h
}

// tick advances the clock by one frame and feeds a frame of amplitude amp.
func (h *harness) tick(t *testing.T, amp float32) segment.Result {
	t.Helper()
	h.clock.Advance(30 * time.Millisecond)
	res, err := h.sess.Tick(context.Background(), audio.Chunk{Samples: frameOf(amp), SampleRate: 16000})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	return res
}

// scriptedEvidence returns n positive answers followed by negatives.
func scriptedEvidence(n int) []vad.Evidence {
	out := make([]vad.Evidence, n)
	for i := range out {
		out[i] = vad.Evidence{HasSpeech: true, Ranges: []vad.Range{{Start: 0, End: frame}}}
	}
	return out
}

func TestSession_ConcreteScenario(t *testing.T) {
	t.Parallel()

	h := newHarness(t, segment.DefaultConfig(), &mock.Classifier{Script: scriptedEvidence(40)})

	first := h.tick(t, 0.3)
	if !first.Transitioned || first.State != segment.Speaking {
		t.Fatalf("first tick: %+v, want transition to speaking", first)
	}
	for i := 2; i <= 40; i++ {
		if res := h.tick(t, 0.3); res.State != segment.Speaking {
			t.Fatalf("positive tick %d: state %s", i, res.State)
		}
	}

	var idleAt int
	var seg *segment.Segment
	for k := 1; k <= 50; k++ {
		res := h.tick(t, 0)
		if res.Transitioned {
			idleAt = k
			seg = res.Segment
			break
		}
	}
	if idleAt != 34 {
		t.Errorf("returned to idle %d frames after evidence stopped, want 34", idleAt)
	}
	if seg == nil {
		t.Fatal("no segment finalized")
	}
	if seg.Len() < 19200 {
		t.Errorf("segment length %d, want >= 19200", seg.Len())
	}
	if want := 40*frame + 33*frame; seg.Len() != want {
		t.Errorf("segment length %d, want %d (positive + tail)", seg.Len(), want)
	}
	if seg.SampleRate != 16000 || seg.ID == "" {
		t.Errorf("segment metadata: rate %d id %q", seg.SampleRate, seg.ID)
	}
	if !seg.End.After(seg.Start) {
		t.Errorf("segment end %v not after start %v", seg.End, seg.Start)
	}
	if len(h.exp.segs) != 1 {
		t.Errorf("exported %d segments, want 1", len(h.exp.segs))
	}
	if len(h.ev.transitions) != 2 {
		t.Errorf("transitions = %v, want [speaking idle]", h.ev.transitions)
	}
}

func TestSession_ShortBlipIsDiscarded(t *testing.T) {
	t.Parallel()

	cfg := segment.DefaultConfig()
	cfg.MinSpeech = 2 * time.Second
	cfg.Hysteresis = 300 * time.Millisecond
	h := newHarness(t, cfg, &mock.Classifier{Script: scriptedEvidence(3)})

	for range 3 {
		h.tick(t, 0.3)
	}
	for range 20 {
		h.tick(t, 0)
	}
	if len(h.exp.segs) != 0 {
		t.Fatalf("exported %d segments, want 0", len(h.exp.segs))
	}
	if h.ev.discarded == 0 {
		t.Error("discard not reported")
	}
	if h.sess.State() != segment.Idle {
		t.Errorf("state = %s, want idle", h.sess.State())
	}
}

func TestSession_QuietEvidenceIsGated(t *testing.T) {
	t.Parallel()

	h := newHarness(t, segment.DefaultConfig(), &mock.Classifier{Default: vad.Evidence{HasSpeech: true}})
	for range 10 {
		if res := h.tick(t, 0.002); res.Speech || res.State != segment.Idle {
			t.Fatalf("quiet chunk produced speech: %+v", res)
		}
	}
}

func TestSession_EmptyChunkAdvancesTimer(t *testing.T) {
	t.Parallel()

	cfg := segment.DefaultConfig()
	cfg.MinSpeech = 0
	cls := &mock.Classifier{Script: scriptedEvidence(1)}
	h := newHarness(t, cfg, cls)

	h.tick(t, 0.3)
	h.clock.Advance(2 * time.Second)
	res, err := h.sess.Tick(context.Background(), audio.Chunk{SampleRate: 16000})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.State != segment.Idle || res.Segment == nil {
		t.Fatalf("empty tick after timeout: %+v, want idle with segment", res)
	}
	if cls.Calls() != 1 {
		t.Errorf("classifier called %d times, want 1 (empty chunk skips backend)", cls.Calls())
	}
}

func TestSession_ClassifyErrorIsNegativeEvidence(t *testing.T) {
	t.Parallel()

	boom := errors.New("backend hiccup")
	script := scriptedEvidence(5)
	cls := &mock.Classifier{Script: script, Errs: []error{nil, nil, boom, boom, nil}}
	h := newHarness(t, segment.DefaultConfig(), cls)
	ctx := context.Background()

	h.tick(t, 0.3)
	h.tick(t, 0.3)
	for i := range 2 {
		h.clock.Advance(30 * time.Millisecond)
		res, err := h.sess.Tick(ctx, audio.Chunk{Samples: frameOf(0.3), SampleRate: 16000})
		if !errors.Is(err, segment.ErrClassify) || !errors.Is(err, boom) {
			t.Fatalf("failing tick %d: err = %v, want ErrClassify wrapping cause", i, err)
		}
		if res.Speech {
			t.Error("failed classification must count as no speech")
		}
		if res.State != segment.Speaking {
			t.Errorf("state = %s, accumulated span must survive backend failure", res.State)
		}
	}
	if h.sess.ConsecutiveFailures() != 2 || h.ev.lastRun != 2 {
		t.Errorf("consecutive failures = %d (observer %d), want 2", h.sess.ConsecutiveFailures(), h.ev.lastRun)
	}
	h.tick(t, 0.3)
	if h.sess.ConsecutiveFailures() != 0 {
		t.Errorf("failures not reset after success: %d", h.sess.ConsecutiveFailures())
	}
}

func TestSession_ExportErrorDropsSegment(t *testing.T) {
	t.Parallel()

	cfg := segment.DefaultConfig()
	cfg.Hysteresis = 60 * time.Millisecond
	h := newHarness(t, cfg, &mock.Classifier{Script: scriptedEvidence(10)})
	h.exp.err = errors.New("disk full")

	for range 10 {
		h.tick(t, 0.3)
	}
	h.tick(t, 0)
	h.clock.Advance(30 * time.Millisecond)
	res, err := h.sess.Tick(context.Background(), audio.Chunk{Samples: frameOf(0), SampleRate: 16000})
	if !errors.Is(err, segment.ErrExport) {
		t.Fatalf("err = %v, want ErrExport", err)
	}
	if res.State != segment.Idle || res.Segment == nil {
		t.Errorf("result %+v, want idle with the dropped segment", res)
	}

	// The session continues.
	h.exp.err = nil
	if _, err := h.sess.Tick(context.Background(), audio.Chunk{Samples: frameOf(0), SampleRate: 16000}); err != nil {
		t.Errorf("tick after export failure: %v", err)
	}
}

func TestSession_SampleRateMismatch(t *testing.T) {
	t.Parallel()

	cls := &mock.Classifier{Default: vad.Evidence{HasSpeech: true}}
	h := newHarness(t, segment.DefaultConfig(), cls)
	_, err := h.sess.Tick(context.Background(), audio.Chunk{Samples: frameOf(0.3), SampleRate: 48000})
	if !errors.Is(err, segment.ErrSampleRate) {
		t.Fatalf("err = %v, want ErrSampleRate", err)
	}
	if cls.Calls() != 0 || h.sess.State() != segment.Idle {
		t.Errorf("mismatched chunk reached the backend or changed state")
	}
}

func TestSession_StopFlushesAndClosesOnce(t *testing.T) {
	t.Parallel()

	cls := &mock.Classifier{Default: vad.Evidence{HasSpeech: true}}
	h := newHarness(t, segment.DefaultConfig(), cls)
	for range 10 {
		h.tick(t, 0.3)
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.sess.Stop(context.Background()); err != nil {
				t.Errorf("Stop: %v", err)
			}
		}()
	}
	wg.Wait()

	if cls.Closes() != 1 {
		t.Errorf("classifier closed %d times, want 1", cls.Closes())
	}
	if len(h.exp.segs) != 1 || !h.exp.segs[0].Flushed || h.exp.segs[0].Len() != 10*frame {
		t.Fatalf("flushed segments = %+v, want one of %d samples", h.exp.segs, 10*frame)
	}
	if !h.sess.Stopped() {
		t.Error("Stopped = false")
	}
	if _, err := h.sess.Tick(context.Background(), audio.Chunk{}); !errors.Is(err, segment.ErrStopped) {
		t.Errorf("Tick after Stop: err = %v, want ErrStopped", err)
	}
}

func TestSession_StopReportsCloseError(t *testing.T) {
	t.Parallel()

	cls := &mock.Classifier{CloseErr: errors.New("release failed")}
	h := newHarness(t, segment.DefaultConfig(), cls)
	err := h.sess.Stop(context.Background())
	if err == nil {
		t.Fatal("expected close error")
	}
	if again := h.sess.Stop(context.Background()); again == nil || again.Error() != err.Error() {
		t.Errorf("second Stop = %v, want first error %v", again, err)
	}
	if cls.Closes() != 1 {
		t.Errorf("classifier closed %d times, want 1", cls.Closes())
	}
}

func TestSession_Reset(t *testing.T) {
	t.Parallel()

	cls := &mock.Classifier{Default: vad.Evidence{HasSpeech: true}}
	h := newHarness(t, segment.DefaultConfig(), cls)
	h.tick(t, 0.3)
	h.sess.Reset()
	if h.sess.State() != segment.Idle {
		t.Errorf("state after Reset = %s", h.sess.State())
	}
	if cls.Closes() != 0 {
		t.Error("Reset must not release the backend")
	}
	if err := h.sess.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(h.exp.segs) != 0 {
		t.Errorf("exported %d segments after Reset, want 0", len(h.exp.segs))
	}
}

func TestNewSession_Validation(t *testing.T) {
	t.Parallel()

	cls := &mock.Classifier{}
	exp := &recorder{}
	bad := segment.DefaultConfig()
	bad.SampleRate = 0
	bad.Hysteresis = 0
	if _, err := segment.NewSession(cls, exp, bad); err == nil {
		t.Error("expected validation error")
	}
	if _, err := segment.NewSession(nil, exp, segment.DefaultConfig()); err == nil {
		t.Error("expected error for nil classifier")
	}
	if _, err := segment.NewSession(cls, nil, segment.DefaultConfig()); err == nil {
		t.Error("expected error for nil exporter")
	}
}

// End to end through the frame adapter: per-frame evidence from a scripted
// backend drives the session.
func TestSession_WithFrameAdapter(t *testing.T) {
	t.Parallel()

	script := make([]bool, 0, 40)
	for range 20 {
		script = append(script, true)
	}
	fc := &mock.FrameClassifier{Size: 160, Script: script}
	cfg := segment.DefaultConfig()
	cfg.Gate.PerRange = true
	h := newHarness(t, cfg, vad.NewFrameAdapter(fc))

	for range 7 {
		h.tick(t, 0.3)
	}
	if h.sess.State() != segment.Speaking {
		t.Fatalf("state = %s, want speaking", h.sess.State())
	}
	for range 40 {
		h.tick(t, 0)
	}
	if len(h.exp.segs) != 1 {
		t.Fatalf("exported %d segments, want 1", len(h.exp.segs))
	}
	if err := h.sess.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if fc.CloseCallCount != 1 {
		t.Errorf("backend closed %d times, want 1", fc.CloseCallCount)
	}
}

func TestSession_Reconfigure(t *testing.T) {
	t.Parallel()

	cls := &mock.Classifier{Script: scriptedEvidence(2)}
	h := newHarness(t, segment.DefaultConfig(), cls)
	h.tick(t, 0.3)
	h.tick(t, 0.3)

	shorter := segment.DefaultConfig()
	shorter.Hysteresis = 90 * time.Millisecond
	if err := h.sess.Reconfigure(shorter); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if h.sess.Config().Hysteresis != 90*time.Millisecond {
		t.Errorf("Config().Hysteresis = %s", h.sess.Config().Hysteresis)
	}
	// The running countdown is capped: three silent frames end the span.
	h.tick(t, 0)
	h.tick(t, 0)
	if res := h.tick(t, 0); !res.Transitioned || res.State != segment.Idle {
		t.Fatalf("third silent tick: %+v, want transition to idle", res)
	}

	rate := segment.DefaultConfig()
	rate.SampleRate = 48000
	if err := h.sess.Reconfigure(rate); !errors.Is(err, segment.ErrSampleRate) {
		t.Errorf("rate change: err = %v, want ErrSampleRate", err)
	}
	invalid := segment.DefaultConfig()
	invalid.Hysteresis = 0
	if err := h.sess.Reconfigure(invalid); err == nil {
		t.Error("expected validation error")
	}

	if err := h.sess.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := h.sess.Reconfigure(segment.DefaultConfig()); !errors.Is(err, segment.ErrStopped) {
		t.Errorf("after Stop: err = %v, want ErrStopped", err)
	}
}
