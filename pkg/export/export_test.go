package export_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vadseg/pkg/export"
	"github.com/MrWong99/vadseg/pkg/segment"
)

type sink struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (s *sink) Export(_ context.Context, seg segment.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, seg.ID)
	return s.err
}

func (s *sink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func TestMulti(t *testing.T) {
	t.Parallel()

	a := &sink{err: errors.New("a failed")}
	b := &sink{}
	err := export.Multi{a, b}.Export(context.Background(), segment.Segment{ID: "x"})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(b.got()) != 1 {
		t.Error("second sink must run even when the first fails")
	}
}

func TestFuncAndDiscard(t *testing.T) {
	t.Parallel()

	called := false
	f := export.Func(func(context.Context, segment.Segment) error { called = true; return nil })
	if err := f.Export(context.Background(), segment.Segment{}); err != nil || !called {
		t.Errorf("Func: called=%v err=%v", called, err)
	}
	if err := export.Discard.Export(context.Background(), segment.Segment{}); err != nil {
		t.Errorf("Discard: %v", err)
	}
}

func TestAsync_DeliversInOrderAndDrainsOnClose(t *testing.T) {
	t.Parallel()

	s := &sink{}
	var mu sync.Mutex
	var results int
	a := export.NewAsync(s, 8, export.WithResult(func(segment.Segment, time.Duration, error) {
		mu.Lock()
		results++
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	for _, id := range []string{"1", "2", "3"} {
		if err := a.Export(ctx, segment.Segment{ID: id}); err != nil {
			t.Fatalf("Export(%s): %v", id, err)
		}
	}
	cancel() // must not abandon queued segments

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	if err := a.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-runErr; err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := s.got()
	if len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Errorf("delivered %v, want [1 2 3]", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if results != 3 {
		t.Errorf("result callbacks = %d, want 3", results)
	}

	if err := a.Export(context.Background(), segment.Segment{ID: "late"}); !errors.Is(err, export.ErrClosed) {
		t.Errorf("Export after Close: err = %v, want ErrClosed", err)
	}
	if err := a.Close(closeCtx); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestAsync_QueueFullDrops(t *testing.T) {
	t.Parallel()

	s := &sink{}
	a := export.NewAsync(s, 1)
	// No worker running: the first segment fills the queue.
	if err := a.Export(context.Background(), segment.Segment{ID: "1"}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := a.Export(context.Background(), segment.Segment{ID: "2"}); !errors.Is(err, export.ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if a.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", a.Pending())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close without worker: err = %v, want DeadlineExceeded", err)
	}
}

func TestAsync_TimeoutBoundsDelivery(t *testing.T) {
	t.Parallel()

	var gotErr error
	done := make(chan struct{})
	slow := export.Func(func(ctx context.Context, _ segment.Segment) error {
		<-ctx.Done()
		return ctx.Err()
	})
	a := export.NewAsync(slow, 1,
		export.WithTimeout(10*time.Millisecond),
		export.WithResult(func(_ segment.Segment, _ time.Duration, err error) {
			gotErr = err
			close(done)
		}),
	)
	go func() { _ = a.Run(context.Background()) }()
	if err := a.Export(context.Background(), segment.Segment{ID: "slow"}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never finished")
	}
	if !errors.Is(gotErr, context.DeadlineExceeded) {
		t.Errorf("result err = %v, want DeadlineExceeded", gotErr)
	}
	_ = a.Close(context.Background())
}
