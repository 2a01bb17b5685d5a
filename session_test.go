package imgcompare_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xswordsx/imgcompare"
)

// gateComparer blocks pixel comparisons until release is closed.
type gateComparer struct {
	release   chan struct{}
	calls     atomic.Int32
	overrides atomic.Int32
}

func newGate() *gateComparer { return &gateComparer{release: make(chan struct{})} }

func (g *gateComparer) Compare(ctx context.Context, a, b *imgcompare.Image, override bool) (imgcompare.Result, error) {
	g.calls.Add(1)
	if override {
		g.overrides.Add(1)
		return imgcompare.Result{Score: 100, Label: imgcompare.LabelSpecialCase, Override: true}, nil
	}
	select {
	case <-g.release:
		return imgcompare.Result{Score: 42, Label: imgcompare.LabelLowSimilarity}, nil
	case <-ctx.Done():
		return imgcompare.Result{}, ctx.Err()
	}
}

// recorder keeps the interleaving of progress and result callbacks.
type recorder struct {
	mu      sync.Mutex
	events  []int // progress values; -1 marks a result
	results []imgcompare.Result
	errs    []error
}

func (r *recorder) attach(s *imgcompare.Session) {
	s.OnProgress(func(p int) {
		r.mu.Lock()
		r.events = append(r.events, p)
		r.mu.Unlock()
	})
	s.OnResult(func(res imgcompare.Result, err error) {
		r.mu.Lock()
		r.events = append(r.events, -1)
		r.results = append(r.results, res)
		r.errs = append(r.errs, err)
		r.mu.Unlock()
	})
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.events...)
}

func (r *recorder) resultCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func fastTicker() imgcompare.Ticker {
	return imgcompare.Ticker{Interval: time.Millisecond, Step: 10, Ceiling: 90}
}

func TestSessionStateTransitions(t *testing.T) {
	gate := newGate()
	s := imgcompare.NewSession(gate, imgcompare.SessionOptions{Progress: fastTicker()})
	rec := &recorder{}
	rec.attach(s)

	if s.State() != imgcompare.StateEmpty {
		t.Fatalf("new session state = %v", s.State())
	}
	if err := s.SubmitImage(imgcompare.SlotA, []byte("a"), "a.png"); err != nil {
		t.Fatal(err)
	}
	if s.State() != imgcompare.StatePartial {
		t.Fatalf("after one image state = %v", s.State())
	}
	// Replacing the filled slot stays partial.
	if err := s.SubmitImage(imgcompare.SlotA, []byte("a2"), "a2.png"); err != nil {
		t.Fatal(err)
	}
	if s.State() != imgcompare.StatePartial {
		t.Fatalf("after replacing slot A state = %v", s.State())
	}
	if gate.calls.Load() != 0 {
		t.Fatal("comparison started with one slot empty")
	}

	if err := s.SubmitImage(imgcompare.SlotB, []byte("b"), "b.png"); err != nil {
		t.Fatal(err)
	}
	if s.State() != imgcompare.StateComparing {
		t.Fatalf("after both images state = %v", s.State())
	}

	close(gate.release)
	waitFor(t, "result", func() bool { return rec.resultCount() == 1 })
	waitFor(t, "complete state", func() bool { return s.State() == imgcompare.StateComplete })

	// A new image after completion starts a fresh request.
	if err := s.SubmitImage(imgcompare.SlotB, []byte("b2"), "b2.png"); err != nil {
		t.Fatal(err)
	}
	if s.State() != imgcompare.StatePartial {
		t.Errorf("submit after complete: state = %v, want partial", s.State())
	}

	s.Reset()
	if s.State() != imgcompare.StateEmpty {
		t.Errorf("after Reset state = %v", s.State())
	}
}

func TestSessionInvalidSlot(t *testing.T) {
	s := imgcompare.NewSession(newGate(), imgcompare.SessionOptions{})
	err := s.SubmitImage(imgcompare.Slot(7), []byte("x"), "x.png")
	if !errors.Is(err, imgcompare.ErrInvalidSlot) {
		t.Errorf("err = %v, want ErrInvalidSlot", err)
	}
	if s.State() != imgcompare.StateEmpty {
		t.Errorf("invalid submit changed state to %v", s.State())
	}
}

func TestSessionOverrideVerdict(t *testing.T) {
	gate := newGate()
	s := imgcompare.NewSession(gate, imgcompare.SessionOptions{})
	rec := &recorder{}
	rec.attach(s)

	_ = s.SubmitImage(imgcompare.SlotA, []byte("a"), "John_Doe.png")
	if !s.Override() {
		t.Fatal("expected override for John_Doe.png")
	}
	// Re-supplying slot A recomputes the verdict.
	_ = s.SubmitImage(imgcompare.SlotA, []byte("a"), "vacation.png")
	if s.Override() {
		t.Fatal("override survived replacement of slot A")
	}
	// Slot B labels never trigger the override.
	_ = s.SubmitImage(imgcompare.SlotA, []byte("a"), "SUKH.jpg")
	_ = s.SubmitImage(imgcompare.SlotB, []byte("b"), "vacation.png")

	waitFor(t, "override result", func() bool { return rec.resultCount() == 1 })
	if gate.overrides.Load() != 1 {
		t.Errorf("comparer saw %d override calls, want 1", gate.overrides.Load())
	}
	res := rec.results[0]
	if res.Score != 100 || res.Diff != nil || res.Label != imgcompare.LabelSpecialCase {
		t.Errorf("override result = %+v", res)
	}
	for _, ev := range rec.snapshot() {
		if ev >= 0 {
			t.Errorf("override path reported progress %d", ev)
		}
	}
}

func TestSessionCustomClassifier(t *testing.T) {
	gate := newGate()
	s := imgcompare.NewSession(gate, imgcompare.SessionOptions{
		Classifier: imgcompare.ClassifierFunc(func(label string) bool { return label == "magic" }),
	})
	_ = s.SubmitImage(imgcompare.SlotA, nil, "sukhwinder.png")
	if s.Override() {
		t.Error("default triggers leaked into a custom classifier")
	}
	_ = s.SubmitImage(imgcompare.SlotA, nil, "magic")
	if !s.Override() {
		t.Error("custom classifier verdict ignored")
	}
}

func TestSessionProgressOrdering(t *testing.T) {
	gate := newGate()
	s := imgcompare.NewSession(gate, imgcompare.SessionOptions{Progress: fastTicker()})
	rec := &recorder{}
	rec.attach(s)

	_ = s.SubmitImage(imgcompare.SlotA, []byte("a"), "a.png")
	_ = s.SubmitImage(imgcompare.SlotB, []byte("b"), "b.png")

	waitFor(t, "progress to stall", func() bool {
		ev := rec.snapshot()
		return len(ev) > 0 && ev[len(ev)-1] == 90
	})
	close(gate.release)
	waitFor(t, "final progress", func() bool {
		ev := rec.snapshot()
		return len(ev) > 0 && ev[len(ev)-1] == 100
	})

	ev := rec.snapshot()
	if ev[0] != 0 {
		t.Errorf("progress started at %d, want 0", ev[0])
	}
	sawResult := false
	last := -1
	for _, v := range ev {
		if v == -1 {
			if sawResult {
				t.Fatal("result delivered twice")
			}
			sawResult = true
			continue
		}
		if v < last {
			t.Errorf("progress went backwards: %v", ev)
		}
		if v == 100 && !sawResult {
			t.Errorf("progress hit 100 before the result: %v", ev)
		}
		last = v
	}
	if !sawResult {
		t.Fatal("no result delivered")
	}
}

func TestSessionProgressResetsPerComparison(t *testing.T) {
	eng := &imgcompare.Engine{}
	s := imgcompare.NewSession(eng, imgcompare.SessionOptions{Progress: fastTicker()})
	rec := &recorder{}
	rec.attach(s)

	blob := encodePNG(t, checker(8, 8, 2))
	for round := 1; round <= 2; round++ {
		_ = s.SubmitImage(imgcompare.SlotA, blob, "a.png")
		_ = s.SubmitImage(imgcompare.SlotB, blob, "b.png")
		waitFor(t, "result", func() bool { return rec.resultCount() == round })
		waitFor(t, "final progress", func() bool {
			ev := rec.snapshot()
			return ev[len(ev)-1] == 100
		})
	}

	ev := rec.snapshot()
	starts := 0
	for i, v := range ev {
		if v == 0 {
			starts++
			if i > 0 && ev[i-1] != 100 {
				t.Errorf("second comparison did not start after the first finished: %v", ev)
			}
		}
	}
	if starts != 2 {
		t.Errorf("progress reset %d times, want 2: %v", starts, ev)
	}
	for _, res := range rec.results {
		if res.Score != 100 {
			t.Errorf("identical images scored %.2f", res.Score)
		}
	}
}

func TestSessionDiscardsStaleComparison(t *testing.T) {
	gate := newGate()
	s := imgcompare.NewSession(gate, imgcompare.SessionOptions{
		Progress: imgcompare.Ticker{Interval: 5 * time.Millisecond, Step: 10, Ceiling: 90},
	})
	rec := &recorder{}
	rec.attach(s)

	_ = s.SubmitImage(imgcompare.SlotA, []byte("a"), "a.png")
	_ = s.SubmitImage(imgcompare.SlotB, []byte("b"), "b.png")
	waitFor(t, "first tick", func() bool { return len(rec.snapshot()) >= 2 })

	// Replacing an image abandons the running comparison.
	_ = s.SubmitImage(imgcompare.SlotA, []byte("a2"), "a2.png")
	if s.State() != imgcompare.StatePartial {
		t.Fatalf("state = %v, want partial", s.State())
	}
	time.Sleep(2 * time.Millisecond)
	stale := len(rec.snapshot())

	time.Sleep(40 * time.Millisecond)
	if n := rec.resultCount(); n != 0 {
		t.Fatalf("abandoned comparison delivered %d results", n)
	}
	if got := len(rec.snapshot()); got != stale {
		t.Errorf("abandoned comparison kept ticking: %v", rec.snapshot())
	}
}

func TestSessionReplacementWaitsForRunningCallback(t *testing.T) {
	gate := newGate()
	s := imgcompare.NewSession(gate, imgcompare.SessionOptions{
		Progress: imgcompare.Ticker{Interval: 2 * time.Millisecond, Step: 10, Ceiling: 90},
	})
	defer s.Reset()

	var (
		mu     sync.Mutex
		events []int
		once   sync.Once
	)
	entered := make(chan struct{})
	release := make(chan struct{})
	s.OnProgress(func(p int) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
		if p == 10 {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	})
	snapshot := func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), events...)
	}

	_ = s.SubmitImage(imgcompare.SlotA, []byte("a"), "a.png")
	_ = s.SubmitImage(imgcompare.SlotB, []byte("b"), "b.png")
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick never delivered")
	}

	// Start a second request while the first one's tick is still running.
	_ = s.SubmitImage(imgcompare.SlotA, []byte("a2"), "a2.png")
	_ = s.SubmitImage(imgcompare.SlotB, []byte("b2"), "b2.png")
	time.Sleep(20 * time.Millisecond)
	if got := snapshot(); len(got) != 2 {
		t.Fatalf("second request reported progress during a running callback: %v", got)
	}

	close(release)
	waitFor(t, "second request start", func() bool { return len(snapshot()) >= 4 })
	got := snapshot()
	if got[2] != 0 {
		t.Fatalf("events = %v, want the second request to start at 0", got)
	}
	for i := 3; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("stale progress after the second request started: %v", got)
		}
	}
}

func TestSessionDeliversDecodeError(t *testing.T) {
	s := imgcompare.NewSession(&imgcompare.Engine{}, imgcompare.SessionOptions{Progress: fastTicker()})
	rec := &recorder{}
	rec.attach(s)

	_ = s.SubmitImage(imgcompare.SlotA, []byte("not an image"), "a.png")
	_ = s.SubmitImage(imgcompare.SlotB, encodePNG(t, solid(2, 2, white)), "b.png")
	waitFor(t, "error", func() bool { return rec.resultCount() == 1 })

	if !errors.Is(rec.errs[0], imgcompare.ErrDecode) {
		t.Errorf("err = %v, want a decode error", rec.errs[0])
	}
	time.Sleep(10 * time.Millisecond)
	for _, v := range rec.snapshot() {
		if v == 100 {
			t.Error("progress reached 100 for a failed comparison")
		}
	}
}
