package imgcompare

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// State is the lifecycle position of the request held by a [Session].
type State int

const (
	StateEmpty State = iota
	StatePartial
	StateReady
	StateComparing
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePartial:
		return "partial"
	case StateReady:
		return "ready"
	case StateComparing:
		return "comparing"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SessionOptions configures a [Session]. Zero fields take defaults.
type SessionOptions struct {
	Classifier LabelClassifier // DefaultClassifier when nil.
	Progress   Ticker          // DefaultTicker when zero.
	Logger     *slog.Logger
}

// Session holds one pending comparison request at a time. Images are
// supplied slot by slot; as soon as both slots are filled the comparison
// starts on its own goroutine, and the result is delivered to the OnResult
// callback exactly once.
//
// Submitting an image while a comparison is running or finished discards that
// request and starts a new one holding only the submitted image. Work still
// running for the discarded request is cancelled and its callbacks are never
// invoked.
type Session struct {
	cmp        Comparer
	classifier LabelClassifier
	ticker     Ticker
	log        *slog.Logger

	// deliver runs callbacks one at a time and is taken before mu. The
	// generation is checked under it, so a discarded request's callbacks
	// never follow the first callback of the request that replaced it.
	deliver sync.Mutex

	mu         sync.Mutex
	slots      [2]*Image
	override   bool
	state      State
	gen        uint64
	cancel     context.CancelFunc
	onResult   func(Result, error)
	onProgress func(int)
}

// NewSession returns an empty session that compares with cmp.
func NewSession(cmp Comparer, opts SessionOptions) *Session {
	s := &Session{
		cmp:        cmp,
		classifier: opts.Classifier,
		ticker:     opts.Progress,
		log:        opts.Logger,
	}
	if s.classifier == nil {
		s.classifier = DefaultClassifier
	}
	if s.ticker == (Ticker{}) {
		s.ticker = DefaultTicker
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// OnResult registers the callback for completed requests. It receives either
// a result or an error, never both.
func (s *Session) OnResult(fn func(Result, error)) {
	s.mu.Lock()
	s.onResult = fn
	s.mu.Unlock()
}

// OnProgress registers the advisory progress callback. It only fires on the
// pixel-comparison path: 0 when a comparison starts, rising values while it
// runs, and 100 right after a successful result has been delivered.
// Callbacks registered after a comparison started take effect on the next
// one.
func (s *Session) OnProgress(fn func(int)) {
	s.mu.Lock()
	s.onProgress = fn
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Override reports the verdict computed for the image in slot A.
func (s *Session) Override() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.override
}

// SubmitImage stores an image in slot. Supplying slot A re-evaluates the
// special-case verdict. When the other slot is already filled the comparison
// starts immediately.
func (s *Session) SubmitImage(slot Slot, blob []byte, label string) error {
	if !slot.valid() {
		return fmt.Errorf("%w: %v", ErrInvalidSlot, slot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateComparing || s.state == StateComplete {
		s.discardLocked()
	}
	s.gen++

	s.slots[slot] = &Image{Blob: blob, Label: label}
	if slot == SlotA {
		s.override = s.classifier.Classify(label)
	}
	s.log.Debug("image submitted",
		"slot", slot.String(),
		"label", label,
		"bytes", len(blob),
		"override", s.override,
	)

	if s.slots[SlotA] == nil || s.slots[SlotB] == nil {
		s.state = StatePartial
		return nil
	}
	s.state = StateReady
	s.startLocked()
	return nil
}

// Reset discards the current request, cancelling any comparison in flight,
// and returns the session to the empty state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	s.gen++
}

func (s *Session) discardLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.slots = [2]*Image{}
	s.override = false
	s.state = StateEmpty
}

func (s *Session) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StateComparing

	a, b := s.slots[SlotA], s.slots[SlotB]
	go s.run(ctx, cancel, s.gen, a, b, s.override, s.onProgress != nil)
}

type outcome struct {
	res Result
	err error
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64, a, b *Image, override, withProgress bool) {
	defer cancel()

	if override {
		res, err := s.cmp.Compare(ctx, a, b, true)
		s.finish(gen, res, err)
		return
	}

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()

	var ticks <-chan int
	if withProgress {
		s.progress(gen, 0)
		ticks = s.ticker.Run(tickCtx)
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := s.cmp.Compare(ctx, a, b, false)
		done <- outcome{res, err}
	}()

	for {
		select {
		case p, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			s.progress(gen, p)
		case out := <-done:
			stopTicks()
			if s.finish(gen, out.res, out.err) && out.err == nil && withProgress {
				s.progress(gen, 100)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) progress(gen uint64, value int) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	fn := s.onProgress
	s.mu.Unlock()

	if fn != nil {
		fn(value)
	}
}

// finish moves the request to Complete and delivers the outcome. It reports
// false when the request was discarded in the meantime.
func (s *Session) finish(gen uint64, res Result, err error) bool {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if gen != s.gen || s.state != StateComparing {
		s.mu.Unlock()
		return false
	}
	s.state = StateComplete
	s.slots = [2]*Image{}
	s.cancel = nil
	fn := s.onResult
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("comparison failed", "error", err)
	} else {
		s.log.Debug("comparison delivered", "score", res.Score, "label", res.Label)
	}
	if fn != nil {
		fn(res, err)
	}
	return true
}
