package imgcompare

import (
	"context"
	"time"
)

// Ticker produces advisory progress values on a timer, independent of how
// far the real work has got. Values climb by Step every Interval and stop at
// Ceiling, which is always below 100: only the caller that holds the real
// result may report 100.
type Ticker struct {
	Interval time.Duration
	Step     int
	Ceiling  int
}

// DefaultTicker climbs 10 points every 300ms and stalls at 90.
var DefaultTicker = Ticker{
	Interval: 300 * time.Millisecond,
	Step:     10,
	Ceiling:  90,
}

func (t Ticker) normalized() Ticker {
	if t.Interval <= 0 {
		t.Interval = DefaultTicker.Interval
	}
	if t.Step <= 0 {
		t.Step = DefaultTicker.Step
	}
	if t.Ceiling <= 0 {
		t.Ceiling = DefaultTicker.Ceiling
	}
	if t.Ceiling > 99 {
		t.Ceiling = 99
	}
	return t
}

// Run starts the ticker. The returned channel carries strictly increasing
// values and is closed once the ceiling is reached or ctx is done, whichever
// comes first. The starting 0 is not sent; callers report it themselves.
func (t Ticker) Run(ctx context.Context) <-chan int {
	t = t.normalized()
	ch := make(chan int)

	go func() {
		defer close(ch)
		tk := time.NewTicker(t.Interval)
		defer tk.Stop()

		value := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
			}
			value += t.Step
			if value > t.Ceiling {
				value = t.Ceiling
			}
			select {
			case ch <- value:
			case <-ctx.Done():
				return
			}
			if value >= t.Ceiling {
				return
			}
		}
	}()

	return ch
}
