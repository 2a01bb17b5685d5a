package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/xswordsx/imgcompare/internal/logging"
)

// progressLine renders session progress as a single rewritten terminal line
// and debug-logs it in coarse steps. Once stopped it ignores late updates, so
// nothing is written after the result has been printed.
type progressLine struct {
	mu          sync.Mutex
	w           io.Writer
	interactive bool
	log         *slog.Logger
	sampler     *logging.ProgressSampler
	drawn       bool
	stopped     bool
}

func newProgressLine(w io.Writer, interactive bool, log *slog.Logger) *progressLine {
	return &progressLine{
		w:           w,
		interactive: interactive,
		log:         log,
		sampler:     logging.NewProgressSampler(25),
	}
}

func (p *progressLine) update(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if p.sampler.ShouldLog(percent) {
		p.log.Debug("compare progress", "percent", percent)
	}
	if p.interactive {
		fmt.Fprintf(p.w, "\rComparing... %3d%%", percent)
		p.drawn = true
	}
}

// stop ends the line. Callers invoke it before printing anything else.
func (p *progressLine) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.drawn {
		fmt.Fprintln(p.w)
	}
}
