package main

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter keeps one terminal line updated with the current session
// status and an elapsed or remaining time.
//
// A ProgressPrinter is single-use: Start at most once, Stop any number of times.
type ProgressPrinter struct {
	out        io.Writer
	prefix     string
	phase      atomic.Value        // string
	stopPhases map[string]struct{} // phases that end the display
	startTime  time.Time
	ticker     atomic.Pointer[time.Ticker]
	stopChan   chan struct{}
	done       chan struct{}
	started    atomic.Bool
	countUp    bool
	duration   time.Duration
}

// NewProgressPrinter creates a progress printer that shows elapsed time.
func NewProgressPrinter(out io.Writer, prefix string, phase string, stopPhases ...string) *ProgressPrinter {
	return newProgressPrinter(out, prefix, phase, true, 0, stopPhases)
}

// NewCountdownProgressPrinter creates a progress printer that counts down from duration.
func NewCountdownProgressPrinter(out io.Writer, prefix string, phase string, duration time.Duration, stopPhases ...string) *ProgressPrinter {
	return newProgressPrinter(out, prefix, phase, false, duration, stopPhases)
}

func newProgressPrinter(out io.Writer, prefix, phase string, countUp bool, duration time.Duration, stopPhases []string) *ProgressPrinter {
	stopSet := make(map[string]struct{}, len(stopPhases))
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	p := &ProgressPrinter{
		out:        out,
		prefix:     prefix,
		stopPhases: stopSet,
		countUp:    countUp,
		duration:   duration,
	}
	p.phase.Store(phase)
	return p
}

// Start begins displaying progress updates in a background goroutine.
// Panics if called more than once on the same ProgressPrinter instance.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	fmt.Fprintf(p.out, "\r%s (%s)   ", p.prefix, p.phase.Load().(string))
	go p.loop(ticker)
}

func (p *ProgressPrinter) loop(ticker *time.Ticker) {
	defer close(p.done)

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			phase := p.phase.Load().(string)
			if _, stop := p.stopPhases[phase]; stop {
				return
			}
			p.print(phase, p.seconds(time.Since(p.startTime)))
		}
	}
}

func (p *ProgressPrinter) seconds(elapsed time.Duration) int {
	if p.countUp {
		return int(elapsed.Seconds())
	}
	remaining := p.duration - elapsed
	if remaining <= 0 {
		return 0
	}
	// Round to the nearest second, e.g. 3.7s -> 4s
	return int(remaining.Seconds() + 0.5)
}

func (p *ProgressPrinter) print(phase string, seconds int) {
	if seconds > 0 {
		fmt.Fprintf(p.out, "\r%s (%s %ds)   ", p.prefix, phase, seconds)
	} else {
		fmt.Fprintf(p.out, "\r%s (%s)   ", p.prefix, phase)
	}
}

// Update sets the phase shown on the line. A stop phase ends the display.
// Safe for concurrent use.
func (p *ProgressPrinter) Update(phase string) {
	p.phase.Store(phase)
	if _, stop := p.stopPhases[phase]; stop {
		p.Stop()
	}
}

// Stop stops the progress display and clears the line.
// Only the first call has an effect.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Fprint(p.out, clearLineSequence)
}
