// Package trigger decides when drags start: once after a startup delay, and
// whenever a schedule chord arrives.
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"

	"trenddraw/internal/config"
	"trenddraw/internal/drag"
	"trenddraw/internal/signals"
	t "trenddraw/internal/types"
)

// Drags is the part of drag.Controller the scheduler drives.
type Drags interface {
	Running() bool
	Cancel()
	CancelRestart() bool
	Launch(from *t.Point)
	Position() (t.Point, error)
}

type Option func(*Scheduler)

func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) { s.clock = clk }
}

func WithObserver(o drag.Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// Scheduler holds at most one pending start.
type Scheduler struct {
	drags        Drags
	logger       golog.Logger
	clock        clock.Clock
	observer     drag.Observer
	startupDelay time.Duration
	chordDelay   time.Duration

	mu      sync.Mutex
	pending *clock.Timer
	stopped bool
}

func NewScheduler(drags Drags, timing config.Timing, logger golog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		drags:        drags,
		logger:       logger,
		clock:        clock.New(),
		observer:     drag.ObserverFunc(func(t.StatusUpdate) {}),
		startupDelay: timing.StartupDelay.Duration,
		chordDelay:   timing.ChordDelay.Duration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleStartup arms a drag from the configured start coordinate.
func (s *Scheduler) ScheduleStartup() {
	s.logger.Infow("drawing starts soon, focus the chart", "in", s.startupDelay)
	s.arm(s.startupDelay, func() {
		s.logger.Info("starting drag from configured start")
		s.drags.Launch(nil)
	})
}

// ScheduleDraw cancels any active drag and arms a new one from wherever the
// pointer is when the delay expires.
func (s *Scheduler) ScheduleDraw() {
	if s.drags.Running() {
		s.logger.Info("stopping active drag before rescheduling")
	}
	s.drags.Cancel()
	s.drags.CancelRestart()

	s.logger.Infow("drawing scheduled", "in", s.chordDelay)
	s.arm(s.chordDelay, func() {
		pos, err := s.drags.Position()
		if err != nil {
			s.logger.Warnw("cannot read pointer, using configured start", "error", err)
			s.drags.Launch(nil)
			return
		}
		s.logger.Infow("starting scheduled drag from current position", "from", pos)
		s.drags.Launch(&pos)
	})
}

// CancelAll stops the active drag together with any pending start or restart.
func (s *Scheduler) CancelAll() {
	s.disarm()
	// cancel first: an interruption seen before the cancel lands arms a
	// restart that CancelRestart then drops
	s.drags.Cancel()
	s.drags.CancelRestart()
}

func (s *Scheduler) arm(delay time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
	}
	var timer *clock.Timer
	timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.pending != timer || s.stopped {
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.mu.Unlock()
		fire()
	})
	s.pending = timer
	s.observer.Notify(t.StatusUpdate{Kind: t.EventStartScheduled, DelayMS: delay.Milliseconds()})
}

func (s *Scheduler) disarm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return false
	}
	s.pending.Stop()
	s.pending = nil
	return true
}

// Pending reports whether a start is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Run dispatches signals until a terminate signal arrives or ctx is done. It
// returns nil on terminate and ctx.Err() otherwise. A closed signal channel
// leaves the scheduler waiting on ctx.
func (s *Scheduler) Run(ctx context.Context, sigs <-chan signals.Signal) error {
	defer s.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-sigs:
			if !ok {
				s.logger.Debug("signal sources closed")
				sigs = nil
				continue
			}
			s.logger.Debugw("signal", "signal", sig)
			switch sig {
			case signals.Terminate:
				s.logger.Info("terminate requested")
				return nil
			case signals.ScheduleDraw:
				s.ScheduleDraw()
			case signals.Cancel:
				s.CancelAll()
			}
		}
	}
}

// Stop disarms the pending start; later arms are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
