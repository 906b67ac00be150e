package signals

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
)

// DefaultDebounce swallows repeats of a chord held down.
const DefaultDebounce = time.Second

// Hotkeys listens for global keyboard chords. Only one Hotkeys may listen at
// a time since the underlying hook is process wide.
type Hotkeys struct {
	schedule  Chord
	terminate Chord
	logger    golog.Logger
	clock     clock.Clock
	debounce  time.Duration

	mu   sync.Mutex
	last map[Signal]time.Time
}

// NewHotkeys parses the two chords.
func NewHotkeys(schedule, terminate string, logger golog.Logger) (*Hotkeys, error) {
	sc, err := ParseChord(schedule)
	if err != nil {
		return nil, err
	}
	tc, err := ParseChord(terminate)
	if err != nil {
		return nil, err
	}
	return &Hotkeys{
		schedule:  sc,
		terminate: tc,
		logger:    logger,
		clock:     clock.New(),
		debounce:  DefaultDebounce,
		last:      map[Signal]time.Time{},
	}, nil
}

// Describe lists the chords for the startup banner.
func (h *Hotkeys) Describe() map[Signal]Chord {
	return map[Signal]Chord{ScheduleDraw: h.schedule, Terminate: h.terminate}
}

// emit delivers a detected chord. Terminate waits for room until ctx is done;
// other signals are dropped when the consumer is behind.
func (h *Hotkeys) emit(ctx context.Context, ch chan<- Signal, s Signal) {
	now := h.clock.Now()
	h.mu.Lock()
	if last, ok := h.last[s]; ok && now.Sub(last) < h.debounce {
		h.mu.Unlock()
		return
	}
	h.last[s] = now
	h.mu.Unlock()

	h.logger.Infow("chord detected", "signal", s)
	if s == Terminate {
		select {
		case ch <- s:
		case <-ctx.Done():
		}
		return
	}
	if !send(ch, s) {
		h.logger.Warnw("dropping chord, consumer busy", "signal", s)
	}
}
