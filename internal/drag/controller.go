// Package drag performs a simulated press-drag-release gesture along a
// horizontal path and watches the pointer for user interference while the
// gesture is in flight. Interference cancels the drag and arms a restart from
// wherever the user left the pointer.
package drag

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"trenddraw/input"
	"trenddraw/internal/config"
	t "trenddraw/internal/types"
)

// ErrAlreadyRunning is returned by StartDrag when another drag holds the pointer.
var ErrAlreadyRunning = errors.New("drag already running")

// Observer receives drag lifecycle updates. Notify must not block.
type Observer interface {
	Notify(update t.StatusUpdate)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(t.StatusUpdate)

func (f ObserverFunc) Notify(update t.StatusUpdate) { f(update) }

// State is the mutable part of a drag. Running and Last are always read and
// written together under the controller lock.
type State struct {
	Running bool
	// Armed is set once the button is down; the monitor ignores the drag
	// until then.
	Armed bool
	// Last is the most recent monitor sample; only meaningful when Sampled.
	Last    t.Point
	Sampled bool
	Run     string
}

type Option func(*Controller)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithObserver registers an observer for lifecycle updates.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithRightEdge bounds how far right a resumed drag may travel.
func WithRightEdge(x int) Option {
	return func(c *Controller) { c.rightEdge = x }
}

// Controller owns the single drag of the process.
type Controller struct {
	cfg       config.Config
	pointer   input.Pointer
	button    input.Button
	clock     clock.Clock
	logger    golog.Logger
	observer  Observer
	rightEdge int

	ctx       context.Context
	cancelCtx context.CancelFunc
	workers   sync.WaitGroup

	mu      sync.Mutex
	state   State
	gen     uint64
	restart *clock.Timer
	closed  bool
}

// NewController returns a controller driving pointer with cfg. The config is
// expected to be valid.
func NewController(cfg config.Config, pointer input.Pointer, logger golog.Logger, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       cfg,
		pointer:   pointer,
		button:    input.MapButton(cfg.Button),
		clock:     clock.New(),
		logger:    logger,
		observer:  ObserverFunc(func(t.StatusUpdate) {}),
		ctx:       ctx,
		cancelCtx: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the drag state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether a drag currently holds the pointer.
func (c *Controller) Running() bool {
	return c.State().Running
}

// Position returns the current pointer position.
func (c *Controller) Position() (t.Point, error) {
	return c.pointer.Position()
}

type path struct {
	start       t.Point
	endX        int
	moveToStart bool
}

// plan works out where a drag goes. A nil from means the configured start;
// otherwise the drag resumes at from and travels the configured span,
// clamped to the allowed x range.
func (c *Controller) plan(from *t.Point) path {
	if from == nil {
		return path{
			start:       t.Point{X: c.cfg.StartX, Y: c.cfg.Y},
			endX:        c.cfg.EndX,
			moveToStart: true,
		}
	}
	span := c.cfg.Span()
	end := from.X + span
	switch {
	case span < 0:
		end = max(end, c.cfg.MinX)
		end = min(end, from.X)
	case span > 0:
		if c.rightEdge > 0 {
			end = min(end, c.rightEdge)
		}
		end = max(end, from.X)
	}
	return path{start: *from, endX: end}
}

// StartDrag runs one drag to completion, cancellation or failure. It blocks
// for the configured duration. from is nil to start at the configured start
// coordinate, or the point to resume from.
func (c *Controller) StartDrag(ctx context.Context, from *t.Point) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("controller closed")
	}
	if c.state.Running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.gen++
	gen := c.gen
	run := uuid.NewString()
	c.state = State{Running: true, Run: run}
	c.mu.Unlock()

	p := c.plan(from)
	n := c.cfg.StepCount(p.start.X, p.endX)
	delay := c.cfg.StepDelay(n)
	to := t.Point{X: p.endX, Y: p.start.Y}

	c.logger.Infow("starting horizontal drag", "run", run, "from", p.start, "to", to, "steps", n, "step_delay", delay)
	c.observer.Notify(t.StatusUpdate{Kind: t.EventStarted, Run: run, From: &p.start, To: &to, Steps: n})

	err := c.gesture(ctx, gen, p, n, delay)
	if err != nil {
		// the button may be held; let go before reporting
		if c.stop(gen, t.EventAborted) {
			c.logger.Warnw("drag aborted", "run", run, "error", err)
		}
		return err
	}

	c.mu.Lock()
	finished := c.gen == gen && c.state.Running
	if finished {
		c.state.Running = false
	}
	c.mu.Unlock()
	if !finished {
		c.logger.Debugw("drag loop exited after cancellation", "run", run)
		return nil
	}
	if err := c.pointer.Up(c.button); err != nil {
		return errors.Wrap(err, "release at end of drag")
	}
	c.logger.Infow("horizontal drag completed", "run", run)
	c.observer.Notify(t.StatusUpdate{Kind: t.EventCompleted, Run: run, To: &to})
	return nil
}

// gesture presses, traverses and returns with the button still held. It
// returns nil early, without touching the pointer further, once the drag is
// no longer the active one.
func (c *Controller) gesture(ctx context.Context, gen uint64, p path, n int, delay time.Duration) error {
	timing := c.cfg.Timing
	if p.moveToStart {
		if err := c.pointer.MoveTo(p.start.X, p.start.Y); err != nil {
			return errors.Wrap(err, "move to start")
		}
		if err := c.sleep(ctx, timing.SettleDelay.Duration); err != nil {
			return err
		}
	}

	// two clicks focus the chart
	if !c.active(gen) {
		return nil
	}
	if err := c.pointer.Click(c.button); err != nil {
		return errors.Wrap(err, "focus click")
	}
	if err := c.sleep(ctx, timing.FocusClickGap.Duration); err != nil {
		return err
	}
	if err := c.pointer.Click(c.button); err != nil {
		return errors.Wrap(err, "focus click")
	}
	if err := c.sleep(ctx, timing.SettleDelay.Duration); err != nil {
		return err
	}

	if !c.active(gen) {
		return nil
	}
	if err := c.pointer.Down(c.button); err != nil {
		return errors.Wrap(err, "press")
	}
	c.resetBaseline(gen)

	dir := 1.0
	if p.endX < p.start.X {
		dir = -1
	}
	for i := 1; i <= n; i++ {
		if !c.active(gen) {
			return nil
		}
		x := p.endX
		if i < n {
			x = int(math.Round(float64(p.start.X) + dir*float64(i)*c.cfg.Step))
		}
		if err := c.pointer.MoveTo(x, p.start.Y); err != nil {
			return errors.Wrapf(err, "move step %d", i)
		}
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// resetBaseline arms the monitor with the pointer as its baseline. Until
// then the move to start and the focus clicks are invisible to it.
func (c *Controller) resetBaseline(gen uint64) {
	pos, err := c.pointer.Position()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || !c.state.Running {
		return
	}
	c.state.Armed = true
	c.state.Last = pos
	c.state.Sampled = err == nil
}

func (c *Controller) active(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.state.Running
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

// Cancel stops the running drag and releases the button. Calling it with no
// drag running does nothing.
func (c *Controller) Cancel() {
	c.mu.Lock()
	run, ok := c.stopLocked()
	c.mu.Unlock()
	if ok {
		c.release(run, t.EventCancelled, nil)
	}
}

// stop cancels the drag only if gen is still the active one.
func (c *Controller) stop(gen uint64, kind t.EventKind) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	run, ok := c.stopLocked()
	c.mu.Unlock()
	if ok {
		c.release(run, kind, nil)
	}
	return ok
}

func (c *Controller) stopLocked() (string, bool) {
	if !c.state.Running {
		return "", false
	}
	c.state.Running = false
	return c.state.Run, true
}

func (c *Controller) release(run string, kind t.EventKind, at *t.Point) {
	if err := c.pointer.Up(c.button); err != nil {
		c.logger.Warnw("failed to release button", "run", run, "error", err)
	}
	c.logger.Infow("drawing interrupted", "run", run, "reason", kind)
	c.observer.Notify(t.StatusUpdate{Kind: kind, Run: run, From: at})
}

// Launch runs StartDrag in the background. Errors are logged.
func (c *Controller) Launch(from *t.Point) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.workers.Add(1)
	c.mu.Unlock()
	utils.PanicCapturingGo(func() {
		defer c.workers.Done()
		err := c.StartDrag(c.ctx, from)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
		case errors.Is(err, ErrAlreadyRunning):
			c.logger.Warnw("drag not started", "error", err)
		default:
			c.logger.Errorw("drag failed", "error", err)
		}
	})
}

// Close cancels any running drag and pending restart and waits for
// background drags to return. The controller cannot be reused.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.restart != nil {
		c.restart.Stop()
		c.restart = nil
	}
	c.mu.Unlock()

	c.Cancel()
	c.cancelCtx()
	c.workers.Wait()
}
