package drag

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trenddraw/input"
	"trenddraw/internal/config"
	"trenddraw/internal/types"
)

type fakePointer struct {
	mu      sync.Mutex
	pos     types.Point
	posErr  error
	moves   []types.Point
	clicks  int
	downs   int
	ups     int
	onMove  func(i int)
	downErr error
}

func (p *fakePointer) Position() (types.Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos, p.posErr
}

func (p *fakePointer) MoveTo(x, y int) error {
	p.mu.Lock()
	p.moves = append(p.moves, types.Point{X: x, Y: y})
	p.pos = types.Point{X: x, Y: y}
	n := len(p.moves)
	hook := p.onMove
	p.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (p *fakePointer) Click(input.Button) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks++
	return nil
}

func (p *fakePointer) Down(input.Button) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downs++
	return p.downErr
}

func (p *fakePointer) Up(input.Button) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ups++
	return nil
}

func (p *fakePointer) setPos(x, y int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = types.Point{X: x, Y: y}
}

func (p *fakePointer) counts() (moves, clicks, downs, ups int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.moves), p.clicks, p.downs, p.ups
}

// instantClock never blocks in After and records every requested sleep.
type instantClock struct {
	*clock.Mock
	mu     sync.Mutex
	sleeps []time.Duration
}

func newInstantClock() *instantClock {
	return &instantClock{Mock: clock.NewMock()}
}

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- c.Mock.Now()
	return ch
}

func (c *instantClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type recorder struct {
	mu      sync.Mutex
	updates []types.StatusUpdate
}

func (r *recorder) Notify(u types.StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) kinds() []types.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.EventKind
	for _, u := range r.updates {
		out = append(out, u.Kind)
	}
	return out
}

func (r *recorder) find(kind types.EventKind) (types.StatusUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.updates {
		if u.Kind == kind {
			return u, true
		}
	}
	return types.StatusUpdate{}, false
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Duration = config.D(30 * time.Second)
	return cfg
}

func newTestController(tb testing.TB, cfg config.Config, p *fakePointer, clk clock.Clock) (*Controller, *recorder) {
	rec := &recorder{}
	c := NewController(cfg, p, golog.NewTestLogger(tb), WithClock(clk), WithObserver(rec))
	tb.Cleanup(c.Close)
	return c, rec
}

func TestStartDragFromConfiguredStart(t *testing.T) {
	cfg := testConfig()
	p := &fakePointer{}
	clk := newInstantClock()
	c, rec := newTestController(t, cfg, p, clk)

	require.NoError(t, c.StartDrag(context.Background(), nil))

	n := cfg.StepCount(cfg.StartX, cfg.EndX)
	require.Equal(t, 1429, n)

	moves, clicks, downs, ups := p.counts()
	// one move to the start, then one per step
	assert.Equal(t, n+1, moves)
	assert.Equal(t, 2, clicks)
	assert.Equal(t, 1, downs)
	assert.Equal(t, 1, ups)

	p.mu.Lock()
	assert.Equal(t, types.Point{X: 1500, Y: 500}, p.moves[0])
	assert.Equal(t, types.Point{X: 1499, Y: 500}, p.moves[1])
	assert.Equal(t, types.Point{X: 500, Y: 500}, p.moves[len(p.moves)-1])
	for i := 1; i < len(p.moves); i++ {
		assert.LessOrEqual(t, p.moves[i].X, p.moves[i-1].X)
	}
	p.mu.Unlock()

	sleeps := clk.recorded()
	// settle after the move, the gap between clicks, settle after the clicks
	require.Len(t, sleeps, n+3)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 100 * time.Millisecond, 500 * time.Millisecond}, sleeps[:3])
	var traversal time.Duration
	for _, d := range sleeps[3:] {
		traversal += d
	}
	delay := cfg.StepDelay(n)
	assert.InDelta(t, float64(30*time.Second), float64(traversal), float64(delay))

	assert.False(t, c.Running())
	assert.Equal(t, []types.EventKind{types.EventStarted, types.EventCompleted}, rec.kinds())
	started, _ := rec.find(types.EventStarted)
	assert.Equal(t, n, started.Steps)
	assert.NotEmpty(t, started.Run)
}

func TestStartDragStepCounts(t *testing.T) {
	for _, tc := range []struct {
		start, end int
		step       float64
		duration   time.Duration
	}{
		{1500, 500, 0.7, 30 * time.Second},
		{500, 1500, 0.7, 30 * time.Second},
		{100, 90, 3, time.Second},
		{0, 7, 0.7, 700 * time.Millisecond},
		{200, 100, 1, 0},
	} {
		cfg := testConfig()
		cfg.StartX, cfg.EndX, cfg.Step, cfg.Duration = tc.start, tc.end, tc.step, config.D(tc.duration)
		p := &fakePointer{}
		clk := newInstantClock()
		c, _ := newTestController(t, cfg, p, clk)

		require.NoError(t, c.StartDrag(context.Background(), nil))

		n := cfg.StepCount(tc.start, tc.end)
		moves, _, _, ups := p.counts()
		assert.Equal(t, n+1, moves, "%+v", tc)
		assert.Equal(t, 1, ups, "%+v", tc)

		p.mu.Lock()
		assert.Equal(t, tc.end, p.moves[len(p.moves)-1].X, "%+v", tc)
		p.mu.Unlock()

		var traversal time.Duration
		for _, d := range clk.recorded()[3:] {
			traversal += d
		}
		assert.InDelta(t, float64(tc.duration), float64(traversal), float64(cfg.StepDelay(n))+1, "%+v", tc)
	}
}

func TestStartDragZeroDistance(t *testing.T) {
	cfg := testConfig()
	cfg.StartX, cfg.EndX = 500, 500
	p := &fakePointer{}
	c, rec := newTestController(t, cfg, p, newInstantClock())

	require.NoError(t, c.StartDrag(context.Background(), nil))

	moves, clicks, downs, ups := p.counts()
	assert.Equal(t, 1, moves, "only the move to start")
	assert.Equal(t, 2, clicks)
	assert.Equal(t, 1, downs)
	assert.Equal(t, 1, ups)
	started, _ := rec.find(types.EventStarted)
	assert.Equal(t, 0, started.Steps)
}

func TestStartDragResume(t *testing.T) {
	cfg := testConfig()
	p := &fakePointer{pos: types.Point{X: 1200, Y: 640}}
	c, rec := newTestController(t, cfg, p, newInstantClock())

	from := types.Point{X: 1200, Y: 640}
	require.NoError(t, c.StartDrag(context.Background(), &from))

	moves, clicks, _, ups := p.counts()
	// no move to start; travels the configured span from the resume point
	assert.Equal(t, cfg.StepCount(1200, 200), moves)
	assert.Equal(t, 2, clicks)
	assert.Equal(t, 1, ups)
	p.mu.Lock()
	assert.Equal(t, types.Point{X: 1199, Y: 640}, p.moves[0])
	assert.Equal(t, types.Point{X: 200, Y: 640}, p.moves[len(p.moves)-1])
	p.mu.Unlock()

	started, _ := rec.find(types.EventStarted)
	require.NotNil(t, started.From)
	assert.Equal(t, from, *started.From)
}

func TestPlanClampsResume(t *testing.T) {
	cfg := testConfig()
	c := NewController(cfg, &fakePointer{}, golog.NewTestLogger(t))
	defer c.Close()

	assert.Equal(t, 10, c.plan(&types.Point{X: 400, Y: 1}).endX)
	assert.Equal(t, 5, c.plan(&types.Point{X: 5, Y: 1}).endX, "never reverses direction")
	assert.Equal(t, 300, c.plan(&types.Point{X: 1300, Y: 1}).endX)

	p := c.plan(nil)
	assert.True(t, p.moveToStart)
	assert.Equal(t, types.Point{X: 1500, Y: 500}, p.start)
	assert.Equal(t, 500, p.endX)

	cfg.StartX, cfg.EndX = 100, 600
	c2 := NewController(cfg, &fakePointer{}, golog.NewTestLogger(t), WithRightEdge(1920))
	defer c2.Close()
	assert.Equal(t, 1920, c2.plan(&types.Point{X: 1700, Y: 1}).endX)
	assert.Equal(t, 1000, c2.plan(&types.Point{X: 500, Y: 1}).endX)
}

func TestStartDragAlreadyRunning(t *testing.T) {
	p := &fakePointer{}
	c, _ := newTestController(t, testConfig(), p, newInstantClock())
	c.state.Running = true

	err := c.StartDrag(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
	moves, _, downs, _ := p.counts()
	assert.Zero(t, moves)
	assert.Zero(t, downs)
}

func TestCancelMidTraversal(t *testing.T) {
	cfg := testConfig()
	p := &fakePointer{}
	c, rec := newTestController(t, cfg, p, newInstantClock())
	p.onMove = func(i int) {
		if i == 10 {
			c.Cancel()
		}
	}

	require.NoError(t, c.StartDrag(context.Background(), nil))

	moves, _, downs, ups := p.counts()
	// the loop notices the cancellation at the next step
	assert.Equal(t, 10, moves)
	assert.Equal(t, 1, downs)
	assert.Equal(t, 1, ups, "released by cancel only")
	assert.False(t, c.Running())
	assert.Equal(t, []types.EventKind{types.EventStarted, types.EventCancelled}, rec.kinds())
}

func TestCancelIsIdempotent(t *testing.T) {
	p := &fakePointer{}
	c, rec := newTestController(t, testConfig(), p, newInstantClock())

	c.Cancel()
	_, _, _, ups := p.counts()
	assert.Zero(t, ups, "nothing to release when idle")

	c.state = State{Running: true, Run: "r1"}
	c.Cancel()
	c.Cancel()
	_, _, _, ups = p.counts()
	assert.Equal(t, 1, ups)
	assert.False(t, c.Running())
	assert.Equal(t, []types.EventKind{types.EventCancelled}, rec.kinds())
}

func TestStartDragContextCancelled(t *testing.T) {
	p := &fakePointer{}
	clk := clock.NewMock()
	c, _ := newTestController(t, testConfig(), p, clk)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.StartDrag(ctx, nil) }()

	require.Eventually(t, c.Running, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("drag did not return")
	}
	assert.False(t, c.Running())
}

func TestStartDragPressFailure(t *testing.T) {
	p := &fakePointer{downErr: errors.New("no access")}
	c, rec := newTestController(t, testConfig(), p, newInstantClock())

	err := c.StartDrag(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access")
	_, _, _, ups := p.counts()
	assert.Equal(t, 1, ups)
	assert.False(t, c.Running())
	assert.Equal(t, []types.EventKind{types.EventStarted, types.EventAborted}, rec.kinds())
}

func TestCloseCancelsRunningDrag(t *testing.T) {
	p := &fakePointer{}
	clk := clock.NewMock()
	c := NewController(testConfig(), p, golog.NewTestLogger(t), WithClock(clk))

	c.Launch(nil)
	require.Eventually(t, c.Running, time.Second, time.Millisecond)

	c.Close()
	assert.False(t, c.Running())
	_, _, _, ups := p.counts()
	assert.Equal(t, 1, ups)

	// no-ops once closed
	c.Launch(nil)
	c.Close()
	assert.Error(t, c.StartDrag(context.Background(), nil))
}

func TestMonitorIgnoresMoveToStart(t *testing.T) {
	// the user's cursor is far from the configured start
	p := &fakePointer{pos: types.Point{X: 100, Y: 100}}
	rec := &recorder{}
	var c *Controller
	observer := ObserverFunc(func(u types.StatusUpdate) {
		rec.Notify(u)
		if u.Kind == types.EventStarted {
			assert.False(t, c.MonitorTick())
		}
	})
	c = NewController(testConfig(), p, golog.NewTestLogger(t), WithClock(newInstantClock()), WithObserver(observer))
	t.Cleanup(c.Close)

	p.onMove = func(i int) {
		switch i {
		case 1:
			// jumped to the start, button not pressed yet
			assert.False(t, c.MonitorTick())
			assert.False(t, c.State().Armed)
		case 3:
			// armed by the press; one step from the baseline is not interference
			assert.False(t, c.MonitorTick())
			assert.True(t, c.State().Sampled)
		}
	}

	require.NoError(t, c.StartDrag(context.Background(), nil))

	_, _, downs, ups := p.counts()
	assert.Equal(t, 1, downs)
	assert.Equal(t, 1, ups)
	assert.Equal(t, []types.EventKind{types.EventStarted, types.EventCompleted}, rec.kinds())
}
