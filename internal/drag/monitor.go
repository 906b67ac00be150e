package drag

import (
	"context"

	"github.com/benbjohnson/clock"

	t "trenddraw/internal/types"
)

// RunMonitor samples the pointer every monitor interval until ctx is done.
func (c *Controller) RunMonitor(ctx context.Context) {
	ticker := c.clock.Ticker(c.cfg.Monitor.Interval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.MonitorTick()
		}
	}
}

// MonitorTick takes one pointer sample and reports whether it found
// interference. Drags that have not pressed the button yet are ignored, and
// the first sample of a drag only becomes the baseline. A move
// of more than the threshold on either axis since the previous sample cancels
// the drag and arms a restart from the sampled position.
func (c *Controller) MonitorTick() bool {
	c.mu.Lock()
	if !c.state.Running || !c.state.Armed {
		c.mu.Unlock()
		return false
	}
	pos, err := c.pointer.Position()
	if err != nil {
		c.mu.Unlock()
		c.logger.Debugw("skipping pointer sample", "error", err)
		return false
	}
	if !c.state.Sampled {
		c.state.Last = pos
		c.state.Sampled = true
		c.mu.Unlock()
		return false
	}
	delta := t.Point{X: abs(pos.X - c.state.Last.X), Y: abs(pos.Y - c.state.Last.Y)}
	c.state.Last = pos
	threshold := c.cfg.Monitor.Threshold
	if delta.X <= threshold && delta.Y <= threshold {
		c.mu.Unlock()
		return false
	}
	run, _ := c.stopLocked()
	c.mu.Unlock()

	c.logger.Infow("user movement detected", "run", run, "dx", delta.X, "dy", delta.Y)
	c.release(run, t.EventInterrupted, &pos)
	c.scheduleRestart(pos)
	return true
}

// scheduleRestart arms a single pending restart from pos, replacing any
// restart already pending.
func (c *Controller) scheduleRestart(pos t.Point) {
	delay := c.cfg.Monitor.RestartDelay.Duration

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.restart != nil {
		c.restart.Stop()
	}
	var timer *clock.Timer
	timer = c.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.restart != timer {
			c.mu.Unlock()
			return
		}
		c.restart = nil
		c.mu.Unlock()
		c.logger.Infow("restarting drag from interrupted position", "from", pos)
		c.Launch(&pos)
	})
	c.restart = timer
	c.mu.Unlock()

	c.logger.Infow("drag will restart", "in", delay, "from", pos)
	c.observer.Notify(t.StatusUpdate{Kind: t.EventRestartScheduled, From: &pos, DelayMS: delay.Milliseconds()})
}

// CancelRestart drops a pending restart, if any.
func (c *Controller) CancelRestart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.restart == nil {
		return false
	}
	c.restart.Stop()
	c.restart = nil
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
