//go:build cgo

package signals

import (
	"context"

	hook "github.com/robotn/gohook"
)

// Signals starts the global keyboard hook. It stops when ctx is done.
func (h *Hotkeys) Signals(ctx context.Context) (<-chan Signal, error) {
	out := make(chan Signal, 4)
	hook.Register(hook.KeyDown, h.schedule, func(hook.Event) { h.emit(ctx, out, ScheduleDraw) })
	hook.Register(hook.KeyDown, h.terminate, func(hook.Event) { h.emit(ctx, out, Terminate) })

	evs := hook.Start()
	done := hook.Process(evs)
	h.logger.Debugw("keyboard hook started", "schedule", h.schedule, "terminate", h.terminate)

	go func() {
		select {
		case <-ctx.Done():
			hook.End()
			<-done
		case <-done:
		}
		close(out)
		h.logger.Debug("keyboard hook stopped")
	}()
	return out, nil
}
