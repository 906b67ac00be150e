// Package signals turns external triggers (keyboard chords, remote
// commands) into a stream of tagged signals without payload.
package signals

import (
	"context"
	"sync"
)

// Signal is a discrete trigger.
type Signal int

const (
	// Terminate asks the process to clean up and exit.
	Terminate Signal = iota + 1
	// ScheduleDraw arms a delayed drag from the current pointer position.
	ScheduleDraw
	// Cancel stops the active drag and any pending start.
	Cancel
)

func (s Signal) String() string {
	switch s {
	case Terminate:
		return "terminate"
	case ScheduleDraw:
		return "schedule-draw"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Source produces signals until ctx is done. The returned channel is closed
// when the source stops.
type Source interface {
	Signals(ctx context.Context) (<-chan Signal, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context) (<-chan Signal, error)

func (f SourceFunc) Signals(ctx context.Context) (<-chan Signal, error) { return f(ctx) }

// Merge fans several signal channels into one. The result is closed once
// every input is closed or ctx is done.
func Merge(ctx context.Context, chans ...<-chan Signal) <-chan Signal {
	out := make(chan Signal)
	var wg sync.WaitGroup
	wg.Add(len(chans))
	for _, ch := range chans {
		go func(ch <-chan Signal) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case s, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- s:
					case <-ctx.Done():
						return
					}
				}
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// send delivers s without blocking the producer; a full channel drops it.
func send(ch chan<- Signal, s Signal) bool {
	select {
	case ch <- s:
		return true
	default:
		return false
	}
}
