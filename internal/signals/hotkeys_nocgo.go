//go:build !cgo

package signals

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNoHook is returned when the keyboard hook was not compiled in.
var ErrNoHook = errors.New("keyboard hook unavailable: built without cgo")

func (h *Hotkeys) Signals(ctx context.Context) (<-chan Signal, error) {
	return nil, ErrNoHook
}
