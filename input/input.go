package input

// Package input provides a tiny abstraction over the pointer operations a
// drag gesture needs. The robotgo-backed implementation lives behind a cgo
// build tag; other builds get a stub that reports ErrUnavailable.

import (
	"strings"

	"github.com/pkg/errors"

	t "trenddraw/internal/types"
)

type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// ErrUnavailable is returned by every operation when no input backend was
// compiled in.
var ErrUnavailable = errors.New("pointer input unavailable: built without cgo")

// Pointer is the host input subsystem as seen by a drag. Calls are
// synchronous and take effect immediately.
type Pointer interface {
	// Position returns the current cursor position.
	Position() (t.Point, error)
	// MoveTo moves the cursor to absolute screen coordinates.
	MoveTo(x, y int) error
	// Click presses and releases btn.
	Click(btn Button) error
	// Down presses btn and keeps it held.
	Down(btn Button) error
	// Up releases btn. Releasing a button that is not held is harmless.
	Up(btn Button) error
}

// MapButton normalizes a user supplied button name.
func MapButton(b string) Button {
	switch strings.ToLower(b) {
	case "left", "l":
		return ButtonLeft
	case "right", "r":
		return ButtonRight
	case "center", "middle", "m":
		return ButtonMiddle
	default:
		return ButtonLeft
	}
}
