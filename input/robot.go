//go:build cgo

package input

import (
	"github.com/go-vgo/robotgo"
	"github.com/pkg/errors"

	t "trenddraw/internal/types"
)

// Robot drives the local pointer through robotgo.
type Robot struct{}

// NewPointer returns the robotgo backed pointer.
func NewPointer() (Pointer, error) {
	return Robot{}, nil
}

func (Robot) Position() (t.Point, error) {
	x, y := robotgo.Location()
	return t.Point{X: x, Y: y}, nil
}

func (Robot) MoveTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (Robot) Click(btn Button) error {
	robotgo.Click(string(btn), false)
	return nil
}

func (Robot) Down(btn Button) error {
	return errors.Wrapf(robotgo.Toggle(string(btn), "down"), "press %s", btn)
}

func (Robot) Up(btn Button) error {
	return errors.Wrapf(robotgo.Toggle(string(btn), "up"), "release %s", btn)
}
