package display

import (
	"image"

	"github.com/kbinani/screenshot"
	"github.com/pkg/errors"

	t "trenddraw/internal/types"
)

// ErrNoDisplay is returned when the requested display is not active.
var ErrNoDisplay = errors.New("no active display")

// Bounds returns the bounds of the given display index.
func Bounds(display int) (image.Rectangle, error) {
	if display < 0 {
		return image.Rectangle{}, errors.Wrapf(ErrNoDisplay, "display %d", display)
	}
	num := screenshot.NumActiveDisplays()
	if display >= num {
		return image.Rectangle{}, errors.Wrapf(ErrNoDisplay, "display %d of %d", display, num)
	}
	b := screenshot.GetDisplayBounds(display)
	if b.Empty() {
		return image.Rectangle{}, errors.Wrapf(ErrNoDisplay, "display %d reports empty bounds", display)
	}
	return b, nil
}

// Contains reports whether every point lies within r.
func Contains(r image.Rectangle, pts ...t.Point) error {
	for _, p := range pts {
		if !image.Pt(p.X, p.Y).In(r) {
			return errors.Errorf("point %s outside display %v", p, r)
		}
	}
	return nil
}
