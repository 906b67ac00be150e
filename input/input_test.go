package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapButton(t *testing.T) {
	for in, want := range map[string]Button{
		"left":   ButtonLeft,
		"L":      ButtonLeft,
		"right":  ButtonRight,
		"r":      ButtonRight,
		"middle": ButtonMiddle,
		"center": ButtonMiddle,
		"":       ButtonLeft,
		"bogus":  ButtonLeft,
	} {
		assert.Equal(t, want, MapButton(in), in)
	}
}
