//go:build !cgo

package input

// Pure-Go builds cannot reach the host input subsystem.

// NewPointer reports ErrUnavailable when built without cgo.
func NewPointer() (Pointer, error) { return nil, ErrUnavailable }
