package types

import "fmt"

// Point is a screen coordinate.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Command represents incoming control messages from a remote client
type Command struct {
	Type string `json:"type"`
}

// Remote command types.
const (
	CommandSchedule  = "schedule"
	CommandTerminate = "terminate"
	CommandCancel    = "cancel"
)

// EventKind names a drag lifecycle transition.
type EventKind string

const (
	EventStarted          EventKind = "started"
	EventCompleted        EventKind = "completed"
	EventAborted          EventKind = "aborted"
	EventInterrupted      EventKind = "interrupted"
	EventCancelled        EventKind = "cancelled"
	EventRestartScheduled EventKind = "restart_scheduled"
	EventStartScheduled   EventKind = "start_scheduled"
)

// StatusUpdate is the outbound drag status payload
type StatusUpdate struct {
	Kind  EventKind `json:"kind"`
	Run   string    `json:"run,omitempty"`
	From  *Point    `json:"from,omitempty"`
	To    *Point    `json:"to,omitempty"`
	Delta *Point    `json:"delta,omitempty"`
	Steps int       `json:"steps,omitempty"`
	// DelayMS is the time until a scheduled start fires.
	DelayMS int64 `json:"delayMs,omitempty"`
}
