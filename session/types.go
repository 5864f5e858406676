// Package session implements the Training Session aggregator (spec.md
// §4.E): a state machine that subscribes to the S4 Driver's datapoints$ and
// the HRM Client's heart_rate$, folds them into a per-second scratchpad, and
// emits a minute-resolution sample vector plus a derived summary.
package session

import (
	"time"

	"github.com/google/uuid"
)

// State is the Training Session's state machine (spec.md §3, §4.E).
type State int

const (
	Idle State = iota
	Active
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	default:
		return "idle"
	}
}

// Sample is a per-second Training Sample snapshot (spec.md §3). Optional
// fields are nil until a source has produced at least one value.
type Sample struct {
	Timestamp    time.Time
	ElapsedS     int64
	DistanceM    *int64
	StrokeRate   *int64
	PowerW       *float64
	Calories     *int64
	HeartRate    *int
	SpeedMps     *float64
	TotalStrokes *int64
}

// Summary is derived from the sample vector on demand (spec.md §3).
type Summary struct {
	ID             string
	DurationS      int64
	FinalDistanceM int64
	AvgHeartRate   float64
	MaxHeartRate   int
	AvgPowerW      float64
	MaxPowerW      float64
	TotalCalories  int64
	TotalStrokes   int64
	SampleCount    int
}

// EventKind discriminates an Event's payload.
type EventKind int

const (
	EventStarted EventKind = iota
	EventPaused
	EventResumed
	EventStopped
	EventDatapoint
	EventError
)

// Event is the Session's unified signal stream (spec.md §4.E "Event signals
// emitted"), collapsing the reference's per-signal callbacks into one
// broadcast channel per spec.md §9.
type Event struct {
	Kind    EventKind
	Sample  *Sample
	Summary *Summary
	Err     error
}

func newSessionID() string { return uuid.NewString() }
