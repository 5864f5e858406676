package s4

import (
	"time"

	"github.com/olympum/oarsman/frame"
)

// State is the S4 Driver's connection state machine (spec.md §4.B).
type State int

const (
	Disconnected State = iota
	Opening
	Initialising
	Ready
	Closing
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Initialising:
		return "initialising"
	case Ready:
		return "ready"
	case Closing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Read is one classified inbound frame plus its arrival time, the unit
// recording and replay operate on (spec.md §3 "Raw read").
type Read struct {
	TimeMs  int64
	Kind    frame.Kind
	Payload string
}

// Sample is a decoded register value, the unit datapoints$ carries
// (spec.md §3 "Decoded sample").
type Sample struct {
	Time         time.Time
	RegisterName string
	Address      string
	Width        frame.Width
	Value        int64
}

// Units for define_distance_workout (spec.md §4.B, §6.1).
type DistanceUnit string

const (
	UnitMeters DistanceUnit = "1"
)

// DisplayCode is a wire code for the DD{code} display-set commands
// (spec.md §6.3).
type DisplayCode string

const (
	DisplayMeters  DisplayCode = "ME"
	DisplayMiles   DisplayCode = "MI"
	DisplayKm      DisplayCode = "KM"
	DisplayStrokes DisplayCode = "ST"
	DisplayMS      DisplayCode = "MS"
	DisplayMPH     DisplayCode = "MPH"
	Display500m    DisplayCode = "500"
	Display2km     DisplayCode = "2KM"
	DisplayWatts   DisplayCode = "WA"
	DisplayCalH    DisplayCode = "CH"
)
