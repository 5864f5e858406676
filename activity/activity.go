// Package activity defines the handoff contract between the Training
// Session and the out-of-scope activity-file encoder (spec.md §6.6). It
// does not encode FIT/TCX files itself; it only describes the payload
// shape and the unit conversions imposed at the boundary, so the session
// never has to know about any particular wire format.
package activity

import (
	"math"
	"time"

	"github.com/olympum/oarsman/session"
)

// FITEpoch is the epoch FIT-format timestamps are relative to (spec.md
// §6.6). The encoder subtracts this from wall-clock time; the session
// itself always deals in time.Time/Unix milliseconds.
var FITEpoch = time.Date(1989, time.December, 31, 0, 0, 0, 0, time.UTC)

// Point is one converted sample, in the encoder's units: centimeters,
// millimeters-per-second, whole calories, and cadence 1:1 with stroke
// rate (spec.md §6.6).
type Point struct {
	ElapsedS     int64
	DistanceCm   int64
	SpeedMmPerS  int64
	Calories     int64
	CadenceSpm   int64
	TotalStrokes int64
	HeartRate    int
}

// Payload is the complete handoff: a converted summary plus the
// converted sample vector, ready for an encoder to serialize.
type Payload struct {
	SessionID      string
	DurationS      int64
	FinalDistanceCm int64
	TotalCalories  int64
	AvgHeartRate   float64
	MaxHeartRate   int
	AvgPowerW      float64
	MaxPowerW      float64
	Points         []Point
}

// Encoder turns a Payload into an industry-format activity file. The
// core ships no implementation; an out-of-scope orchestrator component
// supplies one (e.g. a FIT or TCX writer) and owns any upload client.
type Encoder interface {
	Encode(Payload) ([]byte, error)
}

// Convert applies the unit conversions spec.md §6.6 assigns to the
// encoder boundary: distance m → cm (×100), speed m/s → mm/s (×1000,
// rounded), stroke rate → cadence 1:1. Calories are copied unchanged: the
// session already holds them as whole kcal, computed from total_kcal by
// integer division (which truncates), so no rounding happens here.
func Convert(summary session.Summary, samples []session.Sample) Payload {
	points := make([]Point, 0, len(samples))
	for _, s := range samples {
		p := Point{ElapsedS: s.ElapsedS}
		if s.DistanceM != nil {
			p.DistanceCm = *s.DistanceM * 100
		}
		if s.SpeedMps != nil {
			p.SpeedMmPerS = int64(math.Round(*s.SpeedMps * 1000))
		}
		if s.Calories != nil {
			p.Calories = *s.Calories
		}
		if s.StrokeRate != nil {
			p.CadenceSpm = *s.StrokeRate
		}
		if s.TotalStrokes != nil {
			p.TotalStrokes = *s.TotalStrokes
		}
		if s.HeartRate != nil {
			p.HeartRate = *s.HeartRate
		}
		points = append(points, p)
	}

	return Payload{
		SessionID:       summary.ID,
		DurationS:       summary.DurationS,
		FinalDistanceCm: summary.FinalDistanceM * 100,
		TotalCalories:   summary.TotalCalories,
		AvgHeartRate:    summary.AvgHeartRate,
		MaxHeartRate:    summary.MaxHeartRate,
		AvgPowerW:       summary.AvgPowerW,
		MaxPowerW:       summary.MaxPowerW,
		Points:          points,
	}
}
