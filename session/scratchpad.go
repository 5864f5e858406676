package session

import "math"

// scratchpad is the Session's exclusively-owned current-values table
// (spec.md §3 "Ownership"), updated from arriving S4/HRM samples per the
// mapping rule in spec.md §4.E.
type scratchpad struct {
	strokeRate   int64
	hasStroke    bool
	distance     int64
	hasDistance  bool
	calories     int64
	hasCalories  bool
	totalStrokes int64
	hasStrokes   bool
	speed        float64
	hasSpeed     bool
	power        float64
	hasPower     bool
	heartRate    int
	hasHeartRate bool
}

func (s *scratchpad) applyS4(registerName string, value int64) {
	switch registerName {
	case "stroke_rate":
		s.strokeRate = value
		s.hasStroke = true
	case "distance":
		if !s.hasDistance || value > s.distance {
			s.distance = value
		}
		s.hasDistance = true
	case "total_kcal":
		cal := value / 1000
		if !s.hasCalories || cal > s.calories {
			s.calories = cal
		}
		s.hasCalories = true
	case "strokes_cnt":
		s.totalStrokes = value
		s.hasStrokes = true
	case "m_s_total":
		speed := float64(value) / 100
		s.speed = speed
		s.hasSpeed = true
		if speed > 0 {
			s.power = 2.8 * math.Pow(speed, 3)
			s.hasPower = true
		}
	}
}

func (s *scratchpad) applyHeartRate(bpm int) {
	s.heartRate = bpm
	s.hasHeartRate = true
}
