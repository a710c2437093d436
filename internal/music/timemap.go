package music

import (
	"fmt"
	"math"
)

const (
	microsPerMinute = 60_000_000.0
	tempoEpsilon    = 1e-9
)

// TimeMap converts beat positions within a segment to microseconds, with the
// tempo ramping linearly from the first beat to the last.
type TimeMap struct {
	fromTempo  float64
	toTempo    float64
	totalBeats float64
}

func NewTimeMap(fromTempo, toTempo, totalBeats float64) (*TimeMap, error) {
	if fromTempo <= 0 || toTempo <= 0 {
		return nil, fmt.Errorf("tempo must be positive, got %v to %v", fromTempo, toTempo)
	}
	if totalBeats <= 0 {
		return nil, fmt.Errorf("total beats must be positive, got %v", totalBeats)
	}
	return &TimeMap{fromTempo: fromTempo, toTempo: toTempo, totalBeats: totalBeats}, nil
}

func (m *TimeMap) isConstant() bool {
	return math.Abs(m.toTempo-m.fromTempo) < tempoEpsilon
}

func (m *TimeMap) tempoAt(position float64) float64 {
	return m.fromTempo + (m.toTempo-m.fromTempo)*position/m.totalBeats
}

// MicrosAtPosition integrates beat duration over the ramp up to position.
func (m *TimeMap) MicrosAtPosition(position float64) int64 {
	if m.isConstant() {
		return int64(math.Round(microsPerMinute * position / m.fromTempo))
	}
	slope := (m.toTempo - m.fromTempo) / m.totalBeats
	return int64(math.Round(microsPerMinute / slope * math.Log(m.tempoAt(position)/m.fromTempo)))
}

func (m *TimeMap) TotalMicros() int64 {
	return m.MicrosAtPosition(m.totalBeats)
}

// PositionAtMicros is the inverse of MicrosAtPosition.
func (m *TimeMap) PositionAtMicros(micros int64) float64 {
	if m.isConstant() {
		return float64(micros) * m.fromTempo / microsPerMinute
	}
	slope := (m.toTempo - m.fromTempo) / m.totalBeats
	return m.fromTempo * (math.Exp(float64(micros)*slope/microsPerMinute) - 1) / slope
}
