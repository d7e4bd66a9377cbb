package mot

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// closingRateEps is the smallest closing rate (1/px per second) treated as approaching
	closingRateEps = 1e-6
	// fpsEps guards against zero frame rate
	fpsEps = 1e-6
	// metricsPrecision is number of decimals kept for persisted track metrics
	metricsPrecision = 2
)

// Transition holds kinematics between two adjacent states of a track
type Transition struct {
	FromFrame int
	ToFrame   int
	// Elapsed time, seconds
	DT float64
	// Center displacement over DT, pixels per second
	Speed float64
	// Time-to-collision, seconds. Valid only when HasTTC is set
	TTC    float64
	HasTTC bool
}

// TTCFromHeights estimates time-to-collision from box height growth.
// The distance proxy is 1/h: projected height grows as the object gets closer.
// Second return value is false when heights are degenerate or the object is not approaching.
func TTCFromHeights(hPrev, hCurr, dt float64) (float64, bool) {
	if hPrev <= 0 || hCurr <= 0 || dt <= 0 {
		return 0, false
	}
	dPrev, dCurr := 1.0/hPrev, 1.0/hCurr
	v := (dPrev - dCurr) / dt
	if v <= closingRateEps {
		return 0, false
	}
	return dCurr / v, true
}

// Transitions computes per-transition kinematics for the given states.
// Pairs with non-positive elapsed time are skipped.
func Transitions(states []State, fps float64) []Transition {
	if len(states) < 2 {
		return nil
	}
	rate := math.Max(fpsEps, fps)
	transitions := make([]Transition, 0, len(states)-1)
	for i := 1; i < len(states); i++ {
		a, b := states[i-1], states[i]
		dt := float64(b.FrameIndex-a.FrameIndex) / rate
		if dt <= 0 {
			continue
		}
		tr := Transition{
			FromFrame: a.FrameIndex,
			ToFrame:   b.FrameIndex,
			DT:        dt,
			Speed:     euclideanDistance(a.Center, b.Center) / dt,
		}
		tr.TTC, tr.HasTTC = TTCFromHeights(a.Size.H, b.Size.H, dt)
		transitions = append(transitions, tr)
	}
	return transitions
}

// TTCSeries returns valid time-to-collision values in transition order
func TTCSeries(states []State, fps float64) []float64 {
	transitions := Transitions(states, fps)
	ttcs := make([]float64, 0, len(transitions))
	for _, tr := range transitions {
		if tr.HasTTC {
			ttcs = append(ttcs, tr.TTC)
		}
	}
	return ttcs
}

// Metrics is track-level summary of kinematics
type Metrics struct {
	MeanSpeed float64
	MinTTC    float64
	HasMinTTC bool
}

// EstimateMetrics aggregates transitions: mean of speeds (0 when none) and minimum of valid TTCs.
func EstimateMetrics(states []State, fps float64) Metrics {
	transitions := Transitions(states, fps)
	speeds := make([]float64, 0, len(transitions))
	ttcs := make([]float64, 0, len(transitions))
	for _, tr := range transitions {
		speeds = append(speeds, tr.Speed)
		if tr.HasTTC {
			ttcs = append(ttcs, tr.TTC)
		}
	}
	m := Metrics{}
	if len(speeds) > 0 {
		m.MeanSpeed = stat.Mean(speeds, nil)
	}
	if len(ttcs) > 0 {
		m.MinTTC = floats.Min(ttcs)
		m.HasMinTTC = true
	}
	return m
}

// ComputeMetrics fills MeanSpeed and MinTTC of the track from its full state history.
// Values are rounded to two decimals since they are persisted as is.
func (track *Track) ComputeMetrics(fps float64) {
	m := EstimateMetrics(track.States, fps)
	track.MeanSpeed = roundTo(m.MeanSpeed, metricsPrecision)
	track.MinTTC = nil
	if m.HasMinTTC {
		v := roundTo(m.MinTTC, metricsPrecision)
		track.MinTTC = &v
	}
}
