// Package fault infers behavioral flags, risk buckets and probable causes from vehicle tracks.
//
// Every function here is pure: given the same tracks and thresholds it returns
// the same result, element order included.
package fault

import (
	"math"
	"sort"

	"github.com/LdDl/crashtruth-go/config"
	"github.com/LdDl/crashtruth-go/mot"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Flag is a behavioral signature of a single track
type Flag string

const (
	FlagSustainedLowTTC    Flag = "sustained_low_ttc"
	FlagHardApproach       Flag = "hard_approach"
	FlagLateralInstability Flag = "lateral_instability"
	FlagSuddenCutIn        Flag = "sudden_cutin"
	FlagVerySlowTrack      Flag = "very_slow_track"
)

// minLateralStates is minimal number of states to evaluate lateral instability
const minLateralStates = 4

// FlagTrack evaluates behavior rules over one track and returns a sorted set of flags.
// The TTC series is recomputed from states; the stored MinTTC is not used here,
// while MeanSpeed is taken as stored.
func FlagTrack(track mot.Track, fps float64, th config.Thresholds) []Flag {
	states := sortedStates(track.States)
	ttcs := mot.TTCSeries(states, fps)

	set := make(map[Flag]struct{})
	if hasLowTTCRun(ttcs, th.TTCWarn, th.LowTTCFrames) {
		set[FlagSustainedLowTTC] = struct{}{}
	}
	if hasHardApproach(ttcs, th.TTCDrop, th.TTCWarn) {
		set[FlagHardApproach] = struct{}{}
	}
	if std, ok := lateralStd(states); ok && std >= th.LateralStdMin {
		set[FlagLateralInstability] = struct{}{}
	}
	if isCutIn(ttcs, th.LowTTCFrames, th.CutInTTC) {
		set[FlagSuddenCutIn] = struct{}{}
	}
	if track.MeanSpeed <= th.SpeedSlow {
		set[FlagVerySlowTrack] = struct{}{}
	}

	flags := make([]Flag, 0, len(set))
	for f := range set {
		flags = append(flags, f)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })
	return flags
}

// hasLowTTCRun reports whether at least runLen consecutive samples are at or below warn
func hasLowTTCRun(ttcs []float64, warn float64, runLen int) bool {
	run := 0
	for _, v := range ttcs {
		if v <= warn {
			run++
		} else {
			run = 0
		}
		if run >= runLen {
			return true
		}
	}
	return false
}

// hasHardApproach reports whether TTC dropped by at least drop in one step into the warn zone
func hasHardApproach(ttcs []float64, drop, warn float64) bool {
	for i := 1; i < len(ttcs); i++ {
		prev, curr := ttcs[i-1], ttcs[i]
		if prev-curr >= drop && curr <= warn {
			return true
		}
	}
	return false
}

// isCutIn reports whether any of the first max(2, runLen) samples is at or below cutIn
func isCutIn(ttcs []float64, runLen int, cutIn float64) bool {
	early := ttcs[:minInt(len(ttcs), maxInt(2, runLen))]
	if len(early) == 0 {
		return false
	}
	return floats.Min(early) <= cutIn
}

// lateralStd is population standard deviation of center-x over all states.
// Defined only for tracks with at least four states.
func lateralStd(states []mot.State) (float64, bool) {
	if len(states) < minLateralStates {
		return 0, false
	}
	xs := make([]float64, len(states))
	for i, s := range states {
		xs[i] = s.Center.X
	}
	std := stat.PopStdDev(xs, nil)
	if math.IsNaN(std) {
		return 0, false
	}
	return std, true
}

func sortedStates(states []mot.State) []mot.State {
	out := make([]mot.State, len(states))
	copy(out, states)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FrameIndex < out[j].FrameIndex })
	return out
}

func hasFlag(flags []Flag, flag Flag) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
