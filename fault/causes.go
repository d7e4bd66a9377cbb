package fault

import "sort"

// Cause is a semantic label of a probable crash cause
type Cause string

const (
	CauseTailgating              Cause = "tailgating"
	CauseHardApproach            Cause = "hard_approach"
	CauseCutIn                   Cause = "cut_in"
	CauseWeaving                 Cause = "weaving"
	CauseStationaryObstacleAhead Cause = "stationary_obstacle_ahead"
)

// directCauses maps a track flag to the cause it triggers on its own
var directCauses = []struct {
	flag  Flag
	cause Cause
}{
	{FlagSustainedLowTTC, CauseTailgating},
	{FlagHardApproach, CauseHardApproach},
	{FlagSuddenCutIn, CauseCutIn},
	{FlagLateralInstability, CauseWeaving},
}

// InferCauses unions causes over flags of all tracks and returns them sorted.
// A stationary obstacle needs some very slow track and some track with sustained low TTC
// or hard approach; the two may be different tracks.
func InferCauses(flagsPerTrack [][]Flag) []Cause {
	set := make(map[Cause]struct{})
	for _, dc := range directCauses {
		if anyTrackHas(flagsPerTrack, dc.flag) {
			set[dc.cause] = struct{}{}
		}
	}
	verySlow := anyTrackHas(flagsPerTrack, FlagVerySlowTrack)
	closing := anyTrackHas(flagsPerTrack, FlagSustainedLowTTC) || anyTrackHas(flagsPerTrack, FlagHardApproach)
	if verySlow && closing {
		set[CauseStationaryObstacleAhead] = struct{}{}
	}

	causes := make([]Cause, 0, len(set))
	for c := range set {
		causes = append(causes, c)
	}
	sort.Slice(causes, func(i, j int) bool { return causes[i] < causes[j] })
	return causes
}

func anyTrackHas(flagsPerTrack [][]Flag, flag Flag) bool {
	for _, flags := range flagsPerTrack {
		if hasFlag(flags, flag) {
			return true
		}
	}
	return false
}
