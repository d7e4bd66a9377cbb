package fault

import (
	"math"
	"sort"
)

// Attribution names the likely at-fault (primary) and struck vehicles.
// Either is nil when undefined.
type Attribution struct {
	PrimaryTrackID *int `json:"primary_track_id"`
	StruckTrackID  *int `json:"struck_track_id"`
}

// ttcKey treats undefined TTC as +Inf so such tracks rank last
func ttcKey(ttc *float64) float64 {
	if ttc == nil {
		return math.Inf(1)
	}
	return *ttc
}

// rankPrimary orders findings by likelihood of being at fault:
// ascending min TTC, cut-in first, hard approach first, descending mean speed.
// Ties keep input order.
func rankPrimary(findings []Finding) []Finding {
	ranked := make([]Finding, len(findings))
	copy(ranked, findings)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if ka, kb := ttcKey(a.Metrics.MinTTC), ttcKey(b.Metrics.MinTTC); ka != kb {
			return ka < kb
		}
		if ca, cb := hasFlag(a.Flags, FlagSuddenCutIn), hasFlag(b.Flags, FlagSuddenCutIn); ca != cb {
			return ca
		}
		if ha, hb := hasFlag(a.Flags, FlagHardApproach), hasFlag(b.Flags, FlagHardApproach); ha != hb {
			return ha
		}
		return a.Metrics.MeanSpeed > b.Metrics.MeanSpeed
	})
	return ranked
}

// SelectPrimary returns the first-ranked finding, nil for no findings
func SelectPrimary(findings []Finding) *Finding {
	if len(findings) == 0 {
		return nil
	}
	primary := rankPrimary(findings)[0]
	return &primary
}

// SelectStruck picks, among slow tracks (flagged very slow or mean speed at or below slowSpeed),
// the one with the smallest min TTC. Slow tracks with undefined TTC lose to any defined one;
// nil when no track is slow.
func SelectStruck(findings []Finding, slowSpeed float64) *Finding {
	var struck *Finding
	for i := range findings {
		f := findings[i]
		if !hasFlag(f.Flags, FlagVerySlowTrack) && f.Metrics.MeanSpeed > slowSpeed {
			continue
		}
		if struck == nil || ttcKey(f.Metrics.MinTTC) < ttcKey(struck.Metrics.MinTTC) {
			struck = &findings[i]
		}
	}
	if struck == nil {
		return nil
	}
	out := *struck
	return &out
}

// Attribute selects primary and struck vehicles
func Attribute(findings []Finding, slowSpeed float64) Attribution {
	attr := Attribution{}
	if p := SelectPrimary(findings); p != nil {
		id := p.TrackID
		attr.PrimaryTrackID = &id
	}
	if s := SelectStruck(findings, slowSpeed); s != nil {
		id := s.TrackID
		attr.StruckTrackID = &id
	}
	return attr
}
