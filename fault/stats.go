package fault

import "sort"

const (
	maxFastestTracks = 5
	maxTopRisky      = 8
)

// RiskCounts is number of findings per risk bucket
type RiskCounts struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// WorstTTC points at the track with the smallest defined min TTC
type WorstTTC struct {
	TrackID *int     `json:"track_id"`
	Seconds *float64 `json:"seconds"`
}

// TrackSpeed pairs a track with its mean speed
type TrackSpeed struct {
	TrackID   int     `json:"track_id"`
	MeanSpeed float64 `json:"mean_speed"`
}

// Stats are aggregate figures handed to the narrative generator along with findings
type Stats struct {
	Counts   RiskCounts   `json:"counts"`
	WorstTTC WorstTTC     `json:"worst_ttc"`
	Fastest  []TrackSpeed `json:"fastest_tracks"`
	// Ranked by ascending min TTC, then descending mean speed
	TopRisky   []Finding      `json:"top_risky"`
	FlagCounts map[string]int `json:"flag_counts"`
}

// Summarize computes report statistics over findings
func Summarize(findings []Finding) Stats {
	stats := Stats{
		Fastest:  make([]TrackSpeed, 0, maxFastestTracks),
		TopRisky: make([]Finding, 0, maxTopRisky),
		FlagCounts: map[string]int{
			string(FlagSustainedLowTTC):    0,
			string(FlagHardApproach):       0,
			string(FlagLateralInstability): 0,
			string(FlagSuddenCutIn):        0,
			string(FlagVerySlowTrack):      0,
		},
	}

	for i := range findings {
		f := findings[i]
		stats.Counts.Total++
		switch f.Risk {
		case RiskHigh:
			stats.Counts.High++
		case RiskMedium:
			stats.Counts.Medium++
		default:
			stats.Counts.Low++
		}
		for _, flag := range f.Flags {
			stats.FlagCounts[string(flag)]++
		}
		if f.Metrics.MinTTC != nil && (stats.WorstTTC.Seconds == nil || *f.Metrics.MinTTC < *stats.WorstTTC.Seconds) {
			id, secs := f.TrackID, *f.Metrics.MinTTC
			stats.WorstTTC = WorstTTC{TrackID: &id, Seconds: &secs}
		}
	}

	bySpeed := make([]Finding, len(findings))
	copy(bySpeed, findings)
	sort.SliceStable(bySpeed, func(i, j int) bool {
		return bySpeed[i].Metrics.MeanSpeed > bySpeed[j].Metrics.MeanSpeed
	})
	for i := 0; i < len(bySpeed) && i < maxFastestTracks; i++ {
		stats.Fastest = append(stats.Fastest, TrackSpeed{TrackID: bySpeed[i].TrackID, MeanSpeed: bySpeed[i].Metrics.MeanSpeed})
	}

	byRisk := make([]Finding, len(findings))
	copy(byRisk, findings)
	sort.SliceStable(byRisk, func(i, j int) bool {
		a, b := byRisk[i], byRisk[j]
		if ka, kb := ttcKey(a.Metrics.MinTTC), ttcKey(b.Metrics.MinTTC); ka != kb {
			return ka < kb
		}
		return a.Metrics.MeanSpeed > b.Metrics.MeanSpeed
	})
	for i := 0; i < len(byRisk) && i < maxTopRisky; i++ {
		stats.TopRisky = append(stats.TopRisky, byRisk[i])
	}
	return stats
}
