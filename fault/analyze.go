package fault

import (
	"math"

	"github.com/LdDl/crashtruth-go/config"
	"github.com/LdDl/crashtruth-go/mot"
)

// FindingMetrics is a snapshot of a track's metrics
type FindingMetrics struct {
	MinTTC    *float64 `json:"min_ttc"`
	MeanSpeed float64  `json:"mean_speed"`
	// Population std dev of center-x, pixels. Nil for tracks shorter than four states
	LateralStd *float64 `json:"lateral_std"`
}

// Finding is the verdict on a single track
type Finding struct {
	TrackID int            `json:"track_id"`
	Risk    Risk           `json:"risk"`
	Flags   []Flag         `json:"flags"`
	Metrics FindingMetrics `json:"metrics"`
}

// Summary is the overall risk bucket with reasons
type Summary struct {
	HighestRisk Risk     `json:"highest_risk"`
	Reasons     []string `json:"reasons"`
}

// Assessment is the full outcome of fault inference over a set of tracks
type Assessment struct {
	Summary     Summary     `json:"summary"`
	Causes      []Cause     `json:"causes"`
	Findings    []Finding   `json:"findings"`
	Attribution Attribution `json:"attribution"`
	Stats       Stats       `json:"stats"`
}

// Analyze flags every track, buckets risk, infers causes and attributes fault.
// Tracks are processed in the given order, which also breaks ranking ties.
func Analyze(tracks []mot.Track, fps float64, th config.Thresholds) Assessment {
	findings := make([]Finding, 0, len(tracks))
	flagsPerTrack := make([][]Flag, 0, len(tracks))
	for _, t := range tracks {
		flags := FlagTrack(t, fps, th)
		flagsPerTrack = append(flagsPerTrack, flags)
		findings = append(findings, Finding{
			TrackID: t.ID,
			Risk:    TrackRisk(t, th),
			Flags:   flags,
			Metrics: snapshot(t),
		})
	}

	risk, reasons := OverallRisk(tracks, th)
	return Assessment{
		Summary: Summary{
			HighestRisk: risk,
			Reasons:     reasons,
		},
		Causes:      InferCauses(flagsPerTrack),
		Findings:    findings,
		Attribution: Attribute(findings, th.SpeedSlow),
		Stats:       Summarize(findings),
	}
}

func snapshot(t mot.Track) FindingMetrics {
	m := FindingMetrics{
		MeanSpeed: t.MeanSpeed,
	}
	if t.MinTTC != nil {
		v := *t.MinTTC
		m.MinTTC = &v
	}
	if std, ok := lateralStd(sortedStates(t.States)); ok {
		v := math.Round(std*100) / 100
		m.LateralStd = &v
	}
	return m
}
