package fault

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/LdDl/crashtruth-go/config"
	"github.com/LdDl/crashtruth-go/mot"
)

// Risk is a coarse severity bucket
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// TrackRisk applies the risk ladder to a single track's own metrics
func TrackRisk(track mot.Track, th config.Thresholds) Risk {
	switch {
	case ttcAtMost(track.MinTTC, th.TTCDanger):
		return RiskHigh
	case ttcAtMost(track.MinTTC, th.TTCWarn), track.MeanSpeed >= th.SpeedFast:
		return RiskMedium
	default:
		return RiskLow
	}
}

// OverallRisk evaluates the risk ladder over all tracks, first matching rung wins.
// Reasons list every condition that fired on that rung.
func OverallRisk(tracks []mot.Track, th config.Thresholds) (Risk, []string) {
	for _, t := range tracks {
		if ttcAtMost(t.MinTTC, th.TTCDanger) {
			return RiskHigh, []string{fmt.Sprintf("TTC ≤ %ss detected", formatNumber(th.TTCDanger))}
		}
	}
	reasons := make([]string, 0, 2)
	for _, t := range tracks {
		if ttcAtMost(t.MinTTC, th.TTCWarn) {
			reasons = append(reasons, fmt.Sprintf("TTC ≤ %ss on some tracks", formatNumber(th.TTCWarn)))
			break
		}
	}
	for _, t := range tracks {
		if t.MeanSpeed >= th.SpeedFast {
			reasons = append(reasons, fmt.Sprintf("High relative speed (≥ %s px/s)", formatNumber(th.SpeedFast)))
			break
		}
	}
	if len(reasons) > 0 {
		return RiskMedium, reasons
	}
	return RiskLow, []string{"No critical TTC or speed flags"}
}

func ttcAtMost(ttc *float64, limit float64) bool {
	return ttc != nil && *ttc <= limit
}

// formatNumber prints a float with at least one fractional digit: 4 -> "4.0", 2.5 -> "2.5"
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
