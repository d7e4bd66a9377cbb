package fault

import (
	"testing"

	"github.com/LdDl/crashtruth-go/config"
	"github.com/LdDl/crashtruth-go/mot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackFrom builds a track whose states have given center-x and heights, one frame apart.
// Metrics are computed as the track builder does.
func trackFrom(id int, fps float64, xs []float64, heights []float64) mot.Track {
	states := make([]mot.State, len(heights))
	for i, h := range heights {
		x := xs[i]
		box := mot.NewBox(x-10, 100-h/2, x+10, 100+h/2)
		states[i] = mot.NewState(i, "", mot.Detection{Box: box, Score: 0.9})
	}
	track := mot.Track{ID: id, States: states}
	track.ComputeMetrics(fps)
	return track
}

func constantX(x float64, n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = x
	}
	return xs
}

func TestFlagTrackSynthetic(t *testing.T) {
	th := config.DefaultThresholds()
	track := trackFrom(1, 5, constantX(200, 4), []float64{10, 12, 15, 20})

	flags := FlagTrack(track, 5, th)
	// TTC series is 1.0, 0.8, 0.6: three samples under warn, earliest under cut-in,
	// drops of 0.2s are not hard, center does not move
	assert.Equal(t, []Flag{FlagSuddenCutIn, FlagSustainedLowTTC, FlagVerySlowTrack}, flags)
}

func TestFlagTrackIgnoresStoredMinTTC(t *testing.T) {
	th := config.DefaultThresholds()
	track := trackFrom(1, 5, constantX(200, 4), []float64{10, 12, 15, 20})
	bogus := 100.0
	track.MinTTC = &bogus
	assert.Contains(t, FlagTrack(track, 5, th), FlagSustainedLowTTC)
}

func TestFlagTrackUsesStoredMeanSpeed(t *testing.T) {
	th := config.DefaultThresholds()
	track := trackFrom(1, 5, constantX(200, 2), []float64{10, 10})
	track.MeanSpeed = th.SpeedSlow + 0.01
	assert.NotContains(t, FlagTrack(track, 5, th), FlagVerySlowTrack)
	track.MeanSpeed = th.SpeedSlow
	assert.Contains(t, FlagTrack(track, 5, th), FlagVerySlowTrack)
}

func TestFlagTrackLateralInstability(t *testing.T) {
	th := config.DefaultThresholds()

	weaving := trackFrom(1, 5, []float64{100, 110, 100, 110}, []float64{50, 50, 50, 50})
	// Population std dev of 100,110,100,110 is exactly 5
	assert.Contains(t, FlagTrack(weaving, 5, th), FlagLateralInstability)

	short := trackFrom(2, 5, []float64{100, 140, 100}, []float64{50, 50, 50})
	assert.NotContains(t, FlagTrack(short, 5, th), FlagLateralInstability)

	steady := trackFrom(3, 5, []float64{100, 102, 104, 106}, []float64{50, 50, 50, 50})
	assert.NotContains(t, FlagTrack(steady, 5, th), FlagLateralInstability)
}

func TestFlagTrackUnsortedStates(t *testing.T) {
	th := config.DefaultThresholds()
	track := trackFrom(1, 5, constantX(200, 4), []float64{10, 12, 15, 20})
	reversed := make([]mot.State, len(track.States))
	for i := range track.States {
		reversed[len(track.States)-1-i] = track.States[i]
	}
	shuffled := track
	shuffled.States = reversed
	assert.Equal(t, FlagTrack(track, 5, th), FlagTrack(shuffled, 5, th))
}

func TestHasLowTTCRun(t *testing.T) {
	assert.True(t, hasLowTTCRun([]float64{5, 4, 3, 2}, 4, 3))
	assert.False(t, hasLowTTCRun([]float64{3, 3, 5, 3, 3}, 4, 3), "run is broken by a high sample")
	assert.False(t, hasLowTTCRun(nil, 4, 3))
	assert.True(t, hasLowTTCRun([]float64{4.0}, 4, 1))
}

func TestHasHardApproach(t *testing.T) {
	assert.True(t, hasHardApproach([]float64{5, 3.5}, 1, 4))
	assert.True(t, hasHardApproach([]float64{9, 9, 4}, 1, 4), "later value exactly at warn")
	assert.False(t, hasHardApproach([]float64{6, 4.5}, 1, 4), "later value above warn")
	assert.False(t, hasHardApproach([]float64{3.5, 3}, 1, 4), "drop too small")
	assert.False(t, hasHardApproach([]float64{2}, 1, 4))
}

func TestIsCutIn(t *testing.T) {
	assert.True(t, isCutIn([]float64{3, 2.2, 9}, 3, 2.2))
	assert.False(t, isCutIn([]float64{3, 3, 3, 1}, 3, 2.2), "late low TTC is not a cut-in")
	assert.True(t, isCutIn([]float64{3, 1}, 1, 2.2), "window is at least two samples")
	assert.False(t, isCutIn(nil, 3, 2.2))
}

func TestLateralStd(t *testing.T) {
	track := trackFrom(1, 5, []float64{2, 4, 4, 4, 5, 5, 7, 9}, constantX(50, 8))
	std, ok := lateralStd(track.States)
	require.True(t, ok)
	assert.InDelta(t, 2.0, std, 1e-12)

	_, ok = lateralStd(track.States[:3])
	assert.False(t, ok)
}
