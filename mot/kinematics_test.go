package mot

import (
	"math"
	"testing"
)

// statesWithHeights builds consecutive states centered at (cx, 50) with given heights
func statesWithHeights(cx float64, heights ...float64) []State {
	states := make([]State, len(heights))
	for i, h := range heights {
		box := NewBox(cx-10, 50-h/2, cx+10, 50+h/2)
		states[i] = NewState(i, "", Detection{Box: box})
	}
	return states
}

func TestTTCFromHeights(t *testing.T) {
	ttc, ok := TTCFromHeights(10, 12, 0.2)
	if !ok || math.Abs(ttc-1.0) > eps {
		t.Errorf("Wrong answer: %v (ok=%v), correct answer: 1", ttc, ok)
	}
	if _, ok := TTCFromHeights(12, 10, 0.2); ok {
		t.Error("Receding object has no TTC")
	}
	if _, ok := TTCFromHeights(10, 10, 0.2); ok {
		t.Error("Constant height has no TTC")
	}
	if _, ok := TTCFromHeights(0, 10, 0.2); ok {
		t.Error("Zero height has no TTC")
	}
	if _, ok := TTCFromHeights(10, 12, 0); ok {
		t.Error("Zero time step has no TTC")
	}
}

func TestTTCSeriesSynthetic(t *testing.T) {
	// Heights 10, 12, 15, 20 at 5 fps: TTC = dt * h_prev / (h_curr - h_prev)
	states := statesWithHeights(100, 10, 12, 15, 20)
	series := TTCSeries(states, 5)
	correct := []float64{1.0, 0.8, 0.6}
	if len(series) != len(correct) {
		t.Fatalf("Expected %d TTC samples, got %d", len(correct), len(series))
	}
	for i := range correct {
		if math.Abs(series[i]-correct[i]) > eps {
			t.Errorf("Wrong answer at %d: %v, correct answer: %v", i, series[i], correct[i])
		}
	}
}

func TestEstimateMetrics(t *testing.T) {
	t.Run("single state", func(t *testing.T) {
		track := &Track{ID: 1, States: statesWithHeights(100, 10)}
		track.ComputeMetrics(5)
		if track.MeanSpeed != 0 {
			t.Errorf("Expected zero speed, got %v", track.MeanSpeed)
		}
		if track.MinTTC != nil {
			t.Errorf("Expected no TTC, got %v", *track.MinTTC)
		}
	})

	t.Run("receding object", func(t *testing.T) {
		track := &Track{ID: 1, States: statesWithHeights(100, 40, 30, 30, 20)}
		track.ComputeMetrics(5)
		if track.MinTTC != nil {
			t.Errorf("Expected no TTC, got %v", *track.MinTTC)
		}
	})

	t.Run("approaching object", func(t *testing.T) {
		track := &Track{ID: 1, States: statesWithHeights(100, 10, 12, 15, 20)}
		track.ComputeMetrics(5)
		if track.MinTTC == nil {
			t.Fatal("Expected TTC")
		}
		if *track.MinTTC != 0.6 {
			t.Errorf("Wrong answer: %v, correct answer: 0.6", *track.MinTTC)
		}
		// Center does not move
		if track.MeanSpeed != 0 {
			t.Errorf("Expected zero speed, got %v", track.MeanSpeed)
		}
	})

	t.Run("moving object", func(t *testing.T) {
		states := []State{
			NewState(0, "", Detection{Box: NewBox(0, 0, 10, 10)}),
			NewState(1, "", Detection{Box: NewBox(3, 4, 13, 14)}),  // 5 px in 0.2 s
			NewState(3, "", Detection{Box: NewBox(9, 12, 19, 22)}), // 10 px in 0.4 s
		}
		m := EstimateMetrics(states, 5)
		if math.Abs(m.MeanSpeed-25.0) > eps {
			t.Errorf("Wrong answer: %v, correct answer: 25", m.MeanSpeed)
		}
		if m.HasMinTTC {
			t.Error("Constant height has no TTC")
		}
	})

	t.Run("duplicate frame indices are skipped", func(t *testing.T) {
		states := []State{
			NewState(0, "", Detection{Box: NewBox(0, 0, 10, 10)}),
			NewState(0, "", Detection{Box: NewBox(50, 50, 60, 60)}),
		}
		if tr := Transitions(states, 5); len(tr) != 0 {
			t.Errorf("Expected no transitions, got %d", len(tr))
		}
		if speed := EstimateMetrics(states, 5).MeanSpeed; speed != 0 {
			t.Errorf("Expected zero speed, got %v", speed)
		}
	})
}

func TestDownsample(t *testing.T) {
	states := make([]State, 25)
	for i := range states {
		states[i] = State{FrameIndex: i}
	}
	sampled := Downsample(states, DefaultMaxPersistedStates)
	if len(sampled) != DefaultMaxPersistedStates {
		t.Fatalf("Expected %d states, got %d", DefaultMaxPersistedStates, len(sampled))
	}
	if sampled[0].FrameIndex != 0 || sampled[len(sampled)-1].FrameIndex != 24 {
		t.Errorf("First and last states must be kept, got %d..%d", sampled[0].FrameIndex, sampled[len(sampled)-1].FrameIndex)
	}
	for i := 1; i < len(sampled); i++ {
		if sampled[i].FrameIndex <= sampled[i-1].FrameIndex {
			t.Errorf("Frame index %d follows %d", sampled[i].FrameIndex, sampled[i-1].FrameIndex)
		}
	}

	if short := Downsample(states[:4], DefaultMaxPersistedStates); len(short) != 4 {
		t.Errorf("Short track must be kept as is, got %d states", len(short))
	}

	pair := Downsample(states, 1)
	if len(pair) != 2 || pair[0].FrameIndex != 0 || pair[1].FrameIndex != 24 {
		t.Errorf("Wrong answer: %+v, correct answer: first and last states", pair)
	}
}
