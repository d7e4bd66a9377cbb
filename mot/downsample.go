package mot

// DefaultMaxPersistedStates is how many states are kept per track in persisted documents
const DefaultMaxPersistedStates = 10

// Downsample returns at most maxSamples evenly spaced states, always keeping the first and the last one.
// It is meant for persistence only: metrics must be computed on the full history before downsampling.
func Downsample(states []State, maxSamples int) []State {
	maxSamples = maxInt(2, maxSamples)
	n := len(states)
	if n <= maxSamples {
		out := make([]State, n)
		copy(out, states)
		return out
	}
	out := make([]State, maxSamples)
	last := maxSamples - 1
	for i := 0; i < maxSamples; i++ {
		// Nearest index on the uniform grid between 0 and n-1
		idx := (i*(n-1) + last/2) / last
		out[i] = states[idx]
	}
	return out
}
