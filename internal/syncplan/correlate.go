package syncplan

// findTone locates the offset (in seconds) at which reference best matches
// signal, using normalized cross-correlation. It's a small, purpose-built
// numeric routine rather than a general DSP library; this
// is the one computation this core does in-process, delegating all other
// media work to ffmpeg.
func findTone(signal, reference []float64, sampleRate int) (seconds float64, ok bool) {
	if len(reference) == 0 || len(signal) < len(reference) {
		return 0, false
	}

	refEnergy := energy(reference)
	if refEnergy == 0 {
		return 0, false
	}

	bestIdx := -1
	bestScore := 0.0

	// This is a training/reference implementation, not a
	// performance-critical one — a straightforward O(n*m) sliding window is
	// clear and correct for the tone durations and recording lengths this
	// system deals with (seconds vs tens of minutes).
	windowEnergy := energy(signal[:len(reference)])
	for start := 0; start+len(reference) <= len(signal); start++ {
		if start > 0 {
			leaving := signal[start-1]
			entering := signal[start+len(reference)-1]
			windowEnergy += entering*entering - leaving*leaving
			if windowEnergy < 0 {
				windowEnergy = 0
			}
		}
		if windowEnergy == 0 {
			continue
		}
		dot := dotProduct(signal[start:start+len(reference)], reference)
		score := (dot * dot) / (windowEnergy * refEnergy)
		if score > bestScore {
			bestScore = score
			bestIdx = start
		}
	}

	if bestIdx < 0 {
		return 0, false
	}
	return float64(bestIdx) / float64(sampleRate), true
}

func energy(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return sum
}

func dotProduct(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
