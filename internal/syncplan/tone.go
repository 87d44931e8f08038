package syncplan

import "math"

// ToneSpec describes the sync tone: a short sinusoid the live page emits
// shortly after capture start, for the express purpose of being found in
// both audio and video tracks.
type ToneSpec struct {
	DurationMs int
	FrequencyHz float64
	Amplitude   float64
}

// DefaultToneSpec returns this codebase's built-in tone parameters.
func DefaultToneSpec() ToneSpec {
	return ToneSpec{DurationMs: 800, FrequencyHz: 1000, Amplitude: 0.95}
}

// Generate synthesizes the tone as mono float64 samples at sampleRate Hz,
// used as the reference waveform for cross-correlation against recorded
// tracks.
func (t ToneSpec) Generate(sampleRate int) []float64 {
	n := int(float64(sampleRate) * float64(t.DurationMs) / 1000.0)
	out := make([]float64, n)
	angularFreq := 2 * math.Pi * t.FrequencyHz / float64(sampleRate)
	for i := range out {
		out[i] = t.Amplitude * math.Sin(angularFreq*float64(i))
	}
	return out
}
