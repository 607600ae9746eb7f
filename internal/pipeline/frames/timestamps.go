// Package frames extracts bounded, evenly distributed frame samples from
// animated and video sources.
package frames

import "math"

// Substituted when a source reports no usable duration. Keeps timestamp
// math finite; an invalid duration must never reach the transcoder.
const FallbackDuration = 2.0

// SanitizeDuration replaces NaN, infinite, zero, or negative durations
// with the fallback.
func SanitizeDuration(duration float64) float64 {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return FallbackDuration
	}
	return duration
}

// SampleTimestamps returns three sampling points for a source of the given
// duration: 10/50/90% for longer sources, front-loaded fixed offsets for
// clips of three seconds or less so sampling never lands past the end.
func SampleTimestamps(duration float64) []float64 {
	duration = SanitizeDuration(duration)
	if duration > 3 {
		return []float64{duration * 0.1, duration * 0.5, duration * 0.9}
	}
	return []float64{
		0.1,
		math.Max(0.5, duration*0.3),
		math.Max(1.0, duration*0.8),
	}
}
