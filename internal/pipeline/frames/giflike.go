package frames

import (
	"log/slog"

	"stickerd/internal/ffmpeg"
)

// Conservative bounds for treating a video as a short looping animation.
// All of them must hold; ordinary short videos stay on the video path.
const (
	gifLikeMaxDuration = 15.0
	gifLikeMaxDim      = 600
	gifLikeMaxBytes    = 5 * 1024 * 1024
)

// GIFLike reports whether a probed video behaves like a GIF: no audio
// track, short, low-resolution, and small. A video with audio is never
// GIF-like regardless of the other signals.
func GIFLike(probe ffmpeg.Probe) bool {
	if probe.HasAudio() {
		return false
	}

	duration := probe.DurationSeconds()
	shortDuration := duration > 0 && duration <= gifLikeMaxDuration

	video := probe.VideoStream()
	lowRes := video != nil && (video.Width <= gifLikeMaxDim || video.Height <= gifLikeMaxDim)

	smallFile := probe.SizeBytes() <= gifLikeMaxBytes

	result := shortDuration && lowRes && smallFile
	slog.Debug("gif-likeness",
		"duration", duration, "short", shortDuration,
		"low_res", lowRes, "small", smallFile, "gif_like", result)
	return result
}
