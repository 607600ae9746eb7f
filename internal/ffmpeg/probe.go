package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Probe represents the parsed output of an ffprobe inspection.
type Probe struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Channels  int    `json:"channels"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect runs ffprobe against path and decodes the JSON response.
func (t *Tool) Inspect(ctx context.Context, path string) (Probe, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Probe{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, t.ffprobeBin,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result Probe
	if err := json.Unmarshal(output, &result); err != nil {
		return Probe{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// HasAudio reports whether the container carries at least one audio stream.
func (p Probe) HasAudio() bool {
	for _, stream := range p.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return true
		}
	}
	return false
}

// VideoStream returns the first video stream, or nil.
func (p Probe) VideoStream() *Stream {
	for i, stream := range p.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return &p.Streams[i]
		}
	}
	return nil
}

// DurationSeconds returns the container duration in seconds, or 0 when
// unavailable or unparseable.
func (p Probe) DurationSeconds() float64 {
	d := parseFloat(p.Format.Duration)
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0
	}
	return d
}

// SizeBytes returns the reported container size in bytes, or 0.
func (p Probe) SizeBytes() int64 {
	size := parseFloat(p.Format.Size)
	if math.IsNaN(size) || math.IsInf(size, 0) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
