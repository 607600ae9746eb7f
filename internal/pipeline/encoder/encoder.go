// Package encoder normalizes accepted media into the canonical sticker
// encoding under a hard byte ceiling.
package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"stickerd/internal/ffmpeg"
)

// MaxStickerBytes is the platform's hard artifact ceiling (1 MiB). Outputs
// above it are still delivered, with an oversized warning.
const MaxStickerBytes = 1024 * 1024

// Transcoder is the subprocess boundary used for re-encoding.
type Transcoder interface {
	EncodeStaticWebP(ctx context.Context, src, dst string, quality int) error
	EncodeAnimatedWebP(ctx context.Context, src, dst string, opts ffmpeg.AnimatedOpts) error
	EncodeVideoWebP(ctx context.Context, src, dst string, fps, quality int) error
}

// Encoded is one finished artifact.
type Encoded struct {
	Bytes []byte
	// Oversized marks an artifact above the byte ceiling that is being
	// delivered anyway.
	Oversized bool
	Attempts  int
}

// Failure means every re-encode attempt errored and no artifact exists.
type Failure struct {
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("encoding failed after %d attempts: %v", f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Encoder runs the quality ladders.
type Encoder struct {
	tool     Transcoder
	maxBytes int64
	timeout  time.Duration
}

func New(tool Transcoder, maxBytes int64, timeout time.Duration) *Encoder {
	if maxBytes <= 0 {
		maxBytes = MaxStickerBytes
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Encoder{tool: tool, maxBytes: maxBytes, timeout: timeout}
}

// Quality rungs for animated image sources; the first rung approximates a
// near-lossless pass.
var animatedQualities = []int{85, 75, 65}

// Dimension rungs tried when quality reduction alone is not enough.
var dimensionTargets = []int{512, 480, 400, 320}

// Frame-rate/quality rungs for video-sourced motion.
var videoPresets = []struct{ FPS, Quality int }{
	{15, 80},
	{12, 70},
	{10, 60},
}

// EncodeStatic converts a static image into a square-canvas WebP sticker.
// Aspect is preserved: the shorter dimension is padded onto a transparent
// canvas, never cropped.
func (e *Encoder) EncodeStatic(ctx context.Context, src, dir string) ([]byte, error) {
	dst := filepath.Join(dir, "static.webp")
	encCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.tool.EncodeStaticWebP(encCtx, src, dst, 90); err != nil {
		return nil, fmt.Errorf("static encode: %w", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("static encode read: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("static encode produced empty output")
	}
	return data, nil
}

// EncodeAnimated re-encodes an animated image source through the quality
// ladder, then quality x dimension, accepting the first output at or under
// the ceiling. If no attempt fits, the last successful output is returned
// oversized. longerSide skips dimension rungs the source already fits
// inside; pass 0 when unknown.
func (e *Encoder) EncodeAnimated(ctx context.Context, src, dir string, longerSide int) (Encoded, error) {
	var ladder []ffmpeg.AnimatedOpts
	for _, q := range animatedQualities {
		ladder = append(ladder, ffmpeg.AnimatedOpts{Quality: q})
	}
	for _, dim := range dimensionTargets {
		if longerSide > 0 && longerSide <= dim {
			continue
		}
		for _, q := range animatedQualities {
			ladder = append(ladder, ffmpeg.AnimatedOpts{Quality: q, TargetDim: dim})
		}
	}

	return e.runLadder(ctx, dir, len(ladder), func(attemptCtx context.Context, i int, dst string) error {
		return e.tool.EncodeAnimatedWebP(attemptCtx, src, dst, ladder[i])
	})
}

// EncodeVideoSticker converts a GIF-like video through decreasing
// frame-rate/quality presets with the same first-fit policy.
func (e *Encoder) EncodeVideoSticker(ctx context.Context, src, dir string) (Encoded, error) {
	return e.runLadder(ctx, dir, len(videoPresets), func(attemptCtx context.Context, i int, dst string) error {
		p := videoPresets[i]
		return e.tool.EncodeVideoWebP(attemptCtx, src, dst, p.FPS, p.Quality)
	})
}

func (e *Encoder) runLadder(ctx context.Context, dir string, attempts int, encode func(ctx context.Context, i int, dst string) error) (Encoded, error) {
	var last []byte
	var lastErr error
	tried := 0

	for i := 0; i < attempts; i++ {
		dst := filepath.Join(dir, fmt.Sprintf("attempt_%d.webp", i))
		tried++

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err := encode(attemptCtx, i, dst)
		cancel()
		if err != nil {
			slog.Warn("encode attempt failed", "attempt", i, "error", err)
			lastErr = err
			continue
		}

		data, err := os.ReadFile(dst)
		if err != nil || len(data) == 0 {
			slog.Warn("encode attempt produced no output", "attempt", i, "error", err)
			if err == nil {
				err = fmt.Errorf("empty output")
			}
			lastErr = err
			continue
		}

		last = data
		if int64(len(data)) <= e.maxBytes {
			return Encoded{Bytes: data, Attempts: tried}, nil
		}
		slog.Info("encode attempt over ceiling",
			"attempt", i, "size", len(data), "ceiling", e.maxBytes)
	}

	if last == nil {
		return Encoded{}, &Failure{Attempts: tried, Err: lastErr}
	}
	slog.Warn("all encode attempts over ceiling, delivering oversized artifact",
		"size", len(last), "ceiling", e.maxBytes)
	return Encoded{Bytes: last, Oversized: true, Attempts: tried}, nil
}
