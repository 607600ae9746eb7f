// Package ffmpeg wraps the ffmpeg/ffprobe binaries behind small,
// context-bounded subprocess calls.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Square canvas used for sticker output.
const StickerDim = 512

// Tool invokes the configured ffmpeg and ffprobe binaries.
type Tool struct {
	ffmpegBin  string
	ffprobeBin string
}

func New(ffmpegBin, ffprobeBin string) *Tool {
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBin) == "" {
		ffprobeBin = "ffprobe"
	}
	return &Tool{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin}
}

func (t *Tool) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.ffmpegBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s",
			args[len(args)-1], err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ExtractFrame decodes a single frame at the given timestamp into dst
// (format inferred from the extension), scaled to fit the sticker canvas.
func (t *Tool) ExtractFrame(ctx context.Context, src string, timestamp float64, dst string) error {
	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", StickerDim, StickerDim)
	return t.run(ctx,
		"-y", "-v", "error",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", src,
		"-frames:v", "1",
		"-vf", filter,
		dst,
	)
}

// FirstFramePNG decodes the first frame of any supported source into a PNG.
func (t *Tool) FirstFramePNG(ctx context.Context, src, dst string) error {
	return t.run(ctx,
		"-y", "-v", "error",
		"-i", src,
		"-frames:v", "1",
		dst,
	)
}

// EncodeStaticWebP renders src onto a transparent square canvas: scaled to
// fit (never enlarged past the canvas), padded symmetrically, WebP-encoded.
func (t *Tool) EncodeStaticWebP(ctx context.Context, src, dst string, quality int) error {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=0x00000000",
		StickerDim, StickerDim, StickerDim, StickerDim)
	return t.run(ctx,
		"-y", "-v", "error",
		"-i", src,
		"-frames:v", "1",
		"-vf", filter,
		"-c:v", "libwebp",
		"-quality", fmt.Sprintf("%d", quality),
		"-lossless", "0",
		"-compression_level", "6",
		dst,
	)
}

// AnimatedOpts configures one animated re-encode attempt.
type AnimatedOpts struct {
	Quality int
	// TargetDim bounds the longer side; 0 keeps the native size.
	TargetDim int
}

// EncodeAnimatedWebP re-encodes an animated image source (GIF or animated
// WebP) as looping animated WebP.
func (t *Tool) EncodeAnimatedWebP(ctx context.Context, src, dst string, opts AnimatedOpts) error {
	args := []string{"-y", "-v", "error", "-i", src}
	if opts.TargetDim > 0 {
		args = append(args, "-vf",
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", opts.TargetDim, opts.TargetDim))
	}
	args = append(args,
		"-c:v", "libwebp",
		"-loop", "0",
		"-an", "-vsync", "0",
		"-quality", fmt.Sprintf("%d", opts.Quality),
		"-lossless", "0",
		"-compression_level", "6",
		"-pix_fmt", "yuva420p",
		dst,
	)
	return t.run(ctx, args...)
}

// EncodeVideoWebP converts a video into a looping animated WebP on the
// transparent sticker canvas at the given frame rate and quality.
func (t *Tool) EncodeVideoWebP(ctx context.Context, src, dst string, fps, quality int) error {
	filter := fmt.Sprintf(
		"fps=%d,scale=%d:%d:force_original_aspect_ratio=decrease:force_divisible_by=2,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=0x00000000,setsar=1",
		fps, StickerDim, StickerDim, StickerDim, StickerDim)
	return t.run(ctx,
		"-y", "-v", "error",
		"-i", src,
		"-vcodec", "libwebp",
		"-vf", filter,
		"-loop", "0",
		"-preset", "default",
		"-an", "-vsync", "0",
		"-quality", fmt.Sprintf("%d", quality),
		"-lossless", "0",
		"-compression_level", "6",
		"-pix_fmt", "yuva420p",
		dst,
	)
}

// ExtractAudioWAV pulls the audio track into a 16-bit PCM WAV file.
func (t *Tool) ExtractAudioWAV(ctx context.Context, src, dst string) error {
	return t.run(ctx,
		"-y", "-v", "error",
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		dst,
	)
}
