package frames

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"stickerd/internal/ffmpeg"
)

func TestSampleTimestampsLongSource(t *testing.T) {
	got := SampleTimestamps(10)
	want := []float64{1.0, 5.0, 9.0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("timestamps for 10s = %v, want %v", got, want)
			break
		}
	}
}

func TestSampleTimestampsShortSource(t *testing.T) {
	// 2.4s clip: [0.1, max(0.5, 0.72), max(1.0, 1.92)] = [0.1, 0.72, 1.92]
	got := SampleTimestamps(2.4)
	want := []float64{0.1, 0.72, 1.92}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("timestamps for 2.4s = %v, want %v", got, want)
			break
		}
	}

	// Very short clip keeps the fixed floors
	got = SampleTimestamps(1.0)
	want = []float64{0.1, 0.5, 1.0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("timestamps for 1s = %v, want %v", got, want)
			break
		}
	}
}

func TestDurationSanitization(t *testing.T) {
	// Invalid durations must never leak non-finite values into timestamps.
	bad := []float64{math.NaN(), 0, -5, math.Inf(1), math.Inf(-1)}
	for _, d := range bad {
		for _, ts := range SampleTimestamps(d) {
			if math.IsNaN(ts) || math.IsInf(ts, 0) {
				t.Errorf("duration %v produced non-finite timestamp %v", d, ts)
			}
		}
	}

	if SanitizeDuration(math.NaN()) != FallbackDuration {
		t.Error("NaN duration must fall back")
	}
	if SanitizeDuration(7.5) != 7.5 {
		t.Error("valid duration must pass through")
	}
}

func TestGIFLike(t *testing.T) {
	base := func() ffmpeg.Probe {
		return ffmpeg.Probe{
			Streams: []ffmpeg.Stream{{CodecType: "video", Width: 480, Height: 360}},
			Format:  ffmpeg.Format{Duration: "6.0", Size: "2097152"},
		}
	}

	if !GIFLike(base()) {
		t.Error("short silent low-res small video should be GIF-like")
	}

	withAudio := base()
	withAudio.Streams = append(withAudio.Streams, ffmpeg.Stream{CodecType: "audio"})
	if GIFLike(withAudio) {
		t.Error("any audio track disqualifies")
	}

	long := base()
	long.Format.Duration = "16.0"
	if GIFLike(long) {
		t.Error("duration above 15s disqualifies")
	}

	big := base()
	big.Format.Size = "6291456"
	if GIFLike(big) {
		t.Error("size above 5MiB disqualifies")
	}

	hires := base()
	hires.Streams[0].Width = 1280
	hires.Streams[0].Height = 720
	if GIFLike(hires) {
		t.Error("high resolution disqualifies")
	}

	noDuration := base()
	noDuration.Format.Duration = ""
	if GIFLike(noDuration) {
		t.Error("unknown duration must not classify as GIF-like")
	}
}

// fakeExtractor writes a tiny file for every timestamp.
type fakeExtractor struct{}

func (fakeExtractor) ExtractFrame(ctx context.Context, src string, ts float64, dst string) error {
	return os.WriteFile(dst, []byte("png-bytes"), 0o644)
}

func TestExtractPartialSuccess(t *testing.T) {
	dir := t.TempDir()
	sampler := NewSampler(fakeExtractor{}, time.Second)

	frames, err := sampler.Extract(context.Background(), "in.mp4", dir, []float64{0.5, 1.5, 2.5})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if string(f.Bytes) != "png-bytes" {
			t.Errorf("frame %d bytes not loaded", i)
		}
	}
	// ordered by timestamp
	if frames[0].Timestamp != 0.5 || frames[2].Timestamp != 2.5 {
		t.Errorf("frames not ordered: %v", frames)
	}
}

type tsFailingExtractor struct{ failTS float64 }

func (f *tsFailingExtractor) ExtractFrame(ctx context.Context, src string, ts float64, dst string) error {
	if ts == f.failTS {
		return errors.New("invalid duration specification")
	}
	return os.WriteFile(dst, []byte("png-bytes"), 0o644)
}

func TestExtractToleratesOneFailure(t *testing.T) {
	dir := t.TempDir()
	sampler := NewSampler(&tsFailingExtractor{failTS: 1.5}, time.Second)

	frames, err := sampler.Extract(context.Background(), "in.mp4", dir, []float64{0.5, 1.5, 2.5})
	if err != nil {
		t.Fatalf("one failure should not fail the sample: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Timestamp != 0.5 || frames[1].Timestamp != 2.5 {
		t.Errorf("wrong surviving frames: %v", frames)
	}
}

type alwaysFailExtractor struct{}

func (alwaysFailExtractor) ExtractFrame(ctx context.Context, src string, ts float64, dst string) error {
	return errors.New("no decoder for codec")
}

func TestExtractAllFail(t *testing.T) {
	sampler := NewSampler(alwaysFailExtractor{}, time.Second)
	_, err := sampler.Extract(context.Background(), "in.mp4", t.TempDir(), []float64{0.5, 1.5})
	if !errors.Is(err, ErrNoFramesExtracted) {
		t.Errorf("expected ErrNoFramesExtracted, got %v", err)
	}
}
