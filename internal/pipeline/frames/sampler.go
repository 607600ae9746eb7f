package frames

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrNoFramesExtracted means every per-timestamp extraction failed.
var ErrNoFramesExtracted = errors.New("no frames extracted")

// Frame is one extracted sample.
type Frame struct {
	Timestamp float64
	Path      string
	Bytes     []byte
}

// Extractor is the subprocess boundary used to decode one frame.
type Extractor interface {
	ExtractFrame(ctx context.Context, src string, timestamp float64, dst string) error
}

// Sampler extracts frames at given timestamps with best-effort-per-
// timestamp semantics.
type Sampler struct {
	extractor    Extractor
	frameTimeout time.Duration
}

func NewSampler(extractor Extractor, frameTimeout time.Duration) *Sampler {
	if frameTimeout <= 0 {
		frameTimeout = 20 * time.Second
	}
	return &Sampler{extractor: extractor, frameTimeout: frameTimeout}
}

// Extract decodes one frame per timestamp into dir, concurrently. Each
// extraction settles independently: a failure (including a per-frame
// timeout) never cancels its siblings. Succeeds with the ordered
// successful subset as long as at least one frame was produced.
func (s *Sampler) Extract(ctx context.Context, src, dir string, timestamps []float64) ([]Frame, error) {
	type outcome struct {
		index int
		frame Frame
		err   error
	}

	results := make([]outcome, len(timestamps))
	var wg sync.WaitGroup
	for i, ts := range timestamps {
		wg.Add(1)
		go func(i int, ts float64) {
			defer wg.Done()
			dst := filepath.Join(dir, fmt.Sprintf("frame_%d.png", i))

			frameCtx, cancel := context.WithTimeout(ctx, s.frameTimeout)
			defer cancel()

			if err := s.extractor.ExtractFrame(frameCtx, src, ts, dst); err != nil {
				results[i] = outcome{index: i, err: err}
				return
			}
			data, err := os.ReadFile(dst)
			if err != nil {
				results[i] = outcome{index: i, err: err}
				return
			}
			results[i] = outcome{index: i, frame: Frame{Timestamp: ts, Path: dst, Bytes: data}}
		}(i, ts)
	}
	wg.Wait()

	var frames []Frame
	var failures []error
	for _, r := range results {
		if r.err != nil {
			slog.Warn("frame extraction failed", "index", r.index, "error", r.err)
			failures = append(failures, r.err)
			continue
		}
		frames = append(frames, r.frame)
	}
	sort.Slice(frames, func(a, b int) bool { return frames[a].Timestamp < frames[b].Timestamp })

	if len(frames) == 0 {
		if len(failures) > 0 {
			return nil, fmt.Errorf("%w: %v", ErrNoFramesExtracted, errors.Join(failures...))
		}
		return nil, ErrNoFramesExtracted
	}
	return frames, nil
}
