// Package pipeline orchestrates a submission's path from raw bytes to a
// catalogued sticker: identity, dedup, screening, annotation, normalization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"stickerd/internal/ffmpeg"
	"stickerd/internal/overrides"
	"stickerd/internal/pipeline/annotate"
	"stickerd/internal/pipeline/encoder"
	"stickerd/internal/pipeline/frames"
	"stickerd/internal/pipeline/identity"
	"stickerd/internal/pipeline/scratch"
	"stickerd/internal/storage"
	"stickerd/internal/webpmeta"
)

// Catalog is the persistence boundary used by the orchestrator.
type Catalog interface {
	FindByFingerprint(hashVisual string) (*storage.MediaRecord, error)
	InsertMediaRecord(m storage.MediaRecord) error
	ReplaceTags(mediaID string, tags []string) error
}

// Screener decides whether content is flagged.
type Screener interface {
	Screen(image []byte) bool
	ScreenFrames(images [][]byte) bool
}

// Annotator produces descriptions and tags.
type Annotator interface {
	AnnotateImage(ctx context.Context, image []byte, mimetype string) (annotate.Result, error)
	AnnotateFrames(ctx context.Context, images [][]byte) (annotate.Result, error)
	AnnotateTranscript(ctx context.Context, res annotate.Result, transcript string) annotate.Result
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Prober is the ffprobe/audio-demux boundary; internal/ffmpeg.Tool
// satisfies it.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffmpeg.Probe, error)
	FirstFramePNG(ctx context.Context, src, dst string) error
	ExtractAudioWAV(ctx context.Context, src, dst string) error
}

// StickerEncoder normalizes media into the sticker encoding.
type StickerEncoder interface {
	EncodeStatic(ctx context.Context, src, dir string) ([]byte, error)
	EncodeAnimated(ctx context.Context, src, dir string, longerSide int) (encoder.Encoded, error)
	EncodeVideoSticker(ctx context.Context, src, dir string) (encoder.Encoded, error)
}

// Deps wires a Processor.
type Deps struct {
	Catalog     Catalog
	Screener    Screener
	Annotator   Annotator
	Transcriber Transcriber
	Prober      Prober
	Encoder     StickerEncoder
	Sampler     *frames.Sampler
	Scratch     *scratch.Manager
	Messenger   Messenger

	// One-shot per-conversation overrides.
	ForceDuplicate    *overrides.Store
	ForceVideoSticker *overrides.Store

	MediaDir string
}

// Processor runs the ingestion pipeline for one submission at a time.
// Instances are safe for concurrent use; per-item state lives on the stack
// and in scratch directories.
type Processor struct {
	deps Deps
}

func NewProcessor(deps Deps) *Processor {
	return &Processor{deps: deps}
}

// ProcessIncoming runs one submission end to end. The returned Outcome is
// meaningful only when err is nil.
func (p *Processor) ProcessIncoming(ctx context.Context, item MediaItem) (Outcome, error) {
	p.setTyping(ctx, item.ConversationID, true)
	defer p.setTyping(ctx, item.ConversationID, false)

	var out Outcome
	err := p.deps.Scratch.WithScratch(item.ConversationID, func(dir string) error {
		var runErr error
		out, runErr = p.route(ctx, item, dir)
		return runErr
	})
	if err != nil {
		p.sendError(ctx, item.ConversationID, err)
		return Outcome{}, err
	}
	return out, nil
}

func (p *Processor) route(ctx context.Context, item MediaItem, dir string) (Outcome, error) {
	src := filepath.Join(dir, "input"+extFor(item.Mimetype))
	if err := os.WriteFile(src, item.Data, 0o644); err != nil {
		return Outcome{}, fmt.Errorf("write scratch input: %w", err)
	}

	switch {
	case item.Mimetype == "image/webp" && webpmeta.IsAnimated(item.Data):
		return p.processAnimated(ctx, item, src, dir)
	case item.Mimetype == "image/gif":
		return p.processAnimated(ctx, item, src, dir)
	case strings.HasPrefix(item.Mimetype, "image/"):
		return p.processStatic(ctx, item, src, dir)
	case strings.HasPrefix(item.Mimetype, "video/"):
		return p.processVideo(ctx, item, src, dir)
	case strings.HasPrefix(item.Mimetype, "audio/"):
		return p.processAudio(ctx, item, src, dir)
	default:
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, item.Mimetype)
	}
}

// processStatic handles plain images: PNG, JPEG, non-animated WebP.
func (p *Processor) processStatic(ctx context.Context, item MediaItem, src, dir string) (Outcome, error) {
	fingerprint := p.staticFingerprint(ctx, item.Data, src, dir)

	if dup := p.checkDuplicate(fingerprint, item.ConversationID); dup != nil {
		return p.reportDuplicate(ctx, item, dup), nil
	}

	flagged := p.deps.Screener.Screen(item.Data)

	res := annotate.Result{}
	if !flagged {
		res, _ = annotate.RunChain(ctx,
			func(ctx context.Context) (annotate.Result, error) {
				return p.deps.Annotator.AnnotateImage(ctx, item.Data, item.Mimetype)
			},
			annotate.PlaceholderStrategy(annotate.CategoryFailed),
		)
	}

	webp, err := p.deps.Encoder.EncodeStatic(ctx, src, dir)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	rec, err := p.persist(item, webp, "image/webp", fingerprint, res, flagged)
	if err != nil {
		return Outcome{}, err
	}
	p.deliverSticker(ctx, item.ConversationID, webp, res)
	return Outcome{
		Status:  StatusCreated,
		Record:  &MediaRecordRef{ID: rec.ID, Description: rec.Description},
		Flagged: flagged,
	}, nil
}

// processAnimated handles animated WebP and GIF sources.
func (p *Processor) processAnimated(ctx context.Context, item MediaItem, src, dir string) (Outcome, error) {
	sampled, _, longerSide := p.sampleFrames(ctx, src, dir)

	fingerprint := compositeFingerprint(sampled)
	if dup := p.checkDuplicate(fingerprint, item.ConversationID); dup != nil {
		return p.reportDuplicate(ctx, item, dup), nil
	}

	flagged := p.screenFrames(sampled)

	res := annotate.Result{}
	if !flagged {
		res = p.annotateSampled(ctx, sampled, src, dir)
	}

	out, err := p.deps.Encoder.EncodeAnimated(ctx, src, dir, longerSide)
	if err != nil {
		return Outcome{}, fmt.Errorf("animated encode: %w", err)
	}

	rec, err := p.persist(item, out.Bytes, "image/webp", fingerprint, res, flagged)
	if err != nil {
		return Outcome{}, err
	}
	p.warnOversized(ctx, item.ConversationID, out.Oversized)
	p.deliverSticker(ctx, item.ConversationID, out.Bytes, res)
	return Outcome{
		Status:    StatusCreated,
		Record:    &MediaRecordRef{ID: rec.ID, Description: rec.Description},
		Oversized: out.Oversized,
		Flagged:   flagged,
	}, nil
}

// processVideo converts GIF-like videos into animated stickers and keeps
// the rest in their original encoding.
func (p *Processor) processVideo(ctx context.Context, item MediaItem, src, dir string) (Outcome, error) {
	probe, probeErr := p.deps.Prober.Inspect(ctx, src)
	if probeErr != nil {
		slog.Warn("probe failed", "error", probeErr)
	}

	forced := p.deps.ForceVideoSticker.Consume(item.ConversationID)
	gifLike := forced || (probeErr == nil && frames.GIFLike(probe))

	sampled, _, _ := p.sampleFrames(ctx, src, dir)

	fingerprint := compositeFingerprint(sampled)
	if dup := p.checkDuplicate(fingerprint, item.ConversationID); dup != nil {
		return p.reportDuplicate(ctx, item, dup), nil
	}

	flagged := p.screenFrames(sampled)

	res := annotate.Result{}
	if !flagged {
		res = p.annotateSampled(ctx, sampled, src, dir)
		if probeErr == nil && probe.HasAudio() {
			res = p.deps.Annotator.AnnotateTranscript(ctx, res, p.transcribeAudio(ctx, src, dir))
		}
	}

	if !gifLike {
		// Kept as-is: a long or rich video makes a bad sticker.
		rec, err := p.persist(item, item.Data, item.Mimetype, fingerprint, res, flagged)
		if err != nil {
			return Outcome{}, err
		}
		p.sendText(ctx, item.ConversationID, "Vídeo guardado no catálogo: "+rec.Description)
		return Outcome{
			Status:  StatusStored,
			Record:  &MediaRecordRef{ID: rec.ID, Description: rec.Description},
			Flagged: flagged,
		}, nil
	}

	out, err := p.deps.Encoder.EncodeVideoSticker(ctx, src, dir)
	if err != nil {
		return Outcome{}, fmt.Errorf("video encode: %w", err)
	}

	rec, err := p.persist(item, out.Bytes, "image/webp", fingerprint, res, flagged)
	if err != nil {
		return Outcome{}, err
	}
	p.warnOversized(ctx, item.ConversationID, out.Oversized)
	p.deliverSticker(ctx, item.ConversationID, out.Bytes, res)
	return Outcome{
		Status:    StatusCreated,
		Record:    &MediaRecordRef{ID: rec.ID, Description: rec.Description},
		Oversized: out.Oversized,
		Flagged:   flagged,
	}, nil
}

// processAudio stores voice/audio messages with their transcript. No
// sticker is produced and no perceptual fingerprint exists.
func (p *Processor) processAudio(ctx context.Context, item MediaItem, src, dir string) (Outcome, error) {
	res := p.deps.Annotator.AnnotateTranscript(ctx, annotate.Result{}, p.transcribeAudio(ctx, src, dir))
	if res.Description == "" {
		res = annotate.Placeholder(annotate.CategoryFailed)
	}

	rec, err := p.persist(item, item.Data, item.Mimetype, "", res, false)
	if err != nil {
		return Outcome{}, err
	}
	p.sendText(ctx, item.ConversationID, "Áudio transcrito: "+rec.Description)
	return Outcome{
		Status: StatusStored,
		Record: &MediaRecordRef{ID: rec.ID, Description: rec.Description},
	}, nil
}

// sampleFrames probes and extracts sample frames. Failures degrade: a bad
// probe falls back to the default duration, a failed extraction returns an
// empty set.
func (p *Processor) sampleFrames(ctx context.Context, src, dir string) ([]frames.Frame, float64, int) {
	duration := 0.0
	longerSide := 0
	if probe, err := p.deps.Prober.Inspect(ctx, src); err == nil {
		duration = probe.DurationSeconds()
		if v := probe.VideoStream(); v != nil {
			longerSide = v.Width
			if v.Height > longerSide {
				longerSide = v.Height
			}
		}
	} else {
		slog.Warn("probe failed, using fallback duration", "error", err)
	}

	timestamps := frames.SampleTimestamps(duration)
	sampled, err := p.deps.Sampler.Extract(ctx, src, dir, timestamps)
	if err != nil {
		slog.Warn("frame extraction failed", "error", err)
		return nil, duration, longerSide
	}
	return sampled, duration, longerSide
}

// staticFingerprint hashes a still image. The stdlib decoder covers PNG,
// JPEG and GIF; everything else, static WebP included, goes through an
// ffmpeg PNG decode first. Empty string when no decode works, which
// skips dedup.
func (p *Processor) staticFingerprint(ctx context.Context, data []byte, src, dir string) string {
	if img, err := identity.DecodeImage(data); err == nil {
		return identity.PerceptualHash(img)
	}

	dst := filepath.Join(dir, "identity.png")
	if err := p.deps.Prober.FirstFramePNG(ctx, src, dst); err != nil {
		slog.Warn("image decode failed, skipping dedup", "error", err)
		return ""
	}
	frame, err := os.ReadFile(dst)
	if err != nil {
		slog.Warn("decoded frame unreadable, skipping dedup", "error", err)
		return ""
	}
	img, err := identity.DecodeImage(frame)
	if err != nil {
		slog.Warn("image decode failed, skipping dedup", "error", err)
		return ""
	}
	return identity.PerceptualHash(img)
}

// compositeFingerprint hashes the sampled frames, capped to the identity
// package's frame budget, and joins them. The timestamp sampler yields
// three frames today, under the cap. An empty result means identity
// is unknown and dedup is skipped.
func compositeFingerprint(sampled []frames.Frame) string {
	if len(sampled) == 0 {
		return ""
	}
	positions := identity.FramePositions(len(sampled), identity.MaxSampledFrames)
	hashes := make([]string, 0, len(positions))
	for _, pos := range positions {
		img, err := identity.DecodeImage(sampled[pos].Bytes)
		if err != nil {
			hashes = append(hashes, "")
			continue
		}
		hashes = append(hashes, identity.PerceptualHash(img))
	}
	return identity.JoinFingerprint(hashes)
}

func (p *Processor) screenFrames(sampled []frames.Frame) bool {
	if len(sampled) == 0 {
		return false
	}
	images := make([][]byte, len(sampled))
	for i, f := range sampled {
		images[i] = f.Bytes
	}
	return p.deps.Screener.ScreenFrames(images)
}

// annotateSampled runs the fallback chain for frame-based annotation:
// all sampled frames, then the first frame alone, then a fresh first-frame
// decode when sampling produced nothing, then the placeholder.
func (p *Processor) annotateSampled(ctx context.Context, sampled []frames.Frame, src, dir string) annotate.Result {
	if len(sampled) == 0 {
		res, _ := annotate.RunChain(ctx,
			func(ctx context.Context) (annotate.Result, error) {
				return p.annotateFirstFrame(ctx, src, dir)
			},
			annotate.PlaceholderStrategy(annotate.CategoryUnsupported),
		)
		return res
	}

	images := make([][]byte, len(sampled))
	for i, f := range sampled {
		images[i] = f.Bytes
	}

	res, _ := annotate.RunChain(ctx,
		func(ctx context.Context) (annotate.Result, error) {
			return p.deps.Annotator.AnnotateFrames(ctx, images)
		},
		func(ctx context.Context) (annotate.Result, error) {
			return p.deps.Annotator.AnnotateImage(ctx, images[0], "image/png")
		},
		annotate.PlaceholderStrategy(annotate.CategoryFailed),
	)
	return res
}

// annotateFirstFrame decodes the very first frame and annotates it. Last
// resort before the placeholder when timestamp sampling failed outright.
func (p *Processor) annotateFirstFrame(ctx context.Context, src, dir string) (annotate.Result, error) {
	dst := filepath.Join(dir, "first_frame.png")
	if err := p.deps.Prober.FirstFramePNG(ctx, src, dst); err != nil {
		return annotate.Result{}, fmt.Errorf("first frame decode: %w", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		return annotate.Result{}, fmt.Errorf("first frame read: %w", err)
	}
	return p.deps.Annotator.AnnotateImage(ctx, data, "image/png")
}

// transcribeAudio demuxes the audio track to WAV and transcribes it.
// Empty string on any failure.
func (p *Processor) transcribeAudio(ctx context.Context, src, dir string) string {
	wav := filepath.Join(dir, "audio.wav")
	if err := p.deps.Prober.ExtractAudioWAV(ctx, src, wav); err != nil {
		slog.Warn("audio demux failed", "error", err)
		return ""
	}
	data, err := os.ReadFile(wav)
	if err != nil {
		slog.Warn("audio read failed", "error", err)
		return ""
	}
	text, err := p.deps.Transcriber.Transcribe(ctx, data, "audio.wav")
	if err != nil {
		slog.Warn("transcription failed", "error", err)
		return ""
	}
	return text
}

// checkDuplicate consults the fingerprint index unless the force override
// is armed for this conversation. A fingerprintless submission skips the
// check without spending an armed override. Lookup errors fail open.
func (p *Processor) checkDuplicate(fingerprint, conversationID string) *storage.MediaRecord {
	if fingerprint == "" {
		return nil
	}
	if p.deps.ForceDuplicate.Consume(conversationID) {
		slog.Info("duplicate check skipped by override", "conversation", conversationID)
		return nil
	}
	rec, err := p.deps.Catalog.FindByFingerprint(fingerprint)
	if err != nil {
		slog.Warn("fingerprint lookup failed", "error", err)
		return nil
	}
	return rec
}

func (p *Processor) reportDuplicate(ctx context.Context, item MediaItem, dup *storage.MediaRecord) Outcome {
	p.sendText(ctx, item.ConversationID,
		fmt.Sprintf("Figurinha repetida! Já tenho essa no catálogo (id %s).", dup.ID))
	return Outcome{
		Status:    StatusDuplicate,
		Duplicate: &MediaRecordRef{ID: dup.ID, Description: dup.Description},
	}
}

// persist writes the artifact under MediaDir and inserts the catalog
// record with its tags.
func (p *Processor) persist(item MediaItem, data []byte, mimetype, fingerprint string, res annotate.Result, flagged bool) (*storage.MediaRecord, error) {
	id := uuid.NewString()
	path := filepath.Join(p.deps.MediaDir, id+extFor(mimetype))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("persist artifact: %w", err)
	}

	rec := storage.NewMediaRecord(id, path, mimetype, item.ConversationID)
	rec.Description = res.Description
	rec.GroupID = item.GroupID
	rec.SenderID = item.SenderID
	if fingerprint != "" {
		rec.HashVisual = &fingerprint
	}
	md5sum := identity.ExactDigest(item.Data)
	rec.HashMD5 = &md5sum
	if flagged {
		rec.NSFW = 1
	}
	if res.Text != "" {
		rec.ExtractedText = &res.Text
	}

	if err := p.deps.Catalog.InsertMediaRecord(rec); err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	if len(res.Tags) > 0 {
		if err := p.deps.Catalog.ReplaceTags(rec.ID, res.Tags); err != nil {
			slog.Warn("tag persist failed", "id", rec.ID, "error", err)
		}
	}
	return &rec, nil
}

// -- messenger helpers: delivery problems never fail the pipeline --

func (p *Processor) deliverSticker(ctx context.Context, conversationID string, webp []byte, res annotate.Result) {
	if err := p.deps.Messenger.SendSticker(ctx, conversationID, webp); err != nil {
		slog.Warn("sticker delivery failed", "error", err)
		return
	}
	if res.Description != "" {
		p.sendText(ctx, conversationID, res.Description)
	}
}

func (p *Processor) warnOversized(ctx context.Context, conversationID string, oversized bool) {
	if !oversized {
		return
	}
	slog.Warn("delivering oversized sticker", "conversation", conversationID)
	p.sendText(ctx, conversationID, "Aviso: a figurinha ficou acima do tamanho ideal.")
}

func (p *Processor) sendText(ctx context.Context, conversationID, text string) {
	if err := p.deps.Messenger.SendText(ctx, conversationID, text); err != nil {
		slog.Warn("text delivery failed", "error", err)
	}
}

func (p *Processor) sendError(ctx context.Context, conversationID string, cause error) {
	msg := "Não consegui processar esse arquivo."
	if errors.Is(cause, ErrUnsupportedFormat) {
		msg = "Esse formato não é suportado."
	}
	if err := p.deps.Messenger.SendError(ctx, conversationID, msg); err != nil {
		slog.Warn("error delivery failed", "error", err)
	}
}

func (p *Processor) setTyping(ctx context.Context, conversationID string, typing bool) {
	if err := p.deps.Messenger.SetTyping(ctx, conversationID, typing); err != nil {
		slog.Debug("typing indicator failed", "error", err)
	}
}

func extFor(mimetype string) string {
	switch mimetype {
	case "image/webp":
		return ".webp"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "audio/ogg", "audio/ogg; codecs=opus":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}
