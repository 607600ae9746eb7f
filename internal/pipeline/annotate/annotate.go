// Package annotate produces a description and tag set for accepted media,
// degrading through fallbacks instead of rejecting the item.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"stickerd/internal/vision"
)

// MaxTags caps the tag set stored per item.
const MaxTags = 5

// Diagnostic categories used by placeholder annotations.
const (
	CategoryUnsupported = "formato-nao-suportado"
	CategoryFailed      = "erro-processamento"
)

// Result is a finished annotation. It is always usable: callers get a
// placeholder rather than a nil or an error when everything fails.
type Result struct {
	Description string
	Tags        []string
	// Text extracted or transcribed from the media, when any.
	Text string
}

// Vision is the model boundary; internal/vision.Client satisfies it.
type Vision interface {
	AnnotateImage(ctx context.Context, image []byte, mimetype, prompt string) (vision.Annotation, error)
	Complete(ctx context.Context, system, user string) (vision.Annotation, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Strategy is one attempt at producing an annotation.
type Strategy func(ctx context.Context) (Result, error)

// RunChain tries strategies in order and returns the first success. The
// caller puts an infallible placeholder last, so the chain as a whole
// cannot fail unless the list is empty.
func RunChain(ctx context.Context, strategies ...Strategy) (Result, error) {
	var errs []error
	for _, s := range strategies {
		res, err := s(ctx)
		if err == nil {
			return res, nil
		}
		slog.Warn("annotation strategy failed", "error", err)
		errs = append(errs, err)
	}
	return Result{}, fmt.Errorf("all annotation strategies failed: %w", errors.Join(errs...))
}

const framePrompt = `Descreva esta imagem em uma frase curta e objetiva, em português. ` +
	`Responda apenas com JSON no formato {"description": "...", "tags": ["...", "..."]}. ` +
	`Use no máximo 5 tags, palavras simples em minúsculas.`

const synthesisSystem = `Você recebe descrições de quadros de um mesmo vídeo ou animação. ` +
	`Combine-as em uma única descrição curta do conteúdo, em português. ` +
	`Responda apenas com JSON no formato {"description": "...", "tags": ["...", "..."]}.`

const transcriptSystem = `Você recebe a transcrição da fala de um vídeo ou áudio. ` +
	`Gere até 5 tags curtas que resumam o assunto, palavras simples em minúsculas. ` +
	`Responda apenas com JSON no formato {"description": "...", "tags": ["...", "..."]}.`

// Aggregator turns per-frame model output into one Result.
type Aggregator struct {
	vision        Vision
	contextTokens int
}

func NewAggregator(v Vision, contextTokens int) *Aggregator {
	if contextTokens <= 0 {
		contextTokens = 8192
	}
	return &Aggregator{vision: v, contextTokens: contextTokens}
}

// AnnotateImage describes a single image.
func (a *Aggregator) AnnotateImage(ctx context.Context, image []byte, mimetype string) (Result, error) {
	ann, err := a.vision.AnnotateImage(ctx, image, mimetype, framePrompt)
	if err != nil {
		return Result{}, err
	}
	return Clean(Result{Description: ann.Description, Tags: ann.Tags}), nil
}

// AnnotateFrames describes a sampled frame set. Per-frame failures are
// tolerated; at least one frame must annotate. Multiple frame annotations
// are merged through one synthesis completion, falling back to the first
// frame's own annotation if synthesis misbehaves.
func (a *Aggregator) AnnotateFrames(ctx context.Context, frames [][]byte) (Result, error) {
	if len(frames) == 0 {
		return Result{}, fmt.Errorf("no frames to annotate")
	}

	var anns []vision.Annotation
	for i, frame := range frames {
		ann, err := a.vision.AnnotateImage(ctx, frame, "image/png", framePrompt)
		if err != nil {
			slog.Warn("frame annotation failed", "frame", i, "error", err)
			continue
		}
		anns = append(anns, ann)
	}
	if len(anns) == 0 {
		return Result{}, fmt.Errorf("no frame produced an annotation")
	}
	if len(anns) == 1 {
		return Clean(Result{Description: anns[0].Description, Tags: anns[0].Tags}), nil
	}

	merged, err := a.synthesize(ctx, anns)
	if err != nil {
		slog.Warn("synthesis failed, keeping first frame annotation", "error", err)
		return Clean(Result{Description: anns[0].Description, Tags: anns[0].Tags}), nil
	}
	return Clean(merged), nil
}

func (a *Aggregator) synthesize(ctx context.Context, anns []vision.Annotation) (Result, error) {
	prompt := a.buildSynthesisPrompt(anns)
	ann, err := a.vision.Complete(ctx, synthesisSystem, prompt)
	if err != nil {
		return Result{}, err
	}
	tags := ann.Tags
	if len(tags) == 0 {
		tags = topTags(anns)
	}
	return Result{Description: ann.Description, Tags: tags}, nil
}

// buildSynthesisPrompt lists frame descriptions plus the most frequent
// tags, trimming trailing frames when the prompt would blow the model's
// context window. The first frame always stays.
func (a *Aggregator) buildSynthesisPrompt(anns []vision.Annotation) string {
	budget := a.contextTokens - 1024
	if budget < 256 {
		budget = 256
	}

	enc, encErr := tiktoken.GetEncoding("cl100k_base")
	countTokens := func(s string) int {
		if encErr != nil {
			// Rough chars-per-token estimate when the encoding is unavailable.
			return len(s) / 3
		}
		return len(enc.Encode(s, nil, nil))
	}

	var b strings.Builder
	b.WriteString("Quadros:\n")
	used := countTokens(b.String())
	for i, ann := range anns {
		line := fmt.Sprintf("%d. %s\n", i+1, ann.Description)
		cost := countTokens(line)
		if i > 0 && used+cost > budget {
			slog.Debug("synthesis prompt truncated", "frames_kept", i, "frames_total", len(anns))
			break
		}
		b.WriteString(line)
		used += cost
	}

	if tags := topTags(anns); len(tags) > 0 {
		b.WriteString("Tags sugeridas: " + strings.Join(tags, ", "))
	}
	return b.String()
}

// topTags unions all frame tags and keeps the most frequent, ties broken
// by first appearance.
func topTags(anns []vision.Annotation) []string {
	counts := make(map[string]int)
	var order []string
	for _, ann := range anns {
		for _, t := range ann.Tags {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if counts[t] == 0 {
				order = append(order, t)
			}
			counts[t]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > MaxTags {
		order = order[:MaxTags]
	}
	return order
}

// AnnotateTranscript folds extracted speech into res and asks the model
// for tags over the transcript. When the tag prompt fails or yields
// nothing, MergeTranscript's stopword heuristic takes over.
func (a *Aggregator) AnnotateTranscript(ctx context.Context, res Result, transcript string) Result {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return res
	}
	ann, err := a.vision.Complete(ctx, transcriptSystem, "Transcrição: "+transcript)
	if err != nil || len(ann.Tags) == 0 {
		if err != nil {
			slog.Warn("transcript tag prompt failed", "error", err)
		}
		return MergeTranscript(res, transcript)
	}
	res.Tags = mergeTags(res.Tags, ann.Tags)
	return MergeTranscript(res, transcript)
}

// mergeTags unions two tag lists, base first, normalized and capped.
func mergeTags(base, extra []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range append(append([]string(nil), base...), extra...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// MergeTranscript appends extracted speech to a description unless the
// description already contains it.
func MergeTranscript(res Result, transcript string) Result {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return res
	}
	res.Text = transcript
	if !strings.Contains(strings.ToLower(res.Description), strings.ToLower(transcript)) {
		if res.Description == "" {
			res.Description = transcript
		} else {
			res.Description += " | Texto: " + transcript
		}
	}
	if len(res.Tags) == 0 {
		res.Tags = TagsFromText(transcript)
	}
	return res
}

// Placeholder is the terminal fallback. category is one of the diagnostic
// category constants.
func Placeholder(category string) Result {
	desc := "Figurinha recebida"
	if category == CategoryUnsupported {
		desc = "Figurinha em formato não suportado"
	}
	return Result{
		Description: desc,
		Tags:        []string{"figurinha", category},
	}
}

// PlaceholderStrategy wraps Placeholder as an infallible chain member.
func PlaceholderStrategy(category string) Strategy {
	return func(context.Context) (Result, error) {
		return Placeholder(category), nil
	}
}
