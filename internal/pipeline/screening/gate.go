// Package screening decides whether submitted media is explicit. The gate
// fails open: a classifier outage never blocks legitimate content.
package screening

import (
	"log/slog"
	"strings"
)

// Labels that count as explicit content.
var positiveLabels = map[string]bool{
	"porn":   true,
	"hentai": true,
}

// Classifier is the boundary to the classification service.
type Classifier interface {
	Classify(imageBytes []byte) ([]Prediction, error)
}

// Gate screens single images and sampled frame sets.
type Gate struct {
	classifier Classifier
	threshold  float64
}

func NewGate(classifier Classifier, threshold float64) *Gate {
	if threshold <= 0 {
		threshold = 0.7
	}
	return &Gate{classifier: classifier, threshold: threshold}
}

// Screen classifies one image. Any classifier error degrades to "not
// flagged".
func (g *Gate) Screen(imageBytes []byte) bool {
	if len(imageBytes) < 10 {
		slog.Warn("screening: buffer too small, assuming safe")
		return false
	}
	predictions, err := g.classifier.Classify(imageBytes)
	if err != nil {
		slog.Warn("screening: classifier failed, assuming safe", "error", err)
		return false
	}
	for _, p := range predictions {
		if positiveLabels[strings.ToLower(p.Label)] && p.Probability > g.threshold {
			return true
		}
	}
	return false
}

// ScreenFrames classifies each sampled frame independently; any positive
// frame marks the whole item.
func (g *Gate) ScreenFrames(frames [][]byte) bool {
	for i, frame := range frames {
		if g.Screen(frame) {
			slog.Info("screening: frame flagged", "frame", i)
			return true
		}
	}
	return false
}
