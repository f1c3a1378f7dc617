// File: internal/perception/decision.go
// The perception package turns captured frames into go/no-go decisions for
// the session loop: classify the frame against a fixed label vocabulary,
// keep the top label if it clears the confidence threshold, and treat every
// failure as "no decision" so a flaky classifier can never abort a session.
package perception

import (
	"context"

	"go.uber.org/zap"
)

// DefaultThreshold is the minimum confidence a top label must clear for a
// frame to produce a decision.
const DefaultThreshold = 0.51

// Perceiver classifies a frame against a label vocabulary, returning a
// probability per label.
type Perceiver interface {
	Classify(ctx context.Context, frame []byte, labels []string) (map[string]float64, error)
}

// Decision is the outcome of one frame classification.
type Decision struct {
	Label      string
	Confidence float64
}

// Decider applies the confidence threshold on top of a Perceiver.
type Decider struct {
	perceiver Perceiver
	threshold float64
	log       *zap.Logger
}

// NewDecider builds a Decider. A non-positive threshold falls back to
// DefaultThreshold.
func NewDecider(p Perceiver, threshold float64, logger *zap.Logger) *Decider {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Decider{
		perceiver: p,
		threshold: threshold,
		log:       logger.Named("perception"),
	}
}

// Decide classifies the frame and returns the top label when its confidence
// exceeds the threshold. All failures are downgraded to "no decision": the
// caller skips its action for the iteration and the loop continues.
func (d *Decider) Decide(ctx context.Context, frame []byte) (Decision, bool) {
	if len(frame) == 0 {
		return Decision{}, false
	}

	scores, err := d.perceiver.Classify(ctx, frame, Labels)
	if err != nil {
		d.log.Warn("Frame classification failed, skipping iteration", zap.Error(err))
		return Decision{}, false
	}

	var top Decision
	for label, p := range scores {
		if p > top.Confidence {
			top = Decision{Label: label, Confidence: p}
		}
	}

	if top.Label == "" || top.Confidence <= d.threshold {
		return Decision{}, false
	}

	d.log.Info("Detected label",
		zap.String("label", top.Label),
		zap.Float64("confidence", top.Confidence),
	)
	return top, true
}
