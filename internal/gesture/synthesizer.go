// File: internal/gesture/synthesizer.go
// The gesture package synthesizes the physical interactions of a session:
// randomized click points inside a central target region and downward scroll
// swipes. Coordinates come from bounded heavy-tailed sampling with a small
// Perlin tremor on top, so no two gestures land identically.
package gesture

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot-cli/internal/sampling"
)

// Actuator is the slice of the device transport gestures need.
type Actuator interface {
	MoveAndClick(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error
}

// Fixed gesture pacing.
const (
	preClickDelay    = 300 * time.Millisecond
	interClickDelay  = 100 * time.Millisecond
	preScrollSettle  = 500 * time.Millisecond
	minSwipeDuration = 100 * time.Millisecond
	maxSwipeDuration = 200 * time.Millisecond
)

// tremorAmplitude bounds the Perlin offset added to click points, in pixels.
const tremorAmplitude = 2.0

// Region bounds one sampled coordinate axis pair: a center and scale for the
// draw plus the inclusive interval the result must land in.
type Region struct {
	CenterX, CenterY int
	ScaleX, ScaleY   float64
	MinX, MaxX       int
	MinY, MaxY       int
}

// ClickRegion computes the central click target region for a screen: both
// axes bounded to 15-50% of the dimension, centered at 30% with a tight 1%
// spread.
func ClickRegion(width, height int) Region {
	return Region{
		CenterX: int(float64(width) * 0.3),
		CenterY: int(float64(height) * 0.3),
		ScaleX:  float64(width) * 0.01,
		ScaleY:  float64(height) * 0.01,
		MinX:    int(float64(width) * 0.15),
		MaxX:    int(float64(width) * 0.5),
		MinY:    int(float64(height) * 0.15),
		MaxY:    int(float64(height) * 0.5),
	}
}

// scrollRegion computes the swipe sampling bounds: x within 30-70% of width
// around the horizontal center, y within 30-95% of height with start and end
// centers at 85% and 40%.
func scrollRegion(width, height int) (start, end Region) {
	base := Region{
		ScaleX: float64(width) * 0.02,
		ScaleY: float64(height) * 0.05,
		MinX:   int(float64(width) * 0.3),
		MaxX:   int(float64(width) * 0.7),
		MinY:   int(float64(height) * 0.3),
		MaxY:   int(float64(height) * 0.95),
	}
	start, end = base, base
	start.CenterX = int(float64(width) * 0.5)
	start.CenterY = int(float64(height) * 0.85)
	end.CenterX = int(float64(width) * 0.5)
	end.CenterY = int(float64(height) * 0.4)
	return start, end
}

// Synthesizer produces and executes gestures against a fixed screen
// coordinate space.
type Synthesizer struct {
	act     Actuator
	sampler *sampling.Sampler
	width   int
	height  int
	log     *zap.Logger

	mu     sync.Mutex
	noiseX *perlin.Perlin
	noiseY *perlin.Perlin
	noiseT float64
}

// NewSynthesizer creates a Synthesizer for the given screen dimensions.
func NewSynthesizer(act Actuator, sampler *sampling.Sampler, width, height int, logger *zap.Logger) *Synthesizer {
	seed := time.Now().UnixNano()
	alpha, beta, n := 2.0, 2.0, int32(3)
	return &Synthesizer{
		act:     act,
		sampler: sampler,
		width:   width,
		height:  height,
		log:     logger.Named("gesture"),
		noiseX:  perlin.NewPerlin(alpha, beta, n, seed),
		noiseY:  perlin.NewPerlin(alpha, beta, n, seed+1),
	}
}

// ClickPoint samples a point in the central target region and issues a move
// plus two clicks at it, separated by short fixed delays.
func (s *Synthesizer) ClickPoint(ctx context.Context) error {
	r := ClickRegion(s.width, s.height)
	x := s.sampler.Cauchy(float64(r.CenterX), r.ScaleX, r.MinX, r.MaxX)
	y := s.sampler.Cauchy(float64(r.CenterY), r.ScaleY, r.MinY, r.MaxY)
	x, y = s.tremor(x, y, r)

	s.log.Debug("Synthesized click point", zap.Int("x", x), zap.Int("y", y))

	if err := pause(ctx, preClickDelay); err != nil {
		return err
	}
	if err := s.act.MoveAndClick(ctx, x, y); err != nil {
		return err
	}
	if err := pause(ctx, interClickDelay); err != nil {
		return err
	}
	return s.act.MoveAndClick(ctx, x, y)
}

// ScrollGesture samples a downward swipe and executes it. If the sampled
// start point lands above the end point, the end is re-sampled once to bias
// the gesture downward; this is best-effort, not a guarantee.
func (s *Synthesizer) ScrollGesture(ctx context.Context) error {
	if err := pause(ctx, preScrollSettle); err != nil {
		return err
	}

	start, end := scrollRegion(s.width, s.height)
	x1 := s.sampler.Cauchy(float64(start.CenterX), start.ScaleX, start.MinX, start.MaxX)
	x2 := s.sampler.Cauchy(float64(end.CenterX), end.ScaleX, end.MinX, end.MaxX)
	y1 := s.sampler.Cauchy(float64(start.CenterY), start.ScaleY, start.MinY, start.MaxY)
	y2 := s.sampler.Cauchy(float64(end.CenterY), end.ScaleY, end.MinY, end.MaxY)

	if y1 < y2 {
		y2 = s.sampler.Cauchy(float64(end.CenterY), end.ScaleY, end.MinY, end.MaxY)
	}

	duration := s.sampler.DurationBetween(minSwipeDuration, maxSwipeDuration)

	s.log.Debug("Synthesized scroll",
		zap.Int("x1", x1), zap.Int("y1", y1),
		zap.Int("x2", x2), zap.Int("y2", y2),
		zap.Duration("duration", duration),
	)
	return s.act.Swipe(ctx, x1, y1, x2, y2, duration)
}

// tremor adds a small Perlin noise offset to a click point, clamped back into
// the region so the bounds contract still holds.
func (s *Synthesizer) tremor(x, y int, r Region) (int, int) {
	s.mu.Lock()
	s.noiseT += 0.1
	dx := s.noiseX.Noise1D(s.noiseT) * tremorAmplitude
	dy := s.noiseY.Noise1D(s.noiseT) * tremorAmplitude
	s.mu.Unlock()

	tx := clamp(x+int(math.Round(dx)), r.MinX, r.MaxX)
	ty := clamp(y+int(math.Round(dy)), r.MinY, r.MaxY)
	return tx, ty
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// pause sleeps for d, respecting context cancellation.
func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
