// File: internal/session/runner.go
// Package session drives a single unattended interaction session: locate the
// mirror window, unlock the handset, then alternate perception and gestures
// until the allotted duration runs out. The screen is turned off when the
// session ends, no matter how it ends.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot-cli/internal/config"
	"github.com/xkilldash9x/droidpilot-cli/internal/device"
	"github.com/xkilldash9x/droidpilot-cli/internal/perception"
	"github.com/xkilldash9x/droidpilot-cli/internal/sampling"
)

// Dwell ranges between loop iterations. A hit means a label was detected and
// acted on, which warrants lingering on the result.
const (
	minHitDwell  = 2 * time.Second
	maxHitDwell  = 17 * time.Second
	minMissDwell = 1 * time.Second
	maxMissDwell = 5 * time.Second

	defaultUnlockSettle = 2 * time.Second

	// Screen-off gets its own deadline so a cancelled session context
	// cannot leave the display lit.
	screenOffTimeout = 10 * time.Second
)

// Gestures is the slice of the synthesizer a session uses.
type Gestures interface {
	ClickPoint(ctx context.Context) error
	ScrollGesture(ctx context.Context) error
}

// Decider turns a captured frame into an optional decision.
type Decider interface {
	Decide(ctx context.Context, frame []byte) (perception.Decision, bool)
}

// CounterSink records which labels a session acted on.
type CounterSink interface {
	Increment(ctx context.Context, label string) error
	Flush(ctx context.Context) error
}

// Config carries the per-session parameters.
type Config struct {
	Duration     time.Duration
	UnlockMethod config.UnlockMethod
	Credential   string
	UnlockSettle time.Duration
}

// Runner executes sessions against a located mirror window.
type Runner struct {
	device      device.Actuator
	locator     device.WindowLocator
	windowTitle string
	gestures    Gestures
	decider     Decider
	counters    CounterSink
	sampler     *sampling.Sampler
	log         *zap.Logger

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner wires up a session runner.
func NewRunner(
	dev device.Actuator,
	locator device.WindowLocator,
	windowTitle string,
	gestures Gestures,
	decider Decider,
	counters CounterSink,
	sampler *sampling.Sampler,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		device:      dev,
		locator:     locator,
		windowTitle: windowTitle,
		gestures:    gestures,
		decider:     decider,
		counters:    counters,
		sampler:     sampler,
		log:         logger.Named("session"),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Run executes one session. Locating the mirror window is the only terminal
// failure; everything after that is best-effort and the session runs out its
// clock. The handset screen is switched off on every exit path past the
// locate step.
func (r *Runner) Run(ctx context.Context, cfg Config) error {
	log := r.log.With(zap.String("session_id", uuid.NewString()[:8]))

	if err := r.locator.Find(ctx, r.windowTitle); err != nil {
		return fmt.Errorf("target window %q not found: %w", r.windowTitle, err)
	}

	defer func() {
		// Deliberately not the session context: screen-off must still run
		// when the session was cancelled.
		offCtx, cancel := context.WithTimeout(context.Background(), screenOffTimeout)
		defer cancel()
		if err := r.device.ScreenOff(offCtx); err != nil {
			log.Warn("Failed to switch screen off at session end", zap.Error(err))
		}
	}()

	log.Info("Session starting", zap.Duration("duration", cfg.Duration))

	if err := r.unlock(ctx, cfg, log); err != nil {
		// Only cancellation is terminal here; actuator failures during
		// unlock were already logged and the loop still gets its chance.
		return err
	}

	deadline := r.now().Add(cfg.Duration)
	hits := 0
	iterations := 0

	for r.now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			log.Info("Session cancelled", zap.Int("iterations", iterations), zap.Int("hits", hits))
			return err
		}
		iterations++

		hit := r.iterate(ctx, log)
		if hit {
			hits++
		}

		if err := r.counters.Flush(ctx); err != nil {
			log.Warn("Counter flush failed", zap.Error(err))
		}

		dwell := r.dwell(hit)
		if err := r.sleep(ctx, dwell); err != nil {
			log.Info("Session cancelled", zap.Int("iterations", iterations), zap.Int("hits", hits))
			return err
		}
	}

	log.Info("Session complete", zap.Int("iterations", iterations), zap.Int("hits", hits))
	return nil
}

// unlock wakes the handset and clears the lock screen per the configured
// method. Actuator failures are logged and skipped so a transient transport
// hiccup never forfeits the session; unknown methods land on the wake alone.
// Only a cancelled context can make unlock fail.
func (r *Runner) unlock(ctx context.Context, cfg Config, log *zap.Logger) error {
	if err := r.device.Wake(ctx); err != nil {
		log.Warn("Wake failed, continuing", zap.Error(err))
	}

	switch cfg.UnlockMethod {
	case config.UnlockPin:
		if err := r.device.SwipeUnlock(ctx); err != nil {
			log.Warn("Unlock swipe failed, continuing", zap.Error(err))
		}
		if err := r.device.EnterCredential(ctx, cfg.Credential); err != nil {
			log.Warn("Credential entry failed, continuing", zap.Error(err))
		}
	case config.UnlockNoPin:
		if err := r.device.SwipeUnlock(ctx); err != nil {
			log.Warn("Unlock swipe failed, continuing", zap.Error(err))
		}
	default:
		log.Warn("Unknown unlock method, proceeding without unlocking",
			zap.String("method", string(cfg.UnlockMethod)))
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	settle := cfg.UnlockSettle
	if settle <= 0 {
		settle = defaultUnlockSettle
	}
	return r.sleep(ctx, settle)
}

// iterate runs one perceive/act cycle and reports whether it was a hit.
// Failures inside the cycle degrade to a miss.
func (r *Runner) iterate(ctx context.Context, log *zap.Logger) bool {
	frame, err := r.device.CaptureFrame(ctx)
	if err != nil {
		log.Warn("Frame capture failed", zap.Error(err))
		frame = nil
	}

	decision, ok := r.decider.Decide(ctx, frame)
	if ok {
		if err := r.counters.Increment(ctx, decision.Label); err != nil {
			log.Warn("Counter increment failed", zap.String("label", decision.Label), zap.Error(err))
		}
		if err := r.gestures.ClickPoint(ctx); err != nil {
			log.Warn("Click gesture failed", zap.Error(err))
		}
	}

	if err := r.gestures.ScrollGesture(ctx); err != nil {
		log.Warn("Scroll gesture failed", zap.Error(err))
	}
	return ok
}

func (r *Runner) dwell(hit bool) time.Duration {
	if hit {
		return r.sampler.DurationBetween(minHitDwell, maxHitDwell)
	}
	return r.sampler.DurationBetween(minMissDwell, maxMissDwell)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
