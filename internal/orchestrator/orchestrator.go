// File: internal/orchestrator/orchestrator.go
// The orchestrator owns the daemon lifecycle: it validates the requested
// profile, brings up the mirror, wires the session machinery together and
// runs the scheduler, heartbeat and counter keeper until Stop. Start and
// Stop are both idempotent.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/droidpilot-cli/internal/config"
	"github.com/xkilldash9x/droidpilot-cli/internal/device"
	"github.com/xkilldash9x/droidpilot-cli/internal/gesture"
	"github.com/xkilldash9x/droidpilot-cli/internal/heartbeat"
	"github.com/xkilldash9x/droidpilot-cli/internal/perception"
	"github.com/xkilldash9x/droidpilot-cli/internal/sampling"
	"github.com/xkilldash9x/droidpilot-cli/internal/scheduler"
	"github.com/xkilldash9x/droidpilot-cli/internal/session"
	"github.com/xkilldash9x/droidpilot-cli/internal/store"
)

// sessionDrainTimeout bounds how long Stop waits for in-flight sessions.
const sessionDrainTimeout = 5 * time.Second

// MirrorController is the slice of the mirror process manager the
// orchestrator drives.
type MirrorController interface {
	Start(ctx context.Context) error
	Find(ctx context.Context, title string) error
	Stop() error
}

// Orchestrator manages the daemon lifecycle. It is injected with the device
// transport and mirror controller so tests can run it against fakes.
type Orchestrator struct {
	cfg       *config.Config
	actuator  device.Actuator
	mirror    MirrorController
	perceiver perception.Perceiver
	log       *zap.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	group    *errgroup.Group
	sessions sync.WaitGroup
	sched    *scheduler.Scheduler
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPerceiver overrides the default Gemini-backed frame classifier.
func WithPerceiver(p perception.Perceiver) Option {
	return func(o *Orchestrator) { o.perceiver = p }
}

// New creates an Orchestrator.
func New(cfg *config.Config, actuator device.Actuator, mirror MirrorController, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil || actuator == nil || mirror == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	o := &Orchestrator{
		cfg:      cfg,
		actuator: actuator,
		mirror:   mirror,
		log:      logger.Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start validates the request, brings up the mirror and launches the
// background tasks. Calling Start on a running orchestrator is a no-op.
func (o *Orchestrator) Start(profileCode string, unlockMethod config.UnlockMethod, credential string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		o.log.Debug("Start called while already running, ignoring")
		return nil
	}

	profile, err := scheduler.ParseProfile(profileCode)
	if err != nil {
		return err
	}
	switch unlockMethod {
	case config.UnlockPin, config.UnlockNoPin:
	default:
		return fmt.Errorf("unknown unlock method %q (expected %q or %q)",
			unlockMethod, config.UnlockPin, config.UnlockNoPin)
	}
	if unlockMethod == config.UnlockPin && credential == "" {
		return fmt.Errorf("unlock method %q requires a credential", unlockMethod)
	}

	perceiver := o.perceiver
	if perceiver == nil {
		perceiver, err = perception.NewGeminiPerceiver(o.cfg.Perception, o.log)
		if err != nil {
			return fmt.Errorf("failed to build frame classifier: %w", err)
		}
	}

	countsPath, err := o.cfg.Store.CountsPath()
	if err != nil {
		return fmt.Errorf("failed to resolve counter path: %w", err)
	}
	fileStore, err := store.NewFileStore(countsPath, o.log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := o.mirror.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start mirror: %w", err)
	}

	width, height := o.actuator.ScreenSize(ctx)
	o.log.Info("Device ready", zap.Int("width", width), zap.Int("height", height))

	sampler := sampling.New(nil)
	keeper := store.NewKeeper(fileStore, o.log)
	synth := gesture.NewSynthesizer(o.actuator, sampler, width, height, o.log)
	decider := perception.NewDecider(perceiver, o.cfg.Perception.Threshold, o.log)
	runner := session.NewRunner(
		o.actuator, o.mirror, o.cfg.Mirror.WindowTitle,
		synth, decider, keeper, sampler, o.log,
	)

	sessionCfg := session.Config{
		UnlockMethod: unlockMethod,
		Credential:   credential,
		UnlockSettle: o.cfg.Session.UnlockSettle,
	}
	spawn := func(duration time.Duration) {
		cfg := sessionCfg
		cfg.Duration = duration
		o.sessions.Add(1)
		go func() {
			defer o.sessions.Done()
			if err := runner.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
				o.log.Error("Session failed", zap.Error(err))
			}
		}()
	}

	sched, err := scheduler.New(o.cfg.Schedule, profile, sampler, spawn, o.log)
	if err != nil {
		cancel()
		if stopErr := o.mirror.Stop(); stopErr != nil {
			o.log.Warn("Mirror teardown failed", zap.Error(stopErr))
		}
		return err
	}
	hb := heartbeat.New(o.actuator, o.cfg.Heartbeat.Interval, o.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return keeper.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return hb.Run(gctx) })

	o.cancel = cancel
	o.group = g
	o.sched = sched
	o.running = true
	o.log.Info("Orchestrator started", zap.String("profile", string(profile)))
	return nil
}

// Stop cancels the background tasks, waits briefly for in-flight sessions
// and tears down the mirror. Calling Stop when not running is a no-op.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		o.log.Debug("Stop called while not running, ignoring")
		return nil
	}

	o.cancel()

	var firstErr error
	if err := o.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		firstErr = err
	}

	drained := make(chan struct{})
	go func() {
		o.sessions.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(sessionDrainTimeout):
		o.log.Warn("Timed out waiting for sessions to finish")
	}

	if err := o.mirror.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}

	o.running = false
	o.cancel = nil
	o.group = nil
	o.sched = nil
	o.log.Info("Orchestrator stopped")
	return firstErr
}

// Status reports whether the daemon is running and, when it is, the current
// trigger times.
func (o *Orchestrator) Status() (running bool, triggers []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sched != nil {
		triggers = o.sched.Triggers().Times()
	}
	return o.running, triggers
}
