// File: internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot-cli/internal/config"
	"github.com/xkilldash9x/droidpilot-cli/internal/sampling"
)

// SpawnFunc launches a session of the given duration. Implementations must
// not block the scheduler loop.
type SpawnFunc func(duration time.Duration)

// Scheduler polls the wall clock against the day's trigger set and spawns
// sessions when a trigger comes due.
type Scheduler struct {
	cfg     config.ScheduleConfig
	profile Profile
	sampler *sampling.Sampler
	spawn   SpawnFunc
	log     *zap.Logger

	// mu guards triggers, which Status readers poll while the Run
	// goroutine redraws it during the nightly refresh.
	mu             sync.Mutex
	triggers       TriggerSet
	lastActivation time.Time

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a scheduler for the given profile. The initial trigger set is
// drawn immediately so the day's plan appears in the logs at startup.
func New(cfg config.ScheduleConfig, profile Profile, sampler *sampling.Sampler, spawn SpawnFunc, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cfg:     cfg,
		profile: profile,
		sampler: sampler,
		spawn:   spawn,
		log:     logger.Named("scheduler"),
		now:     time.Now,
		sleep:   sleepCtx,
	}
	if err := s.regenerate(); err != nil {
		return nil, fmt.Errorf("failed to draw initial triggers: %w", err)
	}
	return s, nil
}

// Triggers returns the currently active trigger set. Safe to call while the
// scheduler is running.
func (s *Scheduler) Triggers() TriggerSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("Scheduler started",
		zap.String("profile", string(s.profile)),
		zap.Strings("triggers", s.triggers.Times()),
	)

	for {
		extra := s.tick(s.now())
		if err := s.sleep(ctx, s.cfg.PollInterval+extra); err != nil {
			s.log.Info("Scheduler stopped")
			return err
		}
	}
}

// tick runs one poll step and returns any additional back-off to add to the
// next poll interval.
func (s *Scheduler) tick(now time.Time) time.Duration {
	clock := now.Format(clockLayout)

	// Nightly refresh window. HH:MM strings compare correctly because the
	// window never spans midnight.
	if clock >= s.cfg.RegenStart && clock <= s.cfg.RegenEnd {
		if err := s.regenerate(); err != nil {
			s.log.Error("Trigger regeneration failed, keeping previous set", zap.Error(err))
			return s.cfg.RegenBackoff
		}
		s.log.Info("Drew new daily triggers", zap.Strings("triggers", s.Triggers().Times()))
		return s.cfg.RegenBackoff
	}

	set := s.Triggers()
	for _, trigger := range set.Times() {
		due, err := WithinTolerance(clock, trigger, s.cfg.Tolerance)
		if err != nil {
			s.log.Error("Skipping unparseable trigger", zap.String("trigger", trigger), zap.Error(err))
			continue
		}
		if !due {
			continue
		}

		// One trigger fires at most one session; the gap also swallows the
		// remaining polls inside the same tolerance window.
		if !s.lastActivation.IsZero() && now.Sub(s.lastActivation) <= s.cfg.ActivationGap {
			return 0
		}
		s.lastActivation = now

		// The lookup is keyed on the wall clock, not the matched trigger:
		// a poll that lands near a trigger without hitting its exact
		// minute gets the flat default duration.
		duration := set.DurationFor(clock, s.sampler)
		s.log.Info("Trigger due, spawning session",
			zap.String("trigger", trigger),
			zap.Duration("duration", duration),
		)
		s.spawn(duration)
		return 0
	}
	return 0
}

func (s *Scheduler) regenerate() error {
	set, err := NewTriggerSet(s.profile, s.sampler)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.triggers = set
	s.mu.Unlock()
	return nil
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
