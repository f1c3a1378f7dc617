// File: internal/scheduler/triggers.go
package scheduler

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/droidpilot-cli/internal/sampling"
)

// Per-trigger session duration ranges, in minutes.
const (
	minMorningMinutes   = 45
	maxMorningMinutes   = 60
	minAfternoonMinutes = 160
	maxAfternoonMinutes = 180
	minBedtimeMinutes   = 75
	maxBedtimeMinutes   = 90

	// Used when the clock does not land exactly on a trigger minute, so a
	// session always gets a sane length.
	defaultSessionMinutes = 60
)

// TriggerSet holds one day's drawn trigger times.
type TriggerSet struct {
	Morning   string
	Afternoon string
	Bedtime   string
}

// NewTriggerSet draws a fresh set of trigger times from the profile's
// windows.
func NewTriggerSet(p Profile, s *sampling.Sampler) (TriggerSet, error) {
	windows, ok := profileWindows[p]
	if !ok {
		return TriggerSet{}, fmt.Errorf("no windows defined for profile %q", p)
	}

	var times [3]string
	for i, w := range windows {
		t, err := GenerateRandomTime(s, w.Start, w.End)
		if err != nil {
			return TriggerSet{}, err
		}
		times[i] = t
	}
	return TriggerSet{Morning: times[0], Afternoon: times[1], Bedtime: times[2]}, nil
}

// Times returns the trigger times in slot order.
func (t TriggerSet) Times() []string {
	return []string{t.Morning, t.Afternoon, t.Bedtime}
}

// DurationFor samples a session duration for the given clock time by exact
// match against the trigger set; anything that misses a trigger's precise
// minute falls back to the flat default. A clock can land on two slots at
// once (two triggers with the same HH:MM); the earlier slot wins.
func (t TriggerSet) DurationFor(clock string, s *sampling.Sampler) time.Duration {
	switch clock {
	case t.Morning:
		return minutesBetween(s, minMorningMinutes, maxMorningMinutes)
	case t.Afternoon:
		return minutesBetween(s, minAfternoonMinutes, maxAfternoonMinutes)
	case t.Bedtime:
		return minutesBetween(s, minBedtimeMinutes, maxBedtimeMinutes)
	default:
		return defaultSessionMinutes * time.Minute
	}
}

func minutesBetween(s *sampling.Sampler, min, max int) time.Duration {
	return time.Duration(s.IntBetween(min, max)) * time.Minute
}
