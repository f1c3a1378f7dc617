// File: internal/scheduler/times.go
package scheduler

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/droidpilot-cli/internal/sampling"
)

const clockLayout = "15:04"

// GenerateRandomTime draws a uniformly random minute within the inclusive
// window [start, end]. When end is earlier than start the window wraps past
// midnight, so "23:00".."00:30" can yield "00:12".
func GenerateRandomTime(s *sampling.Sampler, start, end string) (string, error) {
	st, err := time.Parse(clockLayout, start)
	if err != nil {
		return "", fmt.Errorf("invalid window start %q: %w", start, err)
	}
	en, err := time.Parse(clockLayout, end)
	if err != nil {
		return "", fmt.Errorf("invalid window end %q: %w", end, err)
	}

	if en.Before(st) {
		en = en.Add(24 * time.Hour)
	}

	span := int(en.Sub(st).Minutes())
	offset := s.IntBetween(0, span)
	return st.Add(time.Duration(offset) * time.Minute).Format(clockLayout), nil
}

// WithinTolerance reports whether two clock times are within tol of each
// other, taking the short way around midnight: 23:58 and 00:02 are four
// minutes apart, not 23 hours 56 minutes.
func WithinTolerance(a, b string, tol time.Duration) (bool, error) {
	ta, err := time.Parse(clockLayout, a)
	if err != nil {
		return false, fmt.Errorf("invalid clock time %q: %w", a, err)
	}
	tb, err := time.Parse(clockLayout, b)
	if err != nil {
		return false, fmt.Errorf("invalid clock time %q: %w", b, err)
	}

	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	if diff > 12*time.Hour {
		diff = 24*time.Hour - diff
	}
	return diff <= tol, nil
}
