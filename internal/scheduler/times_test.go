package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/droidpilot-cli/internal/sampling"
)

func testSampler(seed int64) *sampling.Sampler {
	return sampling.New(rand.New(rand.NewSource(seed)))
}

func TestGenerateRandomTime_WithinWindow(t *testing.T) {
	s := testSampler(1)

	for i := 0; i < 500; i++ {
		got, err := GenerateRandomTime(s, "08:00", "09:00")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, "08:00")
		assert.LessOrEqual(t, got, "09:00")
	}
}

func TestGenerateRandomTime_EndpointsReachable(t *testing.T) {
	s := testSampler(2)
	seen := map[string]bool{}

	for i := 0; i < 2000; i++ {
		got, err := GenerateRandomTime(s, "10:00", "10:01")
		require.NoError(t, err)
		seen[got] = true
	}
	assert.True(t, seen["10:00"], "window start should be drawable")
	assert.True(t, seen["10:01"], "window end should be drawable")
	assert.Len(t, seen, 2)
}

func TestGenerateRandomTime_WrapsPastMidnight(t *testing.T) {
	s := testSampler(3)
	sawLate, sawEarly := false, false

	for i := 0; i < 2000; i++ {
		got, err := GenerateRandomTime(s, "23:00", "00:30")
		require.NoError(t, err)

		inLate := got >= "23:00" && got <= "23:59"
		inEarly := got >= "00:00" && got <= "00:30"
		require.True(t, inLate || inEarly, "draw %q escaped the wrapped window", got)

		sawLate = sawLate || inLate
		sawEarly = sawEarly || inEarly
	}
	assert.True(t, sawLate, "expected draws before midnight")
	assert.True(t, sawEarly, "expected draws after midnight")
}

func TestGenerateRandomTime_InvalidInput(t *testing.T) {
	s := testSampler(4)

	_, err := GenerateRandomTime(s, "8 o'clock", "09:00")
	require.Error(t, err)

	_, err = GenerateRandomTime(s, "08:00", "25:61")
	require.Error(t, err)
}

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		tol  time.Duration
		want bool
	}{
		{"identical times", "08:15", "08:15", 0, true},
		{"inside tolerance", "08:12", "08:15", 5 * time.Minute, true},
		{"at tolerance edge", "08:10", "08:15", 5 * time.Minute, true},
		{"outside tolerance", "08:09", "08:15", 5 * time.Minute, false},
		{"wraps around midnight", "23:58", "00:02", 5 * time.Minute, true},
		{"wraps the other way", "00:02", "23:58", 5 * time.Minute, true},
		{"far apart across midnight", "23:00", "01:30", 60 * time.Minute, false},
		{"half a day apart", "06:00", "18:00", 11 * time.Hour, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := WithinTolerance(tc.a, tc.b, tc.tol)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWithinTolerance_InvalidInput(t *testing.T) {
	_, err := WithinTolerance("noon", "12:00", time.Minute)
	require.Error(t, err)

	_, err = WithinTolerance("12:00", "noon", time.Minute)
	require.Error(t, err)
}
