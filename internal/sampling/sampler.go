// File: internal/sampling/sampler.go
package sampling

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// maxDraws bounds the rejection loop; a draw outside the interval is retried
// up to this many times before the clamped center is used instead.
const maxDraws = 100

// Sampler produces the bounded random values used by gesture synthesis and
// dwell timing. The heavy-tailed Cauchy draws occasionally land far from the
// center, which reads like human imprecision, while the bounds guarantee the
// result stays inside the requested interval.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Sampler. Passing a nil rng seeds one from the wall clock;
// tests pass a seeded source for determinism.
func New(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Sampler{rng: rng}
}

// Cauchy draws an integer from a Cauchy distribution centered at center with
// the given scale, rejecting draws outside [min, max]. If no draw lands in
// range after maxDraws attempts, the rounded center clamped to the interval
// is returned, so the result is always within bounds.
func (s *Sampler) Cauchy(center, scale float64, min, max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < maxDraws; i++ {
		u := s.rng.Float64()
		val := int(center + scale*math.Tan(math.Pi*(u-0.5)))
		if val >= min && val <= max {
			return val
		}
	}
	return clamp(int(math.Round(center)), min, max)
}

// IntBetween draws uniformly from the inclusive interval [min, max].
func (s *Sampler) IntBetween(min, max int) int {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.Intn(max-min+1)
}

// DurationBetween draws a duration uniformly from [min, max].
func (s *Sampler) DurationBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + time.Duration(s.rng.Int63n(int64(max-min)+1))
}

// Float64 exposes a plain uniform draw in [0,1).
func (s *Sampler) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
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
