// Package randutil wraps math/rand/v2 with the sampling primitives the
// simulator needs. A Source is seedable so cycle output is reproducible
// in tests.
package randutil

import "math/rand/v2"

// Source is a seedable random source. Not safe for concurrent use; each
// background task owns its own.
type Source struct {
	rng *rand.Rand
}

// New returns a Source seeded deterministically from seed.
func New(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom returns a Source with a non-deterministic seed.
func NewRandom() *Source {
	return &Source{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// Uniform returns a value uniformly distributed in [lo, hi).
// Returns lo when hi <= lo.
func (s *Source) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Float64()*(hi-lo)
}

// Gaussian returns a normally distributed value with the given mean and
// standard deviation.
func (s *Source) Gaussian(mean, std float64) float64 {
	if std <= 0 {
		return mean
	}
	return mean + s.rng.NormFloat64()*std
}

// truncNormalMaxRejects bounds rejection sampling before clamping.
const truncNormalMaxRejects = 64

// TruncatedNormal returns a normally distributed value restricted to
// [lo, hi] via rejection sampling. After truncNormalMaxRejects misses the
// draw is clamped into range, so the call always terminates.
func (s *Source) TruncatedNormal(mean, std, lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	if std <= 0 {
		return clamp(mean, lo, hi)
	}
	for i := 0; i < truncNormalMaxRejects; i++ {
		v := s.Gaussian(mean, std)
		if v >= lo && v <= hi {
			return v
		}
	}
	return clamp(s.Gaussian(mean, std), lo, hi)
}

// SampleWithoutReplacement returns k distinct indices drawn uniformly from
// [0, n). Returns all n indices (shuffled) when k >= n, nil when k <= 0.
func (s *Source) SampleWithoutReplacement(n, k int) []int {
	if k <= 0 || n <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// Partial Fisher-Yates: only the first k positions need settling.
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 { return clamp(v, lo, hi) }
