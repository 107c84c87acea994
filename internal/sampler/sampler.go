// Package sampler provides the shared bounded pseudo-random source used
// when a domain needs "one random" candidate. Draws are not reproducible
// across runs and are never relied on for anything but shape coverage.
package sampler

import (
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// Sampler wraps one process-wide rand.Rand behind a mutex so concurrent
// domain generation draws from a single source.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a sampler seeded from the current time.
func New() *Sampler {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates a sampler with an explicit seed. Used by tests that
// want a stable draw sequence inside a single run; cross-run
// reproducibility is still not a guarantee anyone may rely on.
func NewSeeded(seed int64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewSource(seed))}
}

// Int returns a random int64 spanning the full signed range.
func (s *Sampler) Int() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.rnd.Int63()
	if s.rnd.Intn(2) == 0 {
		return -v
	}
	return v
}

// IntN returns a random value in [0, n).
func (s *Sampler) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// Float returns a random float64 scaled into a printable range.
func (s *Sampler) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.rnd.Float64() - 0.5) * 2e6
}

// StringLiteral returns a quoted Go string literal of random printable
// content with length between minLen and maxLen runes. Quotes,
// backslashes and any non-printable characters are escaped by the
// strconv quoting rules.
func (s *Sampler) StringLiteral(minLen, maxLen int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := minLen + s.rnd.Intn(maxLen-minLen+1)
	runes := make([]rune, n)
	for i := range runes {
		// Printable ASCII plus the escape-worthy pair, so the quoting
		// path is actually exercised.
		runes[i] = rune(32 + s.rnd.Intn(95))
	}
	return strconv.Quote(string(runes))
}

// Rune returns a random printable ASCII rune.
func (s *Sampler) Rune() rune {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rune(33 + s.rnd.Intn(94))
}

// Pick returns a random index into a collection of length n.
// n must be positive.
func (s *Sampler) Pick(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// Sample returns up to k distinct indices into a collection of length n,
// in ascending order so first-seen ordering of the underlying collection
// is preserved.
func (s *Sampler) Sample(n, k int) []int {
	if n <= 0 || k <= 0 {
		return nil
	}
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	s.mu.Lock()
	perm := s.rnd.Perm(n)[:k]
	s.mu.Unlock()

	picked := make(map[int]bool, k)
	for _, i := range perm {
		picked[i] = true
	}
	out := make([]int, 0, k)
	for i := 0; i < n; i++ {
		if picked[i] {
			out = append(out, i)
		}
	}
	return out
}
