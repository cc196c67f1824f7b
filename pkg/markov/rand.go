package markov

import "math/rand/v2"

// Source is the random source a walk draws from. IntN returns a uniformly
// distributed integer in [0, n) and may panic if n <= 0. *rand.Rand from
// math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// NewSource returns a deterministic PCG source for the given seed.
func NewSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource returns a Source backed by the process-wide math/rand/v2
// generator. It is safe for concurrent use but not reproducible.
func DefaultSource() Source {
	return globalSource{}
}

// pick chooses one element of a non-empty slice uniformly.
func pick[T any](src Source, items []T) T {
	if len(items) == 1 {
		return items[0]
	}
	return items[src.IntN(len(items))]
}
