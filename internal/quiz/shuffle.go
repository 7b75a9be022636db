package quiz

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// Shuffler is a source of permutations. The zero value and a nil *Shuffler
// use the global generator; NewShuffler gives a reproducible sequence.
type Shuffler struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewShuffler(seed uint64) *Shuffler {
	return &Shuffler{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Shuffler) intN(n int) int {
	if s == nil || s.r == nil {
		return rand.IntN(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// Shuffle returns a uniformly permuted copy of items. The input is not modified.
func Shuffle[T any](items []T) []T {
	return shuffleWith(nil, items)
}

func shuffleWith[T any](s *Shuffler, items []T) []T {
	out := slices.Clone(items)
	for i := len(out) - 1; i > 0; i-- {
		j := s.intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
