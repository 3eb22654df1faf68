// Package selection implements ticket-weighted random winner selection.
package selection

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"
)

var ErrNonPositiveTickets = errors.New("non_positive_tickets")

// Picker draws winners from weighted pools using a uniform random source.
// Safe for concurrent use.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPicker returns a Picker with a fixed seed. Tests use this for
// deterministic draws.
func NewPicker(seed int64) *Picker {
	return &Picker{rng: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededPicker returns a Picker seeded from the current time.
func NewTimeSeededPicker() *Picker {
	return NewPicker(time.Now().UnixNano())
}

// PickIndex selects one index with probability exactly weights[i]/sum(weights).
// It builds a cumulative sum over the weights in their given order, draws a
// uniform value in [0, total), and returns the first index whose cumulative
// weight is >= the draw. Returns -1 when the pool is empty. A non-positive
// weight is a data-integrity violation, not a pool to sample from.
func (p *Picker) PickIndex(weights []int64) (int, error) {
	if len(weights) == 0 {
		return -1, nil
	}

	cumulative := make([]int64, len(weights))
	var total int64
	for i, w := range weights {
		if w <= 0 {
			return -1, ErrNonPositiveTickets
		}
		total += w
		cumulative[i] = total
	}

	p.mu.Lock()
	draw := p.rng.Float64() * float64(total)
	p.mu.Unlock()

	idx := sort.Search(len(cumulative), func(i int) bool {
		return float64(cumulative[i]) >= draw
	})
	if idx >= len(cumulative) {
		// Float rounding can push the draw past the last cumulative value.
		idx = len(cumulative) - 1
	}
	return idx, nil
}

// Total sums a weight pool.
func Total(weights []int64) int64 {
	var total int64
	for _, w := range weights {
		total += w
	}
	return total
}
