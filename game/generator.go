package game

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cartela-live/backend/models"
)

// column bands: B 1-15, I 16-30, N 31-45 (four numbers, center free),
// G 46-60, O 61-75.
var columnSpecs = []struct {
	Letter string
	Min    int
	Max    int
	Count  int
}{
	{"B", 1, 15, 5},
	{"I", 16, 30, 5},
	{"N", 31, 45, 4},
	{"G", 46, 60, 5},
	{"O", 61, 75, 5},
}

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// GenerateNumbers produces a fresh cartela layout: every column sampled
// without replacement from its band, sorted ascending for display.
func GenerateNumbers() models.CardNumbers {
	cols := make([][]int, len(columnSpecs))
	for i, spec := range columnSpecs {
		cols[i] = sampleBand(spec.Min, spec.Max, spec.Count)
	}
	return models.CardNumbers{B: cols[0], I: cols[1], N: cols[2], G: cols[3], O: cols[4]}
}

func sampleBand(min, max, count int) []int {
	pool := make([]int, 0, max-min+1)
	for n := min; n <= max; n++ {
		pool = append(pool, n)
	}

	rngMu.Lock()
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	rngMu.Unlock()

	picked := append([]int(nil), pool[:count]...)
	sort.Ints(picked)
	return picked
}

// ValidateNumbers checks a caller-supplied layout against the same rules
// the generator guarantees: exact count per column, values inside the
// band, no duplicates within a column.
func ValidateNumbers(numbers models.CardNumbers) error {
	cols := [][]int{numbers.B, numbers.I, numbers.N, numbers.G, numbers.O}
	for i, spec := range columnSpecs {
		col := cols[i]
		if len(col) != spec.Count {
			return &InvalidCardLayoutError{
				Column: spec.Letter,
				Reason: fmt.Sprintf("expected %d numbers, got %d", spec.Count, len(col)),
			}
		}
		seen := make(map[int]bool, len(col))
		for _, n := range col {
			if n < spec.Min || n > spec.Max {
				return &InvalidCardLayoutError{
					Column: spec.Letter,
					Reason: fmt.Sprintf("%d is outside the %d-%d band", n, spec.Min, spec.Max),
				}
			}
			if seen[n] {
				return &InvalidCardLayoutError{
					Column: spec.Letter,
					Reason: fmt.Sprintf("duplicate number %d", n),
				}
			}
			seen[n] = true
		}
	}
	return nil
}
