package sampler

import (
	"fmt"
	"math"

	apperrors "raffle/pkg/errors"
)

// Draw selects min(k, len(ids)) distinct ids. At every step a remaining id is
// chosen with probability proportional to its weight among the remaining
// ids. The same inputs with the same Seeded entropy give the same ordered
// result.
func Draw(ids []string, weights []float64, k int, entropy Entropy) ([]string, error) {
	if len(ids) != len(weights) {
		return nil, apperrors.ErrConfiguration.
			WithMessage("ids and weights differ in length (%d != %d)", len(ids), len(weights))
	}

	idx, err := DrawIndices(weights, k, entropy)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = ids[j]
	}
	return out, nil
}

// DrawIndices is Draw over positions instead of ids.
func DrawIndices(weights []float64, k int, entropy Entropy) ([]int, error) {
	maxW := 0.0
	positive := 0
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, apperrors.ErrInvalidWeight.
				WithMessage("weight at position %d is %v; weights must be finite and non-negative", i, w).
				WithDetail("position", i)
		}
		if w > 0 {
			positive++
			maxW = math.Max(maxW, w)
		}
	}

	n := len(weights)
	if k <= 0 || n == 0 {
		return []int{}, nil
	}
	if positive == 0 {
		return nil, apperrors.ErrNoPositiveWeight.
			WithMessage("all %d candidate weights are zero", n)
	}
	if k > n {
		k = n
	}

	// Scaling by the largest weight keeps the running total finite.
	scaled := make([]float64, n)
	positive = 0
	for i, w := range weights {
		scaled[i] = w / maxW
		if scaled[i] > 0 {
			positive++
		}
	}

	r := entropy.rand()
	tree := newFenwick(scaled)
	taken := make([]bool, n)
	out := make([]int, 0, k)

	for len(out) < k && positive > 0 {
		total := tree.total()
		i := tree.find(r.Float64() * total)
		if i >= n || taken[i] || scaled[i] == 0 {
			i = linearPick(scaled, taken, r.Float64())
		}

		tree.add(i, -scaled[i])
		taken[i] = true
		positive--
		out = append(out, i)
	}

	if len(out) < k {
		zeros := make([]int, 0, n-len(out))
		for i := range scaled {
			if !taken[i] {
				zeros = append(zeros, i)
			}
		}
		for len(out) < k {
			j := r.IntN(len(zeros))
			out = append(out, zeros[j])
			zeros[j] = zeros[len(zeros)-1]
			zeros = zeros[:len(zeros)-1]
		}
	}

	return out, nil
}

// linearPick recomputes the remaining positive mass exactly and walks it.
// It only runs when accumulated rounding in the tree lands on an item that
// is no longer available.
func linearPick(scaled []float64, taken []bool, u float64) int {
	var total float64
	last := -1
	for i, w := range scaled {
		if !taken[i] && w > 0 {
			total += w
			last = i
		}
	}
	target := u * total
	for i, w := range scaled {
		if taken[i] || w == 0 {
			continue
		}
		if target < w {
			return i
		}
		target -= w
	}
	if last < 0 {
		panic(fmt.Sprintf("sampler: no positive weight left among %d items", len(scaled)))
	}
	return last
}
