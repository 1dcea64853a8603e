package sampler

// fenwick is a binary indexed tree over float64 weights supporting point
// updates, prefix sums and weighted search in O(log n).
type fenwick struct {
	tree []float64
	mask int
}

func newFenwick(weights []float64) *fenwick {
	n := len(weights)
	f := &fenwick{tree: make([]float64, n+1)}
	for i, w := range weights {
		f.tree[i+1] += w
		if j := (i + 1) + ((i + 1) & -(i + 1)); j <= n {
			f.tree[j] += f.tree[i+1]
		}
	}
	f.mask = 1
	for f.mask*2 <= n {
		f.mask *= 2
	}
	return f
}

func (f *fenwick) add(i int, delta float64) {
	for i++; i < len(f.tree); i += i & -i {
		f.tree[i] += delta
	}
}

func (f *fenwick) prefix(i int) float64 {
	var sum float64
	for ; i > 0; i -= i & -i {
		sum += f.tree[i]
	}
	return sum
}

func (f *fenwick) total() float64 {
	return f.prefix(len(f.tree) - 1)
}

// find returns the smallest index whose inclusive prefix sum exceeds target.
// The result equals len(weights) when rounding pushes target past the total.
func (f *fenwick) find(target float64) int {
	pos := 0
	for step := f.mask; step > 0; step >>= 1 {
		next := pos + step
		if next < len(f.tree) && f.tree[next] <= target {
			pos = next
			target -= f.tree[next]
		}
	}
	return pos
}
