package sampler

import "math/rand"

// Indices returns min(count, length) distinct indices in [0, length),
// in random order.
// It runs a partial Fisher-Yates shuffle over an index slice, so the cost is
// bounded by length even when count approaches length.
func Indices(r *rand.Rand, length, count int) []int {
	if length <= 0 || count <= 0 {
		return []int{}
	}
	if count > length {
		count = length
	}
	idx := make([]int, length)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < count; i++ {
		j := i + r.Intn(length-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:count]
}
