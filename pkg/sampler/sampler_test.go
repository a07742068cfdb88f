package sampler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndicesAreDistinctAndInRange(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, tc := range []struct{ length, count, want int }{
		{10, 4, 4},
		{10, 10, 10},
		{3, 100, 3},
		{1, 1, 1},
		{0, 5, 0},
		{5, 0, 0},
	} {
		got := Indices(r, tc.length, tc.count)
		assert.Len(t, got, tc.want, "length=%d count=%d", tc.length, tc.count)
		seen := make(map[int]bool)
		for _, i := range got {
			assert.GreaterOrEqual(t, i, 0)
			assert.Less(t, i, tc.length)
			assert.False(t, seen[i], "index %d repeated", i)
			seen[i] = true
		}
	}
}

func TestIndicesVary(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	first := Indices(r, 1000, 10)
	second := Indices(r, 1000, 10)
	assert.NotEqual(t, first, second)
}
