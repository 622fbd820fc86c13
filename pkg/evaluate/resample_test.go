package evaluate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifiedResampleKeepsClassSizes(t *testing.T) {
	ham := []int{0, 2, 3, 5, 6, 8, 9}
	spam := []int{1, 4, 7}
	member := map[int]int{}
	for _, i := range ham {
		member[i] = 0
	}
	for _, i := range spam {
		member[i] = 1
	}

	rng := rand.New(rand.NewSource(11))
	for n := 0; n < 50; n++ {
		idx := stratifiedResample([][]int{ham, spam}, rng)
		require.Len(t, idx, len(ham)+len(spam))

		counts := [2]int{}
		for pos, i := range idx {
			class, ok := member[i]
			require.True(t, ok, "index %d comes from the input", i)
			counts[class]++
			if pos < len(ham) {
				assert.Equal(t, 0, class, "ham draws come first and stay in ham")
			} else {
				assert.Equal(t, 1, class, "spam draws stay in spam")
			}
		}
		assert.Equal(t, [2]int{len(ham), len(spam)}, counts)
	}
}

func TestStratifiedResampleEmptyClass(t *testing.T) {
	idx := stratifiedResample([][]int{{0, 1, 2}, nil}, rand.New(rand.NewSource(1)))
	assert.Len(t, idx, 3)
	for _, i := range idx {
		assert.Contains(t, []int{0, 1, 2}, i)
	}
}
