package backoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	var b Backoff
	want := []int{2, 4, 8, 16, 16, 16}
	for i, w := range want {
		b.Relax()
		assert.Equal(t, w, b.n, "after relax %d", i+1)
	}

	b.Reset()
	assert.Zero(t, b.n)
}
