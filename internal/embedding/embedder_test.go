package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	v := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[1], 1e-9)

	zero := Normalize([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, zero)
	assert.True(t, IsZero(zero))
	assert.False(t, IsZero(v))
}

func TestFromFloat32(t *testing.T) {
	v := FromFloat32([]float32{0, 2})
	assert.Equal(t, []float64{0, 1}, v)
}

func TestBatches(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, Batches(in, 2))
	assert.Equal(t, [][]string{in}, Batches(in, 0))
	assert.Empty(t, Batches(nil, 3))
}
