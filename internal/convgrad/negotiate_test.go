package convgrad

import (
	"testing"

	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiate_ZeroCopy(t *testing.T) {
	eng := testEngine(t)
	pool := NewScratchPool(4)
	desc := engine.NewMemoryDesc([]int{1, 1, 4, 4}, tensor.Float32, engine.FormatNCHW)
	data := filled[float32](16, 3)

	op, err := Negotiate(eng, desc, desc, data, pool)
	require.NoError(t, err)
	defer op.Release()

	assert.False(t, op.Reordered())
	assert.True(t, op.Desc().Equal(desc))
	assert.Same(t, &data[0], &op.Data()[0])
	assert.Equal(t, ScratchStats{}, pool.Stats())
}

func TestNegotiate_Reorder(t *testing.T) {
	eng := testEngine(t)
	pool := NewScratchPool(4)
	dims := []int{2, 3, 1, 1} // O=2, I=3
	hwio := engine.NewMemoryDesc(dims, tensor.Float64, engine.FormatHWIO)
	oihw := engine.NewMemoryDesc(dims, tensor.Float64, engine.FormatOIHW)
	// HWIO with 1x1 kernels is [I][O].
	data := []float64{
		1, 2,
		3, 4,
		5, 6,
	}

	op, err := Negotiate(eng, hwio, oihw, data, pool)
	require.NoError(t, err)
	assert.True(t, op.Reordered())
	assert.True(t, op.Desc().Equal(oihw))
	assert.Equal(t, []float64{1, 3, 5, 2, 4, 6}, op.Data())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, data)
	assert.Equal(t, uint64(1), pool.Stats().Misses)

	op.Release()
	op.Release()
	assert.Nil(t, op.Data())
	assert.Equal(t, 1, pool.Stats().Pooled)

	// The released buffer is reused.
	op, err = Negotiate(eng, hwio, oihw, data, pool)
	require.NoError(t, err)
	defer op.Release()
	assert.Equal(t, uint64(1), pool.Stats().Hits)
	assert.Equal(t, []float64{1, 3, 5, 2, 4, 6}, op.Data())
}

func TestNegotiate_ReorderFailureReleasesScratch(t *testing.T) {
	eng := testEngine(t)
	pool := NewScratchPool(4)
	actual := engine.NewMemoryDesc([]int{1, 2, 2, 2}, tensor.Float32, engine.FormatNHWC)
	preferred := engine.NewMemoryDesc([]int{1, 2, 2, 2}, tensor.Float32, engine.FormatNCHW)

	_, err := Negotiate(eng, actual, preferred, make([]float32, 3), pool)
	require.Error(t, err)
	assert.Equal(t, engine.StatusInvalidArguments, engine.StatusOf(err))

	stats := pool.Stats()
	assert.Equal(t, stats.Acquired, stats.Released)
}

func TestNegotiate_NilPool(t *testing.T) {
	eng := testEngine(t)
	dims := []int{1, 2, 1, 2}
	nhwc := engine.NewMemoryDesc(dims, tensor.Float32, engine.FormatNHWC)
	nchw := engine.NewMemoryDesc(dims, tensor.Float32, engine.FormatNCHW)

	op, err := Negotiate(eng, nhwc, nchw, []float32{1, 2, 3, 4}, nil)
	require.NoError(t, err)
	defer op.Release()
	assert.Equal(t, []float32{1, 3, 2, 4}, op.Data())
}
