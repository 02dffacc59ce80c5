package convgrad

import (
	"sync"
	"testing"

	"github.com/born-ml/convgrad/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitive_PreferredLayouts(t *testing.T) {
	eng := testEngine(t)

	narrow, err := NewPrimitive[float32](eng, sameParams())
	require.NoError(t, err)
	assert.Equal(t, engine.FormatOIHW, narrow.FilterFormat())
	assert.Equal(t, engine.FormatNCHW, narrow.DiffDstFormat())
	assert.Equal(t, engine.FormatNCHW, narrow.DiffSrcDesc().Format)

	wide, err := NewPrimitive[float32](eng, channelParams(16))
	require.NoError(t, err)
	assert.Equal(t, engine.FormatOIhwXiXo, wide.FilterFormat())
	assert.Equal(t, engine.FormatNChwXc, wide.DiffDstFormat())
	assert.Equal(t, 8, wide.FilterDesc().Block)
	assert.False(t, wide.Bound())
	assert.True(t, wide.Params().Equal(channelParams(16)))
}

func TestPrimitive_Execute(t *testing.T) {
	prim, err := NewPrimitive[float32](testEngine(t), sameParams())
	require.NoError(t, err)

	diffSrc := make([]float32, 16)
	require.NoError(t, prim.Execute(diffSrc, filled[float32](9, 1), filled[float32](16, 1)))
	assert.Equal(t, []float32{
		4, 6, 6, 4,
		6, 9, 9, 6,
		6, 9, 9, 6,
		4, 6, 6, 4,
	}, diffSrc)
	assert.False(t, prim.Bound())

	// Plans are reusable; a second call overwrites the output.
	require.NoError(t, prim.Execute(diffSrc, filled[float32](9, 2), filled[float32](16, 1)))
	assert.Equal(t, float32(18), diffSrc[5])
}

func TestPrimitive_ExecuteUnbindsOnError(t *testing.T) {
	prim, err := NewPrimitive[float64](testEngine(t), sameParams())
	require.NoError(t, err)

	tests := []struct {
		name                     string
		diffSrc, filter, diffDst []float64
	}{
		{"short_output", make([]float64, 15), filled[float64](9, 1), filled[float64](16, 1)},
		{"short_filter", make([]float64, 16), filled[float64](8, 1), filled[float64](16, 1)},
		{"empty_gradient", make([]float64, 16), filled[float64](9, 1), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := prim.Execute(tt.diffSrc, tt.filter, tt.diffDst)
			require.Error(t, err)
			assert.Equal(t, engine.StatusInvalidArguments, engine.StatusOf(err))
			assert.False(t, prim.Bound())
		})
	}

	// The plan still works after failures.
	out := make([]float64, 16)
	require.NoError(t, prim.Execute(out, filled[float64](9, 1), filled[float64](16, 1)))
	assert.Equal(t, float64(9), out[5])
}

func TestPrimitive_ConcurrentExecute(t *testing.T) {
	prim, err := NewPrimitive[float32](testEngine(t), sameParams())
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	outs := make([][]float32, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = make([]float32, 16)
			errs[i] = prim.Execute(outs[i], filled[float32](9, float32(i)), filled[float32](16, 1))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, float32(9*i), outs[i][5], "call %d", i)
		assert.Equal(t, float32(4*i), outs[i][0], "call %d", i)
	}
	assert.False(t, prim.Bound())
}

func TestNewPrimitive_Errors(t *testing.T) {
	_, err := NewPrimitive[float32](nil, sameParams())
	require.Error(t, err)

	p := sameParams()
	p.Strides = []int{0, 1}
	_, err = NewPrimitive[float32](testEngine(t), p)
	require.Error(t, err)
	assert.Equal(t, engine.StatusInvalidArguments, engine.StatusOf(err))
}
