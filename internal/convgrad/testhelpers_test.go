package convgrad

import (
	"testing"

	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/parallel"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(engine.Options{BlockSize: 8, Parallel: parallel.Sequential()})
}

// sameParams is a 3x3 SAME convolution over a 1x1x4x4 input.
func sameParams() Params {
	return NewParams(
		[]int{1, 1, 4, 4}, []int{1, 1, 3, 3}, []int{1, 1, 4, 4},
		[]int{1, 1}, []int{0, 0}, []int{1, 1}, []int{1, 1}, engine.PaddingZero)
}

// channelParams is a VALID 3x3 convolution with c input and output channels.
func channelParams(c int) Params {
	return NewParams(
		[]int{1, c, 5, 5}, []int{c, c, 3, 3}, []int{1, c, 3, 3},
		[]int{1, 1}, []int{0, 0}, []int{0, 0}, []int{0, 0}, engine.PaddingZero)
}

func filled[T float32 | float64](n int, v T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}
