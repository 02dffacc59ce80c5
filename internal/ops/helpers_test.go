package ops

import (
	"math/rand"
	"testing"

	"github.com/born-ml/convgrad/internal/convgrad"
	"github.com/born-ml/convgrad/internal/engine"
	"github.com/born-ml/convgrad/internal/parallel"
	"github.com/born-ml/convgrad/internal/tensor"
	"github.com/stretchr/testify/require"
)

func testRegistry[T tensor.Float](t *testing.T) *convgrad.Registry[T] {
	t.Helper()
	eng := engine.New(engine.Options{BlockSize: 8, Parallel: parallel.Sequential()})
	return convgrad.NewRegistry[T](eng)
}

func sizesInput(t *testing.T, dims ...int) Input {
	t.Helper()
	v := make([]int32, len(dims))
	for i, d := range dims {
		v[i] = int32(d)
	}
	raw, err := tensor.FromSlice(v, tensor.Shape{len(v)})
	require.NoError(t, err)
	return Canonical(raw)
}

func canonicalInput[T tensor.Float](t *testing.T, data []T, shape ...int) Input {
	t.Helper()
	raw, err := tensor.FromSlice(data, tensor.Shape(shape))
	require.NoError(t, err)
	return Canonical(raw)
}

func randomValues[T float32 | float64](r *rand.Rand, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = T(r.Intn(7) - 3)
	}
	return out
}

// compute runs op and converts the result to its canonical layout.
func compute[T tensor.Float](t *testing.T, op *Conv2DBackpropInput[T], sizes, filter, dy Input) []T {
	t.Helper()
	out, err := op.Compute(sizes, filter, dy)
	require.NoError(t, err)
	canonical, err := ToCanonical[T](op.registry.Engine(), out)
	require.NoError(t, err)
	return tensor.Data[T](canonical)
}

// nhwcGeometry describes a convolution over canonical NHWC/HWIO tensors.
type nhwcGeometry struct {
	n, ih, iw, ic int
	kh, kw, oc    int
	oh, ow        int
	sh, sw        int
	dh, dw        int // one-based
	pt, pl        int
}

// referenceNHWC scatters every output gradient back over its receptive field.
func referenceNHWC(g nhwcGeometry, filter, dy []float64) []float64 {
	out := make([]float64, g.n*g.ih*g.iw*g.ic)
	for n := 0; n < g.n; n++ {
		for y := 0; y < g.oh; y++ {
			for x := 0; x < g.ow; x++ {
				for o := 0; o < g.oc; o++ {
					grad := dy[((n*g.oh+y)*g.ow+x)*g.oc+o]
					for kh := 0; kh < g.kh; kh++ {
						for kw := 0; kw < g.kw; kw++ {
							h := y*g.sh - g.pt + kh*g.dh
							w := x*g.sw - g.pl + kw*g.dw
							if h < 0 || h >= g.ih || w < 0 || w >= g.iw {
								continue
							}
							for c := 0; c < g.ic; c++ {
								out[((n*g.ih+h)*g.iw+w)*g.ic+c] += grad * filter[((kh*g.kw+kw)*g.ic+c)*g.oc+o]
							}
						}
					}
				}
			}
		}
	}
	return out
}

// nhwcToNCHW transposes a canonical NHWC buffer.
func nhwcToNCHW[T any](in []T, n, h, w, c int) []T {
	out := make([]T, len(in))
	for b := 0; b < n; b++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for ch := 0; ch < c; ch++ {
					out[((b*c+ch)*h+y)*w+x] = in[((b*h+y)*w+x)*c+ch]
				}
			}
		}
	}
	return out
}
