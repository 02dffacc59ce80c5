package engine

import (
	"math/rand"
	"testing"

	"github.com/born-ml/convgrad/internal/parallel"
	"github.com/born-ml/convgrad/internal/tensor"
	"github.com/stretchr/testify/require"
)

// convCase is one backward-data geometry in engine order.
type convCase struct {
	name           string
	n, ic, ih, iw  int
	oc, kh, kw     int
	sh, sw         int
	dh, dw         int // zero-based
	pt, pl, pb, pr int
}

func (c convCase) outSize() (int, int) {
	oh := (c.ih+c.pt+c.pb-((c.kh-1)*(c.dh+1)+1))/c.sh + 1
	ow := (c.iw+c.pl+c.pr-((c.kw-1)*(c.dw+1)+1))/c.sw + 1
	return oh, ow
}

func (c convCase) dims() (src, wei, dst []int) {
	oh, ow := c.outSize()
	return []int{c.n, c.ic, c.ih, c.iw}, []int{c.oc, c.ic, c.kh, c.kw}, []int{c.n, c.oc, oh, ow}
}

func testEngine(block int) *Engine {
	return New(Options{BlockSize: block, Parallel: parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}})
}

// compile builds the backward-data primitive descriptor for c with FormatAny operands.
func compile(t *testing.T, eng *Engine, c convCase, dt tensor.DataType) *ConvBackwardDataPrimitiveDesc {
	t.Helper()
	srcDims, weiDims, dstDims := c.dims()
	src := NewMemoryDesc(srcDims, dt, FormatAny)
	wei := NewMemoryDesc(weiDims, dt, FormatAny)
	dst := NewMemoryDesc(dstDims, dt, FormatAny)
	strides, dil := []int{c.sh, c.sw}, []int{c.dh, c.dw}
	padL, padR := []int{c.pt, c.pl}, []int{c.pb, c.pr}

	bwd, err := NewConvBackwardDataDesc(AlgorithmDirect, src, wei, dst, strides, dil, padL, padR, PaddingZero)
	require.NoError(t, err)
	fwd, err := NewConvForwardDesc(PropForward, AlgorithmDirect, src, wei, dst, strides, dil, padL, padR, PaddingZero)
	require.NoError(t, err)
	fwdPD, err := NewConvForwardPrimitiveDesc(fwd, eng)
	require.NoError(t, err)
	pd, err := NewConvBackwardDataPrimitiveDesc(bwd, eng, fwdPD)
	require.NoError(t, err)
	return pd
}

func randomFloats(r *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(r.Intn(9) - 4)
	}
	return out
}

// referenceBwdData is a scatter-style transposed convolution over NCHW/OIHW data.
func referenceBwdData(c convCase, diffDst, weights []float64) []float64 {
	oh, ow := c.outSize()
	out := make([]float64, c.n*c.ic*c.ih*c.iw)
	for n := 0; n < c.n; n++ {
		for oc := 0; oc < c.oc; oc++ {
			for y := 0; y < oh; y++ {
				for x := 0; x < ow; x++ {
					g := diffDst[((n*c.oc+oc)*oh+y)*ow+x]
					for ic := 0; ic < c.ic; ic++ {
						for kh := 0; kh < c.kh; kh++ {
							for kw := 0; kw < c.kw; kw++ {
								h := y*c.sh - c.pt + kh*(c.dh+1)
								w := x*c.sw - c.pl + kw*(c.dw+1)
								if h < 0 || h >= c.ih || w < 0 || w >= c.iw {
									continue
								}
								out[((n*c.ic+ic)*c.ih+h)*c.iw+w] += g * weights[((oc*c.ic+ic)*c.kh+kh)*c.kw+kw]
							}
						}
					}
				}
			}
		}
	}
	return out
}

// toLayout converts plain float64 data into a buffer laid out as dst.
func toLayout[T tensor.Float](t *testing.T, eng *Engine, plain []float64, plainFmt Format, dst MemoryDesc) []byte {
	t.Helper()
	typed := make([]T, len(plain))
	for i, v := range plain {
		typed[i] = tensor.FromFloat32[T](float32(v))
	}
	src := NewMemoryDesc(dst.Dims, dst.DataType, plainFmt)
	out := make([]byte, dst.Size())
	require.NoError(t, eng.Reorder(src, tensor.Bytes(typed), dst, out))
	return out
}

// fromLayout converts a buffer laid out as src into plain NCHW float64 data.
func fromLayout[T tensor.Float](t *testing.T, eng *Engine, data []byte, src MemoryDesc) []float64 {
	t.Helper()
	dst := NewMemoryDesc(src.Dims, src.DataType, FormatNCHW)
	out := make([]byte, dst.Size())
	require.NoError(t, eng.Reorder(src, data, dst, out))
	typed := tensor.View[T](out)
	plain := make([]float64, len(typed))
	for i, v := range typed {
		plain[i] = float64(tensor.ToFloat32(v))
	}
	return plain
}
