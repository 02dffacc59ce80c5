package convgrad

import (
	"slices"
	"strconv"
	"strings"

	"github.com/born-ml/convgrad/internal/engine"
)

// keyPrefix names the operation in every cache key.
const keyPrefix = "conv2d_bwd_input"

// keyDelim separates key fields. Field values never contain it.
const keyDelim = "x"

// Params is the shape key of a backward-data plan. Dims are in engine
// order ([N,C,H,W] for data, [O,I,H,W] for filters). Dilations follow the
// engine's zero-based convention.
type Params struct {
	DiffSrcDims  []int
	FilterDims   []int
	DiffDstDims  []int
	Strides      []int
	Dilations    []int
	PaddingLeft  []int
	PaddingRight []int
	Padding      engine.PaddingKind
}

// NewParams builds a shape key. All slices are copied.
func NewParams(diffSrc, filter, diffDst, strides, dilations, padLeft, padRight []int, padding engine.PaddingKind) Params {
	return Params{
		DiffSrcDims:  slices.Clone(diffSrc),
		FilterDims:   slices.Clone(filter),
		DiffDstDims:  slices.Clone(diffDst),
		Strides:      slices.Clone(strides),
		Dilations:    slices.Clone(dilations),
		PaddingLeft:  slices.Clone(padLeft),
		PaddingRight: slices.Clone(padRight),
		Padding:      padding,
	}
}

// Equal reports whether p and other describe the same plan.
func (p Params) Equal(other Params) bool {
	return slices.Equal(p.DiffSrcDims, other.DiffSrcDims) &&
		slices.Equal(p.FilterDims, other.FilterDims) &&
		slices.Equal(p.DiffDstDims, other.DiffDstDims) &&
		slices.Equal(p.Strides, other.Strides) &&
		slices.Equal(p.Dilations, other.Dilations) &&
		slices.Equal(p.PaddingLeft, other.PaddingLeft) &&
		slices.Equal(p.PaddingRight, other.PaddingRight) &&
		p.Padding == other.Padding
}

// Key returns the canonical cache key. Each vector is written as its length
// followed by its values, so vectors of different lengths never collide.
func (p Params) Key() string {
	var sb strings.Builder
	sb.WriteString(keyPrefix)
	for _, v := range [][]int{
		p.DiffSrcDims, p.FilterDims, p.DiffDstDims,
		p.Strides, p.Dilations, p.PaddingLeft, p.PaddingRight,
	} {
		sb.WriteString(keyDelim)
		sb.WriteString(strconv.Itoa(len(v)))
		for _, n := range v {
			sb.WriteString(keyDelim)
			sb.WriteString(strconv.Itoa(n))
		}
	}
	sb.WriteString(keyDelim)
	sb.WriteString(p.Padding.String())
	return sb.String()
}

func (p Params) clone() Params {
	return NewParams(p.DiffSrcDims, p.FilterDims, p.DiffDstDims, p.Strides, p.Dilations,
		p.PaddingLeft, p.PaddingRight, p.Padding)
}
