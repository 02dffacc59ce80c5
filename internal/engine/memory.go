package engine

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/born-ml/convgrad/internal/tensor"
)

// MemoryDesc describes a tensor's logical dimensions, element type and
// physical layout. It is a value type; two descriptors are structurally
// equal when all fields match.
type MemoryDesc struct {
	Dims     []int
	DataType tensor.DataType
	Format   Format
	// Block is the channel blocking factor of blocked formats, zero otherwise.
	Block int
}

// NewMemoryDesc creates a descriptor for a plain or "any" format.
func NewMemoryDesc(dims []int, dt tensor.DataType, f Format) MemoryDesc {
	return MemoryDesc{Dims: append([]int(nil), dims...), DataType: dt, Format: f}
}

// NewBlockedMemoryDesc creates a descriptor for a blocked format.
func NewBlockedMemoryDesc(dims []int, dt tensor.DataType, f Format, block int) MemoryDesc {
	return MemoryDesc{Dims: append([]int(nil), dims...), DataType: dt, Format: f, Block: block}
}

// Validate checks that the descriptor can back a buffer.
func (d MemoryDesc) Validate() error {
	switch {
	case d.Format == FormatUndef:
		return newError(StatusInvalidArguments, "memory descriptor has undefined format")
	case d.Format == FormatAny:
		return newError(StatusInvalidArguments, "memory descriptor with format any cannot back a buffer")
	case !d.DataType.IsFloat():
		return newError(StatusUnimplemented, "data type %s is not supported", d.DataType)
	case len(d.Dims) != 4:
		return newError(StatusUnimplemented, "format %s requires 4 dimensions, got %d", d.Format, len(d.Dims))
	case d.Format.IsBlocked() && d.Block < 2:
		return newError(StatusInvalidArguments, "blocked format %s requires a block size >= 2, got %d", d.Format, d.Block)
	case !d.Format.IsBlocked() && d.Block != 0:
		return newError(StatusInvalidArguments, "plain format %s cannot carry block size %d", d.Format, d.Block)
	}
	for i, dim := range d.Dims {
		if dim <= 0 {
			return newError(StatusInvalidArguments, "dimension %d must be positive, got %d", i, dim)
		}
	}
	return nil
}

// Equal reports structural equality: same dims, type, format and block.
func (d MemoryDesc) Equal(other MemoryDesc) bool {
	if d.DataType != other.DataType || d.Format != other.Format || d.Block != other.Block {
		return false
	}
	if len(d.Dims) != len(other.Dims) {
		return false
	}
	for i := range d.Dims {
		if d.Dims[i] != other.Dims[i] {
			return false
		}
	}
	return true
}

// Elements returns the number of physical elements, including block padding.
func (d MemoryDesc) Elements() int {
	if len(d.Dims) != 4 {
		n := 1
		for _, dim := range d.Dims {
			n *= dim
		}
		return n
	}
	a, b, h, w := d.Dims[0], d.Dims[1], d.Dims[2], d.Dims[3]
	switch d.Format {
	case FormatNChwXc:
		return a * roundUp(b, d.Block) * h * w
	case FormatOIhwXiXo:
		return roundUp(a, d.Block) * roundUp(b, d.Block) * h * w
	default:
		return a * b * h * w
	}
}

// Size returns the buffer size in bytes required by the descriptor.
func (d MemoryDesc) Size() int {
	return d.Elements() * d.DataType.Size()
}

// String renders the descriptor, e.g. "float32:nChw8c:[1,16,4,4]".
func (d MemoryDesc) String() string {
	name := d.Format.String()
	if d.Format.IsBlocked() {
		name = strings.ReplaceAll(name, "X", fmt.Sprint(d.Block))
	}
	dims := make([]string, len(d.Dims))
	for i, dim := range d.Dims {
		dims[i] = fmt.Sprint(dim)
	}
	return fmt.Sprintf("%s:%s:[%s]", d.DataType, name, strings.Join(dims, ","))
}

// offset maps logical engine-order coordinates to a physical element index.
func (d MemoryDesc) offset(i0, i1, h, w int) int {
	A, B, H, W := d.Dims[0], d.Dims[1], d.Dims[2], d.Dims[3]
	switch d.Format {
	case FormatNCHW, FormatOIHW:
		return ((i0*B+i1)*H+h)*W + w
	case FormatNHWC:
		return ((i0*H+h)*W+w)*B + i1
	case FormatHWIO:
		// Weights in engine order are [O, I, H, W]; HWIO stores O innermost.
		return ((h*W+w)*B+i1)*A + i0
	case FormatNChwXc:
		bs := d.Block
		cb := roundUp(B, bs) / bs
		return (((i0*cb+i1/bs)*H+h)*W+w)*bs + i1%bs
	case FormatOIhwXiXo:
		bs := d.Block
		ib := roundUp(B, bs) / bs
		return ((((i0/bs)*ib+i1/bs)*H+h)*W+w)*bs*bs + (i1%bs)*bs + i0%bs
	default:
		panic(fmt.Sprintf("engine: offset on format %s", d.Format))
	}
}

func roundUp(n, m int) int {
	if m <= 1 {
		return n
	}
	return (n + m - 1) / m * m
}

var dummyStorage [1]byte

// DummyData is the sentinel handle memory objects hold while no caller
// buffer is bound. It never aliases caller memory.
var DummyData = dummyStorage[:0]

// Memory pairs a descriptor with a data handle.
type Memory struct {
	desc MemoryDesc
	data []byte
}

// NewMemory creates a memory object over data. Passing DummyData creates an
// unbound handle whose buffer is supplied later with SetDataHandle.
func NewMemory(desc MemoryDesc, data []byte) (*Memory, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	m := &Memory{desc: desc}
	if err := m.SetDataHandle(data); err != nil {
		return nil, err
	}
	return m, nil
}

// Desc returns the memory descriptor.
func (m *Memory) Desc() MemoryDesc {
	return m.desc
}

// SetDataHandle rebinds the memory to data. Any buffer other than DummyData
// must be at least Desc().Size() bytes long.
func (m *Memory) SetDataHandle(data []byte) error {
	if !isDummy(data) && len(data) < m.desc.Size() {
		return newError(StatusInvalidArguments, "buffer of %d bytes is smaller than %d bytes required by %s",
			len(data), m.desc.Size(), m.desc)
	}
	m.data = data
	return nil
}

// DataHandle returns the bound buffer.
func (m *Memory) DataHandle() []byte {
	return m.data
}

// IsDummy reports whether the memory currently holds the sentinel handle.
func (m *Memory) IsDummy() bool {
	return isDummy(m.data)
}

func isDummy(b []byte) bool {
	return unsafe.SliceData(b) == unsafe.SliceData(DummyData)
}
