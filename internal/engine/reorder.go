package engine

// Reorder is a primitive that copies a tensor from one layout to another.
// Source and destination share logical dimensions and data type.
type Reorder struct {
	engine   *Engine
	src, dst *Memory
}

// NewReorder creates a conversion from src's layout to dst's layout.
func NewReorder(eng *Engine, src, dst *Memory) (*Reorder, error) {
	s, d := src.Desc(), dst.Desc()
	if s.DataType != d.DataType {
		return nil, newError(StatusUnimplemented, "reorder between data types %s and %s", s.DataType, d.DataType)
	}
	if !sameDims(s.Dims, d.Dims) {
		return nil, newError(StatusInvalidArguments, "reorder between different logical dims %v and %v", s.Dims, d.Dims)
	}
	if s.Format.IsData() != d.Format.IsData() {
		return nil, newError(StatusInvalidArguments, "reorder between incompatible formats %s and %s", s.Format, d.Format)
	}
	return &Reorder{engine: eng, src: src, dst: dst}, nil
}

// Kind implements Primitive.
func (r *Reorder) Kind() string {
	return "reorder"
}

// Execute implements Primitive.
func (r *Reorder) Execute() error {
	if r.src.IsDummy() || r.dst.IsDummy() {
		return newError(StatusNotBound, "reorder executed without bound buffers")
	}

	s, d := r.src.Desc(), r.dst.Desc()
	srcData, dstData := r.src.DataHandle(), r.dst.DataHandle()
	elem := s.DataType.Size()

	// Padding lanes of blocked layouts must read as zero.
	if d.Format.IsBlocked() {
		clear(dstData[:d.Size()])
	}

	A, B, H, W := s.Dims[0], s.Dims[1], s.Dims[2], s.Dims[3]
	forPlanes(r.engine, A, B, func(a, b int) {
		for h := 0; h < H; h++ {
			for w := 0; w < W; w++ {
				so := s.offset(a, b, h, w) * elem
				do := d.offset(a, b, h, w) * elem
				copy(dstData[do:do+elem], srcData[so:so+elem])
			}
		}
	})
	return nil
}

// Reorder converts srcData laid out as src into dstData laid out as dst.
func (e *Engine) Reorder(src MemoryDesc, srcData []byte, dst MemoryDesc, dstData []byte) error {
	srcMem, err := NewMemory(src, srcData)
	if err != nil {
		return err
	}
	dstMem, err := NewMemory(dst, dstData)
	if err != nil {
		return err
	}
	r, err := NewReorder(e, srcMem, dstMem)
	if err != nil {
		return err
	}
	return NewStream(e).Submit([]Primitive{r})
}

func sameDims(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
