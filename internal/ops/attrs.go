package ops

import "fmt"

// Padding is the padding policy of a convolution.
type Padding int

// Padding policies.
const (
	Valid Padding = iota
	Same
	Explicit
)

// String returns the policy name.
func (p Padding) String() string {
	switch p {
	case Valid:
		return "VALID"
	case Same:
		return "SAME"
	case Explicit:
		return "EXPLICIT"
	default:
		return fmt.Sprintf("Padding(%d)", int(p))
	}
}

// ParsePadding parses "VALID", "SAME" or "EXPLICIT".
func ParsePadding(s string) (Padding, error) {
	switch s {
	case "VALID":
		return Valid, nil
	case "SAME":
		return Same, nil
	case "EXPLICIT":
		return Explicit, nil
	default:
		return 0, invalidArgument("ParsePadding", "Invalid padding %q", s)
	}
}

// Attrs are the Conv2D attributes. Strides, Dilations and ExplicitPaddings
// are given in DataFormat order; ExplicitPaddings holds a (before, after)
// pair per dimension.
type Attrs struct {
	Strides          []int
	Dilations        []int
	Padding          Padding
	ExplicitPaddings []int
	DataFormat       DataFormat
}

// validate checks the attributes the way Conv2D kernels do at construction.
// A nil Dilations means no dilation.
func (a *Attrs) validate(op string) error {
	if a.DataFormat != NHWC && a.DataFormat != NCHW {
		return invalidArgument(op, "Invalid data format")
	}
	n, c, h, w := a.DataFormat.index()

	if len(a.Strides) != 4 {
		return invalidArgument(op, "Sliding window strides field must specify 4 dimensions")
	}
	if a.Strides[n] != 1 || a.Strides[c] != 1 {
		return invalidArgument(op, "Current implementation does not yet support strides in the batch and depth dimensions.")
	}
	if a.Strides[h] <= 0 || a.Strides[w] <= 0 {
		return invalidArgument(op, "Stride must be > 0, but got %v", a.Strides)
	}

	if a.Dilations == nil {
		a.Dilations = []int{1, 1, 1, 1}
	}
	if len(a.Dilations) != 4 {
		return invalidArgument(op, "Sliding window dilations field must specify 4 dimensions")
	}
	if a.Dilations[n] != 1 || a.Dilations[c] != 1 {
		return invalidArgument(op, "Current implementation does not yet support dilations in the batch and depth dimensions.")
	}
	if a.Dilations[h] < 1 || a.Dilations[w] < 1 {
		return invalidArgument(op, "Dilated rates should be larger than 0.")
	}

	switch a.Padding {
	case Valid, Same:
		if len(a.ExplicitPaddings) != 0 {
			return invalidArgument(op, "explicit_paddings must be empty if padding is not EXPLICIT")
		}
	case Explicit:
		if len(a.ExplicitPaddings) != 8 {
			return invalidArgument(op, "explicit_paddings must contain 8 values, got %d", len(a.ExplicitPaddings))
		}
		for _, p := range a.ExplicitPaddings {
			if p < 0 {
				return invalidArgument(op, "All elements of explicit_paddings must be nonnegative, got %v", a.ExplicitPaddings)
			}
		}
		if a.ExplicitPaddings[2*n] != 0 || a.ExplicitPaddings[2*n+1] != 0 ||
			a.ExplicitPaddings[2*c] != 0 || a.ExplicitPaddings[2*c+1] != 0 {
			return unimplemented(op, "Padding is not supported in the batch and depth dimensions")
		}
	default:
		return invalidArgument(op, "Invalid padding %s", a.Padding)
	}
	return nil
}

func (a *Attrs) clone() Attrs {
	return Attrs{
		Strides:          append([]int(nil), a.Strides...),
		Dilations:        append([]int(nil), a.Dilations...),
		Padding:          a.Padding,
		ExplicitPaddings: append([]int(nil), a.ExplicitPaddings...),
		DataFormat:       a.DataFormat,
	}
}
